/*
Package storage provides the key/value stores that hold failwatch state.

failwatch persists a single value: the JSON-encoded ledger under one
namespaced key (default "failedHosts"). Store abstracts where that value
lives so the same binary can run standalone or share state with other
tooling:

	Driver    Backend                  Notes
	bolt      go.etcd.io/bbolt         default; one file, bucket "state"
	redis     go-redis/v9              keys prefixed, default "failwatch:"
	postgres  pgx/v5 pool              table failwatch_kv(key, value, updated_at)
	memory    map                      tests and throwaway runs

Get returns ErrNotFound for an absent key on every backend, so callers can
treat "never saved" uniformly with errors.Is.

	store, err := storage.Open(ctx, storage.Config{
		Driver:   storage.DriverBolt,
		BoltPath: "./failwatch.db",
	})
	if err != nil {
		return err
	}
	defer store.Close()
*/
package storage
