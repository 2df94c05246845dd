/*
Package config loads failwatch configuration with viper.

Values come from, in increasing precedence: built-in defaults, an optional
YAML file, and FAILWATCH_* environment variables (dots become underscores,
so ledger.max_records is FAILWATCH_LEDGER_MAX_RECORDS).

	ledger:
	  max_records: 200
	debounce:
	  window: 4s
	  max_entries: 800
	  sweep_interval: 30s
	normalizer:
	  ignore: [sentry.io, googletagmanager.com, doubleclick.net, ...]
	  fold_to_registrable: false
	storage:
	  driver: bolt            # bolt, redis, postgres, memory
	  key: failedHosts
	  bolt: {path: ./failwatch.db}
	  redis: {addr: 127.0.0.1:6379, prefix: "failwatch:"}
	  postgres: {url: ""}
	proxy:
	  endpoint: http://127.0.0.1:9099/add-domain
	  mode: single            # single, batch
	  timeout: 10s
	  max_concurrency: 0
	  health_interval: 30s
	api:
	  addr: :9098
	  grpc_health_addr: ""
	  ingest_rate: 50
	  ingest_burst: 100
	feed:
	  stdin: false
	  files: []
	  redis_addr: ""
	  redis_channel: failwatch:events
	log:
	  level: info
	  json: false
	metrics:
	  heartbeat_interval: 30s
*/
package config
