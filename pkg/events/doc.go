/*
Package events provides the in-memory broker that announces ledger changes.

Every persisted ledger mutation publishes one failed_hosts_updated event.
Events carry no ledger data; receivers re-query the host list. Delivery is
best-effort: Publish never blocks, a full queue drops the event with a
warning, and a slow subscriber misses events rather than stalling others.

	persist.Adapter.Save ──Notify()──▶ event channel (buffer: 100)
	                                        │
	                                  broadcast loop
	                                  ├──▶ subscriber channels (buffer: 50 each)
	                                  │      └─ api watch websocket
	                                  └──▶ listeners (panics recovered)

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for evt := range sub {
		fmt.Println(evt.Type)
	}

Publishing after Stop is a no-op, and Unsubscribe may be called more than
once.
*/
package events
