/*
Package metrics exposes Prometheus metrics and a component health registry.

Metrics are package-level collectors registered in init and served by
Handler at /metrics:

	failwatch_events_received_total          events delivered by any feed
	failwatch_events_dropped_total{reason}   not_failure, malformed, debounced
	failwatch_failures_captured_total        signals recorded in the ledger
	failwatch_ledger_records                 current ledger size
	failwatch_ledger_evictions_total         capacity evictions
	failwatch_ledger_pruned_total            records removed by prune
	failwatch_debounce_entries               remembered (host, error) keys
	failwatch_store_operations_total{operation,result}
	failwatch_store_duration_seconds{operation}
	failwatch_submit_results_total{outcome}  ok, rejected, unreachable
	failwatch_submit_duration_seconds
	failwatch_api_requests_total{command,status}
	failwatch_watch_subscribers

The health registry tracks named components (storage, ledger, api, proxy).
Readiness requires storage and ledger to be registered and healthy; the proxy
component only affects overall health. HealthHandler, ReadyHandler and
LivenessHandler serve the registry as JSON.

Collector refreshes the gauges, pings the store and writes the periodic
"alive" heartbeat line:

	c := metrics.NewCollector(ledger, gate, store, 30*time.Second, log.WithComponent("heartbeat"))
	c.Start()
	defer c.Stop()
*/
package metrics
