/*
Package api serves the failwatch command surface over HTTP.

# Routes

	POST   /api/v1/commands       command envelope {type, hosts?, domains?}
	GET    /api/v1/hosts          GET_FAILED_HOSTS, most recent first
	DELETE /api/v1/hosts          CLEAR_FAILED_HOSTS → {ok, countCleared}
	POST   /api/v1/hosts/prune    PRUNE_FAILED_HOSTS {hosts} → {ok, pruned}
	POST   /api/v1/proxy/domains  ADD_TO_PROXY {domains} → [SubmitResult]
	POST   /api/v1/hosts/promote  submit then prune accepted → {results, pruned}
	POST   /api/v1/events         ingest RequestEvent or [RequestEvent]
	GET    /api/v1/watch          websocket of {type} change notifications
	GET    /health /ready /live /metrics

Malformed JSON, an unknown command type, and an empty selection for submit or
promote answer 400 with {"ok": false, "error": "..."}.

# Promote

Promote is the operator workflow the UI drives:

	domains ──▶ reconcile.Coordinator.Submit ──▶ allow-list service
	                   │ per-domain results, input order
	                   ▼
	           ledger.Prune(ok domains) ──▶ save ──▶ failed_hosts_updated

Rejected and unreachable domains stay in the ledger so they can be retried.

# Ingest

POST /api/v1/events feeds the capture pipeline directly. Requests are limited
per client address with a token bucket (golang.org/x/time/rate); over-limit
requests get 429.

# gRPC health

HealthServer exposes grpc.health.v1 on a separate listener for load
balancers and orchestrators, reporting SERVING while the process is ready.
*/
package api
