/*
Package reconcile submits candidate hosts to the external allow-list service.

In the default single mode every domain is sent as its own
POST {"domain": ...}, concurrently, and results come back one per input in
input order. Batch mode sends one POST {"domains": [...]} and maps the
optional {"added": [...], "failed": [...]} reply back onto each domain; when
the reply omits a list, the HTTP status decides.

A result is one of:

	{ok: true,  status}   accepted (2xx)
	{ok: false, status}   rejected by the service
	{ok: false, error}    the request never got a response

The coordinator never touches the ledger and never retries. Callers decide
what to prune.
*/
package reconcile
