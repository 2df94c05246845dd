/*
Package types defines the data shared by failwatch components.

FailureRecord is the unit of the ledger: one entry per failing host, carrying
the last error signal, when it was last seen (milliseconds since epoch) and how
many admitted observations were merged into it. Its JSON field names are the
persisted layout and the wire format of GET_FAILED_HOSTS.

RequestEvent is what the inbound feed delivers. Only two shapes are failures:
a completed request with statusCode >= 400, or an errored request. ErrorCode
collapses both into the string stored as lastError.

SubmitResult is the per-domain answer of the allow-list reconciliation. A
result with ok=false and a status was rejected by the remote; one with an
error and no status never got a response.

Command and the *Result types form the request/response surface used by UI
clients.
*/
package types
