// Package client is a Go client for the failwatch HTTP API, used by the
// failwatch CLI. Non-2xx responses are returned as *APIError carrying the
// server's error message.
package client
