// Package feed delivers request events to the capture pipeline from
// JSON-lines streams and Redis pub/sub.
package feed
