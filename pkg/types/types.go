package types

import (
	"strconv"
	"time"
)

// FailureRecord is one remembered failing host
type FailureRecord struct {
	Host      string `json:"host" yaml:"host"`
	LastError string `json:"lastError" yaml:"lastError"`
	LastSeen  int64  `json:"lastSeen" yaml:"lastSeen"` // ms since epoch
	Hits      int    `json:"hits" yaml:"hits"`
}

// LastSeenTime returns LastSeen as a time.Time
func (r FailureRecord) LastSeenTime() time.Time {
	return time.UnixMilli(r.LastSeen)
}

// RequestEvent is a completed or errored network request delivered by the event feed
type RequestEvent struct {
	URL        string `json:"url"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`

	// Errored marks a transport-level failure that carried no error string
	Errored bool `json:"errored,omitempty"`
}

// DefaultErrorCode is recorded for errored requests that carry no error string
const DefaultErrorCode = "error"

// ErrorCode returns the failure signal carried by the event, or "" when the
// event is not a failure (status below 400 and no transport error).
func (e RequestEvent) ErrorCode() string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Errored:
		return DefaultErrorCode
	case e.StatusCode >= 400:
		return strconv.Itoa(e.StatusCode)
	default:
		return ""
	}
}

// SubmitResult is the outcome of submitting one domain to the allow-list service
type SubmitResult struct {
	Domain string `json:"domain" yaml:"domain"`
	OK     bool   `json:"ok" yaml:"ok"`
	Status int    `json:"status,omitempty" yaml:"status,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Rejected reports whether the remote answered but refused the domain
func (r SubmitResult) Rejected() bool {
	return !r.OK && r.Status != 0
}

// Unreachable reports whether the request never got a response
func (r SubmitResult) Unreachable() bool {
	return !r.OK && r.Status == 0
}

// CommandType names an operation on the command surface
type CommandType string

const (
	CommandGetFailedHosts   CommandType = "GET_FAILED_HOSTS"
	CommandClearFailedHosts CommandType = "CLEAR_FAILED_HOSTS"
	CommandPruneFailedHosts CommandType = "PRUNE_FAILED_HOSTS"
	CommandAddToProxy       CommandType = "ADD_TO_PROXY"
)

// Command is the message envelope accepted by the command surface
type Command struct {
	Type    CommandType `json:"type"`
	Hosts   []string    `json:"hosts,omitempty"`
	Domains []string    `json:"domains,omitempty"`
}

// ClearResult answers CLEAR_FAILED_HOSTS
type ClearResult struct {
	OK           bool `json:"ok"`
	CountCleared int  `json:"countCleared"`
}

// PruneResult answers PRUNE_FAILED_HOSTS
type PruneResult struct {
	OK     bool `json:"ok"`
	Pruned int  `json:"pruned"`
}

// PromoteResult answers a submit-then-prune request
type PromoteResult struct {
	Results []SubmitResult `json:"results" yaml:"results"`
	Pruned  int            `json:"pruned" yaml:"pruned"`
}

// ErrorResult is returned for malformed or failed commands
type ErrorResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// NotificationFailedHostsUpdated is broadcast after every ledger mutation
const NotificationFailedHostsUpdated = "failed_hosts_updated"

// Notification is the payload pushed to watching clients
type Notification struct {
	Type string `json:"type"`
}
