package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuemby/failwatch/pkg/reconcile"
	"github.com/cuemby/failwatch/pkg/types"
)

var (
	// ErrNothingSelected is returned when a submit or promote names no domains
	ErrNothingSelected = errors.New("no domains selected")

	// ErrUnknownCommand is returned for an envelope with an unrecognized type
	ErrUnknownCommand = errors.New("unknown command type")
)

// Ledger is the failure ledger as seen by the command surface
type Ledger interface {
	List() []types.FailureRecord
	ClearAll(ctx context.Context) int
	Prune(ctx context.Context, hosts []string) int
	Len() int
}

// Submitter sends domains to the allow-list service
type Submitter interface {
	Submit(ctx context.Context, domains []string) []types.SubmitResult
}

// Commands executes operator commands against the ledger and the
// allow-list service
type Commands struct {
	ledger    Ledger
	submitter Submitter
}

// NewCommands creates the command handler set
func NewCommands(ledger Ledger, submitter Submitter) *Commands {
	return &Commands{
		ledger:    ledger,
		submitter: submitter,
	}
}

// ListHosts returns every record, most recent first
func (c *Commands) ListHosts() []types.FailureRecord {
	return c.ledger.List()
}

// ClearHosts empties the ledger
func (c *Commands) ClearHosts(ctx context.Context) types.ClearResult {
	return types.ClearResult{OK: true, CountCleared: c.ledger.ClearAll(ctx)}
}

// PruneHosts removes the named hosts
func (c *Commands) PruneHosts(ctx context.Context, hosts []string) types.PruneResult {
	return types.PruneResult{OK: true, Pruned: c.ledger.Prune(ctx, hosts)}
}

// AddToProxy submits domains without touching the ledger
func (c *Commands) AddToProxy(ctx context.Context, domains []string) ([]types.SubmitResult, error) {
	if len(domains) == 0 {
		return nil, ErrNothingSelected
	}
	return c.submitter.Submit(ctx, domains), nil
}

// Promote submits domains and prunes the ones the allow-list service
// accepted. Rejected and unreachable domains stay in the ledger.
func (c *Commands) Promote(ctx context.Context, domains []string) (types.PromoteResult, error) {
	if len(domains) == 0 {
		return types.PromoteResult{}, ErrNothingSelected
	}

	results := c.submitter.Submit(ctx, domains)
	pruned := 0
	if ok := reconcile.Succeeded(results); len(ok) > 0 {
		pruned = c.ledger.Prune(ctx, ok)
	}

	return types.PromoteResult{Results: results, Pruned: pruned}, nil
}

// Execute runs one envelope command and returns its JSON-ready result
func (c *Commands) Execute(ctx context.Context, cmd types.Command) (interface{}, error) {
	switch cmd.Type {
	case types.CommandGetFailedHosts:
		return c.ListHosts(), nil
	case types.CommandClearFailedHosts:
		return c.ClearHosts(ctx), nil
	case types.CommandPruneFailedHosts:
		return c.PruneHosts(ctx, cmd.Hosts), nil
	case types.CommandAddToProxy:
		return c.AddToProxy(ctx, cmd.Domains)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}

// DecodeCommand parses a command envelope
func DecodeCommand(data []byte) (types.Command, error) {
	var cmd types.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("malformed command: %w", err)
	}
	if cmd.Type == "" {
		return cmd, fmt.Errorf("%w: missing type", ErrUnknownCommand)
	}
	return cmd, nil
}
