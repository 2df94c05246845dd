package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuemby/failwatch/pkg/types"
)

// ErrEmptyPayload is returned by Decode for blank input
var ErrEmptyPayload = errors.New("empty payload")

// Sink consumes decoded request events. capture.Pipeline implements it.
type Sink interface {
	HandleBatch(ctx context.Context, events []types.RequestEvent) int
}

// Source delivers request events to a sink until its input ends or ctx is
// cancelled
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// Decode parses a single RequestEvent object or an array of them
func Decode(data []byte) ([]types.RequestEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	if data[0] == '[' {
		var events []types.RequestEvent
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("failed to decode event array: %w", err)
		}
		return events, nil
	}

	var ev types.RequestEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return []types.RequestEvent{ev}, nil
}
