package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cuemby/failwatch/pkg/client"
	"github.com/cuemby/failwatch/pkg/feed"
	"github.com/cuemby/failwatch/pkg/log"
	"github.com/cuemby/failwatch/pkg/types"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [FILE]",
	Short: "Send JSON-lines request events to a running server",
	Long: `Read request events, one JSON object or array per line, from FILE or
stdin and post them to a running failwatch server.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		name := "stdin"
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()
			r, name = f, args[0]
		}

		c, ctx, cancel := newClient(cmd)
		defer cancel()

		sink := newRemoteSink(c)
		if err := feed.NewLineSource(name, r).Run(ctx, sink); err != nil {
			return err
		}
		if err := sink.Flush(ctx); err != nil {
			return err
		}

		fmt.Printf("✓ Sent %d event(s), %d captured\n", sink.accepted, sink.captured)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("server", "", "failwatch API address (defaults to api.addr)")
	ingestCmd.Flags().Duration("timeout", 0, "Overall timeout (0 for none)")
}

const (
	ingestBatchEvents  = 500
	ingestBatchBytes   = 512 << 10
	ingestMaxRetries   = 10
	ingestDefaultDelay = time.Second
)

// remoteSink buffers decoded lines and posts them to the API in batches.
// Rate-limited batches are retried after the server's Retry-After delay.
// After the first hard error later lines are dropped.
type remoteSink struct {
	client    *client.Client
	maxEvents int
	maxBytes  int

	pending      []types.RequestEvent
	pendingBytes int

	accepted int
	captured int
	err      error
}

func newRemoteSink(c *client.Client) *remoteSink {
	return &remoteSink{client: c, maxEvents: ingestBatchEvents, maxBytes: ingestBatchBytes}
}

func (s *remoteSink) HandleBatch(ctx context.Context, evs []types.RequestEvent) int {
	if s.err != nil {
		return 0
	}
	before := s.captured
	for _, ev := range evs {
		size := len(ev.URL) + len(ev.Error) + 48
		if len(s.pending) >= s.maxEvents || (len(s.pending) > 0 && s.pendingBytes+size > s.maxBytes) {
			if s.Flush(ctx) != nil {
				break
			}
		}
		s.pending = append(s.pending, ev)
		s.pendingBytes += size
	}
	return s.captured - before
}

// Flush posts any buffered events and returns the first error seen
func (s *remoteSink) Flush(ctx context.Context) error {
	if s.err != nil || len(s.pending) == 0 {
		return s.err
	}

	for attempt := 0; ; attempt++ {
		res, err := s.client.Ingest(ctx, s.pending)
		if err == nil {
			s.accepted += res.Accepted
			s.captured += res.Captured
			s.pending, s.pendingBytes = s.pending[:0], 0
			return nil
		}

		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests || attempt >= ingestMaxRetries {
			s.err = err
			log.Logger.Error().Err(err).Int("events", len(s.pending)).Msg("ingest failed")
			return err
		}

		delay := apiErr.RetryAfter
		if delay <= 0 {
			delay = ingestDefaultDelay
		}
		log.Logger.Debug().Dur("retry_after", delay).Int("attempt", attempt+1).Msg("rate limited, backing off")

		select {
		case <-ctx.Done():
			s.err = ctx.Err()
			return s.err
		case <-time.After(delay):
		}
	}
}
