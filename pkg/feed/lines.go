package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cuemby/failwatch/pkg/log"
	"github.com/rs/zerolog"
)

// maxLineSize bounds a single JSON line
const maxLineSize = 1 << 20

// LineSource reads newline-delimited JSON events from a reader such as
// stdin or a capture file
type LineSource struct {
	name   string
	reader io.Reader
	logger zerolog.Logger
}

// NewLineSource creates a JSON-lines source
func NewLineSource(name string, r io.Reader) *LineSource {
	return &LineSource{
		name:   name,
		reader: r,
		logger: log.WithComponent("feed").With().Str("source", name).Logger(),
	}
}

// Name returns the source name
func (s *LineSource) Name() string {
	return s.name
}

// Run feeds every line to sink. Malformed and oversized lines are logged
// and skipped. It returns nil at end of input.
func (s *LineSource) Run(ctx context.Context, sink Sink) error {
	reader := bufio.NewReaderSize(s.reader, 64*1024)

	lines, captured := 0, 0
	for {
		line, oversized, readErr := readLine(reader, maxLineSize)
		if err := ctx.Err(); err != nil {
			return err
		}
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("failed to read %s: %w", s.name, readErr)
		}

		if len(line) > 0 || oversized {
			lines++
			switch events, err := Decode(line); {
			case oversized:
				s.logger.Debug().Int("line", lines).Int("limit", maxLineSize).Msg("skipping oversized line")
			case errors.Is(err, ErrEmptyPayload):
			case err != nil:
				s.logger.Debug().Err(err).Int("line", lines).Msg("skipping malformed line")
			default:
				captured += sink.HandleBatch(ctx, events)
			}
		}

		if readErr != nil {
			break
		}
	}

	s.logger.Info().
		Int("lines", lines).
		Int("captured", captured).
		Msg("source drained")
	return nil
}

// readLine returns the next line including its newline. A line longer than
// max is drained and reported as oversized with no content.
func readLine(r *bufio.Reader, max int) ([]byte, bool, error) {
	var line []byte
	oversized := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !oversized {
			if len(line)+len(chunk) > max {
				oversized, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, oversized, err
	}
}
