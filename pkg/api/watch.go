package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/cuemby/failwatch/pkg/metrics"
	"github.com/cuemby/failwatch/pkg/types"
)

// watchReady is sent once when a watch connection is established
const watchReady = "ready"

// handleWatch streams change notifications over a websocket. Each message is
// {"type": ...}; clients re-query the host list on failed_hosts_updated.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		s.respondWithError(w, "WATCH", http.StatusServiceUnavailable, "watch unavailable")
		return
	}

	opts := &websocket.AcceptOptions{}
	if len(s.cfg.WatchOriginPatterns) > 0 {
		opts.OriginPatterns = s.cfg.WatchOriginPatterns
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket accept failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.broker.Subscribe()
	defer s.broker.Unsubscribe(sub)

	metrics.WatchSubscribers.Inc()
	defer metrics.WatchSubscribers.Dec()

	_ = wsjson.Write(ctx, conn, types.Notification{Type: watchReady})

	// Clients send nothing; reading detects the close handshake
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case evt, ok := <-sub:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, types.Notification{Type: string(evt.Type)})
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}
