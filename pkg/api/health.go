package api

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cuemby/failwatch/pkg/log"
	"github.com/cuemby/failwatch/pkg/metrics"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the named service reported alongside the overall ("") status
const HealthServiceName = "failwatch"

// HealthServer exposes the standard gRPC health protocol. Its status follows
// process readiness: SERVING while storage and ledger are healthy.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger
}

// NewHealthServer creates a gRPC health server that re-evaluates readiness
// every interval
func NewHealthServer(interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := log.WithComponent("grpc-health")

	hs := &HealthServer{
		health:   health.NewServer(),
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
	hs.grpc = grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(logger)))
	healthpb.RegisterHealthServer(hs.grpc, hs.health)
	hs.Sync()

	return hs
}

// Sync copies current readiness into the gRPC serving status
func (h *HealthServer) Sync() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if metrics.GetReadiness().Status == "ready" {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(HealthServiceName, status)
	return status
}

// Start listens on addr and serves until Stop
func (h *HealthServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	h.logger.Info().Str("addr", addr).Msg("gRPC health listening")
	return h.Serve(lis)
}

// Serve serves on an existing listener until Stop
func (h *HealthServer) Serve(lis net.Listener) error {
	go h.syncLoop()
	return h.grpc.Serve(lis)
}

func (h *HealthServer) syncLoop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Sync()
		case <-h.stopCh:
			return
		}
	}
}

// Stop marks every service NOT_SERVING and stops the server gracefully
func (h *HealthServer) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.health.Shutdown()
		h.grpc.GracefulStop()
	})
}
