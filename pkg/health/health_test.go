package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/failwatch/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChecker struct {
	results []bool
	calls   int
}

func (s *scriptedChecker) Check(context.Context) Result {
	healthy := s.results[s.calls%len(s.results)]
	s.calls++
	msg := "ok"
	if !healthy {
		msg = "connection refused"
	}
	return Result{Healthy: healthy, Message: msg, CheckedAt: time.Now()}
}

func (s *scriptedChecker) Target() string { return "scripted" }

func TestStatusUpdate(t *testing.T) {
	cfg := Config{Retries: 2}
	s := NewStatus()

	s.Update(Result{Healthy: false}, cfg)
	assert.True(t, s.Healthy, "one failure is below the retry threshold")
	assert.Equal(t, 1, s.ConsecutiveFailures)

	s.Update(Result{Healthy: false}, cfg)
	assert.False(t, s.Healthy)

	s.Update(Result{Healthy: true}, cfg)
	assert.True(t, s.Healthy)
	assert.Zero(t, s.ConsecutiveFailures)
	assert.Equal(t, 1, s.ConsecutiveSuccesses)
}

func TestTCPChecker(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()

	result := NewTCPChecker(addr).Check(context.Background())
	assert.True(t, result.Healthy, result.Message)

	require.NoError(t, lis.Close())

	result = NewTCPChecker(addr).WithTimeout(time.Second).Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "connection failed")
}

func TestNewEndpointChecker(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		wantErr  bool
	}{
		{endpoint: "http://127.0.0.1:9099/add-domain", want: "127.0.0.1:9099"},
		{endpoint: "http://allow.example.com/add", want: "allow.example.com:80"},
		{endpoint: "https://allow.example.com/add", want: "allow.example.com:443"},
		{endpoint: "/relative", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			c, err := NewEndpointChecker(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Target())
		})
	}
}

func TestEndpointCheckerAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	c, err := NewEndpointChecker(server.URL + "/add-domain")
	require.NoError(t, err)
	assert.True(t, c.Check(context.Background()).Healthy)
}

func TestMonitorPublishesComponent(t *testing.T) {
	checker := &scriptedChecker{results: []bool{false, false, true}}
	m := NewMonitor("proxy-test", checker, Config{Interval: time.Hour, Timeout: time.Second, Retries: 2})

	assert.True(t, m.Probe().Healthy)
	assert.True(t, metrics.ComponentHealthy("proxy-test"))

	assert.False(t, m.Probe().Healthy)
	assert.False(t, metrics.ComponentHealthy("proxy-test"))

	assert.True(t, m.Probe().Healthy)
	assert.True(t, metrics.ComponentHealthy("proxy-test"))
	assert.Equal(t, 3, checker.calls)
	assert.True(t, m.Status().Healthy)
}

func TestMonitorStartStop(t *testing.T) {
	checker := &scriptedChecker{results: []bool{true}}
	m := NewMonitor("proxy-loop", checker, Config{Interval: time.Hour})

	m.Start()
	require.Eventually(t, func() bool { return metrics.ComponentHealthy("proxy-loop") }, time.Second, 10*time.Millisecond)
	m.Stop()
	m.Stop()
}
