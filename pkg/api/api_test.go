package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/cuemby/failwatch/pkg/events"
	"github.com/cuemby/failwatch/pkg/hostname"
	"github.com/cuemby/failwatch/pkg/ledger"
	"github.com/cuemby/failwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubmitter accepts every domain not listed in reject
type fakeSubmitter struct {
	mu     sync.Mutex
	reject map[string]bool
	calls  [][]string
}

func (f *fakeSubmitter) Submit(_ context.Context, domains []string) []types.SubmitResult {
	f.mu.Lock()
	f.calls = append(f.calls, domains)
	f.mu.Unlock()

	results := make([]types.SubmitResult, len(domains))
	for i, d := range domains {
		if f.reject[d] {
			results[i] = types.SubmitResult{Domain: d, OK: false, Status: 500}
			continue
		}
		results[i] = types.SubmitResult{Domain: d, OK: true, Status: 200}
	}
	return results
}

type countingSink struct {
	events []types.RequestEvent
}

func (c *countingSink) HandleBatch(_ context.Context, evs []types.RequestEvent) int {
	c.events = append(c.events, evs...)
	captured := 0
	for _, ev := range evs {
		if ev.ErrorCode() != "" {
			captured++
		}
	}
	return captured
}

type fixture struct {
	server    *Server
	ledger    *ledger.Ledger
	submitter *fakeSubmitter
	sink      *countingSink
	broker    *events.Broker
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	l := ledger.New(10, nil, hostname.NewNormalizer(hostname.DefaultPolicy()))
	base := time.UnixMilli(1_700_000_000_000)
	l.Record(context.Background(), "a.com", "404", base)
	l.Record(context.Background(), "b.com", "500", base.Add(time.Second))
	l.Record(context.Background(), "c.com", "error", base.Add(2*time.Second))

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	f := &fixture{
		ledger:    l,
		submitter: &fakeSubmitter{reject: map[string]bool{"b.com": true}},
		sink:      &countingSink{},
		broker:    broker,
	}
	f.server = NewServer(cfg, NewCommands(l, f.submitter), f.sink, broker)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func TestListHosts(t *testing.T) {
	f := newFixture(t, Config{})

	w := f.do(t, http.MethodGet, "/api/v1/hosts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var records []types.FailureRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&records))
	require.Len(t, records, 3)
	assert.Equal(t, "c.com", records[0].Host)
	assert.Equal(t, "a.com", records[2].Host)
}

func TestCommandEnvelope(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, body []byte, f *fixture)
	}{
		{
			name:       "get failed hosts",
			body:       `{"type":"GET_FAILED_HOSTS"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte, f *fixture) {
				var records []types.FailureRecord
				require.NoError(t, json.Unmarshal(body, &records))
				assert.Len(t, records, 3)
			},
		},
		{
			name:       "prune failed hosts",
			body:       `{"type":"PRUNE_FAILED_HOSTS","hosts":["www.A.com","nope.com"]}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte, f *fixture) {
				var res types.PruneResult
				require.NoError(t, json.Unmarshal(body, &res))
				assert.Equal(t, types.PruneResult{OK: true, Pruned: 1}, res)
				assert.Equal(t, 2, f.ledger.Len())
			},
		},
		{
			name:       "clear failed hosts",
			body:       `{"type":"CLEAR_FAILED_HOSTS"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte, f *fixture) {
				var res types.ClearResult
				require.NoError(t, json.Unmarshal(body, &res))
				assert.Equal(t, types.ClearResult{OK: true, CountCleared: 3}, res)
				assert.Zero(t, f.ledger.Len())
			},
		},
		{
			name:       "add to proxy leaves ledger untouched",
			body:       `{"type":"ADD_TO_PROXY","domains":["a.com","b.com"]}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte, f *fixture) {
				var results []types.SubmitResult
				require.NoError(t, json.Unmarshal(body, &results))
				assert.Equal(t, []types.SubmitResult{
					{Domain: "a.com", OK: true, Status: 200},
					{Domain: "b.com", OK: false, Status: 500},
				}, results)
				assert.Equal(t, 3, f.ledger.Len())
			},
		},
		{
			name:       "malformed json",
			body:       `{"type":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown type",
			body:       `{"type":"REBOOT"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing type",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "add to proxy with nothing selected",
			body:       `{"type":"ADD_TO_PROXY","domains":[]}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})

			w := f.do(t, http.MethodPost, "/api/v1/commands", tt.body)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus != http.StatusOK {
				var res types.ErrorResult
				require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
				assert.False(t, res.OK)
				assert.NotEmpty(t, res.Error)
				assert.Equal(t, 3, f.ledger.Len())
				return
			}
			tt.check(t, w.Body.Bytes(), f)
		})
	}
}

func TestClearHostsRoute(t *testing.T) {
	f := newFixture(t, Config{})

	w := f.do(t, http.MethodDelete, "/api/v1/hosts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"countCleared":3}`, w.Body.String())
}

func TestPruneHostsRoute(t *testing.T) {
	f := newFixture(t, Config{})

	w := f.do(t, http.MethodPost, "/api/v1/hosts/prune", `{"hosts":["http://b.com/x"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"pruned":1}`, w.Body.String())

	_, found := f.ledger.Get("b.com")
	assert.False(t, found)
}

func TestPromote(t *testing.T) {
	f := newFixture(t, Config{})

	w := f.do(t, http.MethodPost, "/api/v1/hosts/promote", `{"domains":["a.com","b.com"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res types.PromoteResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, 1, res.Pruned)
	require.Len(t, res.Results, 2)
	assert.True(t, res.Results[0].OK)
	assert.False(t, res.Results[1].OK)

	_, found := f.ledger.Get("a.com")
	assert.False(t, found)
	_, found = f.ledger.Get("b.com")
	assert.True(t, found, "rejected domains stay in the ledger")
}

func TestPromoteNothingSelected(t *testing.T) {
	f := newFixture(t, Config{})

	w := f.do(t, http.MethodPost, "/api/v1/hosts/promote", `{"domains":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ErrNothingSelected.Error())
	assert.Empty(t, f.submitter.calls)
}

func TestCommandsPromoteAllRejected(t *testing.T) {
	f := newFixture(t, Config{})
	f.submitter.reject = map[string]bool{"a.com": true}

	res, err := NewCommands(f.ledger, f.submitter).Promote(context.Background(), []string{"a.com"})
	require.NoError(t, err)
	assert.Zero(t, res.Pruned)
	assert.Equal(t, 3, f.ledger.Len())
}

func TestIngest(t *testing.T) {
	f := newFixture(t, Config{})

	body := `[{"url":"https://x.com","statusCode":404},{"url":"https://y.com","statusCode":200}]`
	w := f.do(t, http.MethodPost, "/api/v1/events", body)
	require.Equal(t, http.StatusAccepted, w.Code)

	var res IngestResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, IngestResult{Accepted: 2, Captured: 1}, res)
	assert.Len(t, f.sink.events, 2)

	w = f.do(t, http.MethodPost, "/api/v1/events", `nope`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestRateLimited(t *testing.T) {
	f := newFixture(t, Config{IngestRate: 0.001, IngestBurst: 2})

	body := `{"url":"https://x.com","statusCode":404}`
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/events", body).Code)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/events", body).Code)

	w := f.do(t, http.MethodPost, "/api/v1/events", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"rate limit exceeded"}`, w.Body.String())
	assert.Len(t, f.sink.events, 2)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, Config{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/api/v1/hosts"},
		{http.MethodGet, "/api/v1/commands"},
		{http.MethodGet, "/api/v1/hosts/promote"},
		{http.MethodPost, "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, tt.method, tt.path, "").Code)
		})
	}
}

func TestHealthRoutes(t *testing.T) {
	f := newFixture(t, Config{})

	w := f.do(t, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")

	w = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "failwatch_")
}

func TestWatch(t *testing.T) {
	f := newFixture(t, Config{})
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/watch"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var msg types.Notification
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "ready", msg.Type)
	assert.Equal(t, 1, f.broker.SubscriberCount())

	f.broker.Notify()

	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, types.NotificationFailedHostsUpdated, msg.Type)
}

func TestWatchWithoutBroker(t *testing.T) {
	l := ledger.New(10, nil, hostname.NewNormalizer(hostname.DefaultPolicy()))
	s := NewServer(Config{}, NewCommands(l, &fakeSubmitter{}), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/watch", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	l := NewRateLimiter(10, 10)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
	assert.Equal(t, 2, l.Clients())

	assert.Zero(t, l.Cleanup(time.Hour))
	assert.Equal(t, 2, l.Cleanup(-time.Second))
	assert.Zero(t, l.Clients())
}

func TestRateLimiterDisabled(t *testing.T) {
	l := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.Zero(t, l.Clients())
}
