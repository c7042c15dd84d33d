package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pollbridge/pollbridge-go/contracts"
	"github.com/pollbridge/pollbridge-go/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBridge records the adapter's calls against a canned claim queue.
type stubBridge struct {
	mu         sync.Mutex
	claims     []contracts.PendingClaim
	resolved   map[string]json.RawMessage
	rejected   map[string]error
	cleared    int
	pending    int
	dispatched int
}

func newStubBridge(claims ...contracts.PendingClaim) *stubBridge {
	return &stubBridge{
		claims:   claims,
		resolved: make(map[string]json.RawMessage),
		rejected: make(map[string]error),
	}
}

func (s *stubBridge) ClaimNext() (contracts.PendingClaim, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.claims) == 0 {
		return contracts.PendingClaim{}, false
	}
	claim := s.claims[0]
	s.claims = s.claims[1:]
	return claim, true
}

func (s *stubBridge) Resolve(id string, response json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[id] = response
}

func (s *stubBridge) Reject(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[id] = err
}

func (s *stubBridge) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
}

func (s *stubBridge) clearCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

func (s *stubBridge) PendingCount() int                  { return s.pending }
func (s *stubBridge) DispatchedCount() int               { return s.dispatched }
func (s *stubBridge) OverallTimeout() time.Duration      { return 60 * time.Second }
func (s *stubBridge) StaleDispatchWindow() time.Duration { return 45 * time.Second }

func newTestServer(t *testing.T, b RequestBridge, opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := NewServer(b, opts...)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestNewServer(t *testing.T) {
	t.Run("rejects nil bridge", func(t *testing.T) {
		_, err := NewServer(nil)
		assert.Error(t, err)
	})

	t.Run("rejects idle threshold below the poll interval", func(t *testing.T) {
		_, err := NewServer(newStubBridge(),
			WithPollInterval(10*time.Second),
			WithIdleThreshold(5*time.Second),
		)
		assert.Error(t, err)
	})
}

func TestAnnounce(t *testing.T) {
	t.Run("announce clears the bridge and returns the tuning constants", func(t *testing.T) {
		b := newStubBridge()
		_, ts := newTestServer(t, b)

		resp, err := http.Post(ts.URL+"/v1/announce", "application/json",
			strings.NewReader(`{"clientName":"canvas-plugin","clientVersion":"1.4.0"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var reply contracts.AnnounceReply
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
		assert.Equal(t, int64(1000), reply.PollIntervalMs)
		assert.Equal(t, int64(45000), reply.StaleDispatchWindowMs)
		assert.Equal(t, int64(60000), reply.OverallTimeoutMs)
		assert.Equal(t, 1, b.clearCount())
	})

	t.Run("re-announce clears the bridge again", func(t *testing.T) {
		b := newStubBridge()
		_, ts := newTestServer(t, b)

		for i := 0; i < 2; i++ {
			resp, err := http.Post(ts.URL+"/v1/announce", "application/json",
				strings.NewReader(`{"clientName":"canvas-plugin"}`))
			require.NoError(t, err)
			resp.Body.Close()
		}

		assert.Equal(t, 2, b.clearCount())
	})

	t.Run("announce without a client name is rejected", func(t *testing.T) {
		b := newStubBridge()
		_, ts := newTestServer(t, b)

		resp, err := http.Post(ts.URL+"/v1/announce", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, 0, b.clearCount())
	})
}

func TestPoll(t *testing.T) {
	t.Run("poll returns the next claim", func(t *testing.T) {
		b := newStubBridge(contracts.PendingClaim{
			ID:       "req-1",
			Endpoint: "get_file_tree",
			Payload:  json.RawMessage(`{"path":"/"}`),
		})
		_, ts := newTestServer(t, b)

		resp, err := http.Get(ts.URL + "/v1/poll")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var claim contracts.PendingClaim
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&claim))
		assert.Equal(t, "req-1", claim.ID)
		assert.Equal(t, "get_file_tree", claim.Endpoint)
		assert.JSONEq(t, `{"path":"/"}`, string(claim.Payload))
	})

	t.Run("poll returns 204 when nothing is queued", func(t *testing.T) {
		_, ts := newTestServer(t, newStubBridge())

		resp, err := http.Get(ts.URL + "/v1/poll")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
}

func TestResponse(t *testing.T) {
	t.Run("a result resolves the request", func(t *testing.T) {
		b := newStubBridge()
		_, ts := newTestServer(t, b)

		resp, err := http.Post(ts.URL+"/v1/response", "application/json",
			strings.NewReader(`{"id":"req-1","result":{"files":[]}}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.JSONEq(t, `{"files":[]}`, string(b.resolved["req-1"]))
	})

	t.Run("an error rejects the request", func(t *testing.T) {
		b := newStubBridge()
		_, ts := newTestServer(t, b)

		resp, err := http.Post(ts.URL+"/v1/response", "application/json",
			strings.NewReader(`{"id":"req-2","error":"node not found"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.Contains(t, b.rejected, "req-2")
		assert.Contains(t, b.rejected["req-2"].Error(), "node not found")
	})

	t.Run("an unknown id is still accepted", func(t *testing.T) {
		b := newStubBridge()
		_, ts := newTestServer(t, b)

		resp, err := http.Post(ts.URL+"/v1/response", "application/json",
			strings.NewReader(`{"id":"long-gone","result":"ok"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})

	t.Run("a missing id is rejected", func(t *testing.T) {
		_, ts := newTestServer(t, newStubBridge())

		resp, err := http.Post(ts.URL+"/v1/response", "application/json",
			strings.NewReader(`{"result":"ok"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestStatus(t *testing.T) {
	t.Run("status reports counts and connectivity", func(t *testing.T) {
		b := newStubBridge()
		b.pending = 3
		b.dispatched = 1
		_, ts := newTestServer(t, b)

		announce, err := http.Post(ts.URL+"/v1/announce", "application/json",
			strings.NewReader(`{"clientName":"canvas-plugin"}`))
		require.NoError(t, err)
		announce.Body.Close()

		resp, err := http.Get(ts.URL + "/v1/status")
		require.NoError(t, err)
		defer resp.Body.Close()

		var status contracts.StatusReply
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, 3, status.Pending)
		assert.Equal(t, 1, status.Dispatched)
		assert.True(t, status.ClientConnected)
		assert.Equal(t, "canvas-plugin", status.ClientName)
	})
}

func TestHealthz(t *testing.T) {
	t.Run("healthy once the client has announced", func(t *testing.T) {
		b := newStubBridge()
		_, ts := newTestServer(t, b,
			WithHealthCheckers(health.NewBridgeChecker(b, 100, nil)))

		announce, err := http.Post(ts.URL+"/v1/announce", "application/json",
			strings.NewReader(`{"clientName":"canvas-plugin"}`))
		require.NoError(t, err)
		announce.Body.Close()

		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unhealthy before the client ever announces", func(t *testing.T) {
		_, ts := newTestServer(t, newStubBridge())

		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestIdleWatchdog(t *testing.T) {
	t.Run("a silent client triggers exactly one clear", func(t *testing.T) {
		b := newStubBridge()
		_, ts := newTestServer(t, b,
			WithPollInterval(5*time.Millisecond),
			WithIdleThreshold(20*time.Millisecond),
		)

		resp, err := http.Post(ts.URL+"/v1/announce", "application/json",
			strings.NewReader(`{"clientName":"canvas-plugin"}`))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, 1, b.clearCount())

		// Client goes silent; the watchdog fires once and only once.
		assert.Eventually(t, func() bool {
			return b.clearCount() == 2
		}, time.Second, 5*time.Millisecond)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 2, b.clearCount())
	})
}
