package frozen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]Result
	stores  int
	lookups int
	failPut bool
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]Result)}
}

func (m *memCache) key(channel, number string) string { return channel + "/" + number }

func (m *memCache) Lookup(_ context.Context, channel, number string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if r, ok := m.entries[m.key(channel, number)]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memCache) Store(_ context.Context, channel string, res Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores++
	if m.failPut {
		return errors.New("cache unavailable")
	}
	m.entries[m.key(channel, res.Number)] = res
	return nil
}

func newService(t *testing.T, frozen map[string]bool, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req checkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := checkResponse{Frozen: frozen[req.Number]}
		if resp.Frozen {
			resp.Reason = "flagged"
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestCheckKeepsInputOrder(t *testing.T) {
	var calls atomic.Int64
	srv := newService(t, map[string]bool{"2222222222": true}, &calls)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Parallelism: 2}, nil, srv.Client())
	numbers := []string{"1111111111", "2222222222", "3333333333"}

	results, err := c.Check(context.Background(), numbers, "@chan")
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, n := range numbers {
		assert.Equal(t, n, results[i].Number)
	}
	assert.False(t, results[0].Frozen)
	assert.True(t, results[1].Frozen)
	assert.Equal(t, "flagged", results[1].Reason)
	assert.Equal(t, int64(3), calls.Load())
}

func TestCheckUsesCache(t *testing.T) {
	var calls atomic.Int64
	srv := newService(t, nil, &calls)
	defer srv.Close()

	cache := newMemCache()
	cache.entries[cache.key("@chan", "1111111111")] = Result{
		Number: "1111111111", Frozen: true, CheckedAt: time.Now(),
	}

	c := NewClient(Config{BaseURL: srv.URL, Parallelism: 2}, cache, srv.Client())
	results, err := c.Check(context.Background(), []string{"1111111111", "2222222222"}, "@chan")
	require.NoError(t, err)

	assert.True(t, results[0].Frozen)
	assert.Equal(t, int64(1), calls.Load(), "cached number must not hit the service")
	assert.Equal(t, 1, cache.stores, "only the fresh verdict is stored")
}

func TestCacheStoreFailureDoesNotFailCheck(t *testing.T) {
	var calls atomic.Int64
	srv := newService(t, nil, &calls)
	defer srv.Close()

	cache := newMemCache()
	cache.failPut = true

	c := NewClient(Config{BaseURL: srv.URL}, cache, srv.Client())
	results, err := c.Check(context.Background(), []string{"1111111111"}, "@chan")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestServiceErrorFailsWholeBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil, srv.Client())
	_, err := c.Check(context.Background(), []string{"1111111111", "2222222222"}, "@chan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestParallelismIsBounded(t *testing.T) {
	var inFlight, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		json.NewEncoder(w).Encode(checkResponse{})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Parallelism: 2}, nil, srv.Client())
	numbers := make([]string, 8)
	for i := range numbers {
		numbers[i] = "111111111" + string(rune('0'+i))
	}
	_, err := c.Check(context.Background(), numbers, "@chan")
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := Config{BaseURL: "http://svc"}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, defaultTimeoutSeconds*time.Second, cfg.Timeout())
	assert.Equal(t, defaultParallelism, cfg.Parallelism)

	var empty Config
	assert.Error(t, empty.Normalize())
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Result{{Frozen: true}, {Frozen: false}, {Frozen: true}})
	assert.Equal(t, Summary{Total: 3, Frozen: 2, Active: 1}, s)
}
