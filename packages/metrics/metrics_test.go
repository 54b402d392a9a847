package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exthttp "github.com/abdul-hamid-achik/extbridge/packages/http"
	"github.com/abdul-hamid-achik/extbridge/packages/queue"
)

func TestCollector_ObserveTransport(t *testing.T) {
	c := NewCollector(nil)

	c.ObserveTransport("GET", "http://x/a", 200, 10*time.Millisecond, nil)
	c.ObserveTransport("GET", "http://x/a", 200, 30*time.Millisecond, nil)
	c.ObserveTransport("POST", "http://x/b", 0, time.Millisecond, errors.New("refused"))

	assert.Equal(t, float64(2), testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.requestsTotal.WithLabelValues("POST", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.errorsTotal))

	s := c.Summary()
	assert.Equal(t, int64(3), s.Requests)
	assert.Equal(t, int64(1), s.Errors)
	assert.InDelta(t, float64(30*time.Millisecond), float64(s.Max), float64(time.Millisecond))
	assert.GreaterOrEqual(t, s.P95, s.P50)
}

func TestCollector_EmptySummary(t *testing.T) {
	s := NewCollector(nil).Summary()
	assert.Zero(t, s.Requests)
	assert.Zero(t, s.P99)
}

func TestCollector_QueueEvents(t *testing.T) {
	c := NewCollector(nil)

	c.On(queue.EventData{Event: queue.EventLocked, Key: "a"})
	assert.Equal(t, float64(1), testutil.ToFloat64(c.inFlight))

	c.On(queue.EventData{Event: queue.EventJoined, Key: "a", Waiters: 1})
	c.On(queue.EventData{Event: queue.EventJoined, Key: "a", Waiters: 2})
	c.On(queue.EventData{Event: queue.EventReleased, Key: "a", Waiters: 2})

	assert.Equal(t, float64(0), testutil.ToFloat64(c.inFlight))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.queueEvents.WithLabelValues("joined")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.coalescedTotal))
	assert.Equal(t, int64(2), c.Summary().Coalesced)
}

func TestCollector_ClearResetsInFlight(t *testing.T) {
	c := NewCollector(nil)
	coord := queue.New[int](func(v int) int { return v }, queue.WithObserver(c))

	require.NoError(t, coord.Lock("a"))
	require.NoError(t, coord.Lock("b"))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.inFlight))

	coord.Clear()
	assert.Equal(t, float64(0), testutil.ToFloat64(c.inFlight))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.queueEvents.WithLabelValues("cleared")))
}

func TestCollector_WiredIntoClient(t *testing.T) {
	var mu sync.Mutex
	var calls int
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := NewCollector(nil)
	client := exthttp.NewClient(
		exthttp.WithDeduplicate(true),
		exthttp.WithQueueObserver(c),
		exthttp.WithTransportObserver(c),
	)

	const n = 4
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(context.Background(), server.URL, nil)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool {
		return client.Coordinator().Waiters(server.URL) == n-1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, float64(n-1), testutil.ToFloat64(c.coalescedTotal))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(nil)
	c.ObserveTransport("GET", "http://x", 200, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "extbridge_transport_requests_total"))
}
