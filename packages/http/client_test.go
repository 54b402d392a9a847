package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/extbridge/packages/queue"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/test", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "hello"}`))
	}))
	defer server.Close()

	client := NewClient()
	res, err := client.Get(context.Background(), server.URL+"/test", nil)

	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, map[string]any{"message": "hello"}, res.Data)
}

func TestClient_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name": "test"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	client := NewClient()
	res, err := client.Post(context.Background(), server.URL, map[string]string{"name": "test"}, nil)

	require.NoError(t, err)
	assert.Equal(t, 201, res.Status)
	assert.Equal(t, map[string]any{"id": float64(123)}, res.Data)
}

func TestClient_MethodWrappers(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient()
	ctx := context.Background()

	_, err := client.Put(ctx, server.URL, map[string]int{"a": 1}, nil)
	require.NoError(t, err)
	_, err = client.Patch(ctx, server.URL, nil, nil)
	require.NoError(t, err)
	res, err := client.Delete(ctx, server.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"PUT", "PATCH", "DELETE"}, methods)
	assert.Equal(t, 204, res.Status)
	assert.Nil(t, res.Data)
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	_, err := client.Get(context.Background(), server.URL, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestClient_HeaderPrecedence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "caller-token", r.Header.Get("Authorization"))
		assert.Equal(t, "browser-extension", r.Header.Get("source"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "from-auth", r.Header.Get("X-Auth-Only"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	auth := AuthFunc(func(req *AuthRequest) (map[string]string, error) {
		return map[string]string{
			"Authorization": "provider-token",
			"X-Auth-Only":   "from-auth",
		}, nil
	})

	client := NewClient(
		WithAuthProvider(auth),
		WithDefaultHeader("User-Agent", "custom-agent"),
	)
	_, err := client.Get(context.Background(), server.URL, &RequestOptions{
		Headers: map[string]string{"authorization": "caller-token"},
	})
	require.NoError(t, err)
}

func TestClient_OriginOverriddenByCaller(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cli", r.Header.Get("source"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Get(context.Background(), server.URL, &RequestOptions{
		Headers: map[string]string{"source": "cli"},
	})
	require.NoError(t, err)
}

func TestClient_StaticAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithAuthProvider(BearerAuth("abc")))
	_, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
}

func TestClient_AuthProviderError(t *testing.T) {
	client := NewClient(WithAuthProvider(AuthFunc(func(*AuthRequest) (map[string]string, error) {
		return nil, errors.New("no token")
	})))

	_, err := client.Get(context.Background(), "http://example.com", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token")
}

func TestClient_QueryParams(t *testing.T) {
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Get(context.Background(), server.URL+"/search", &RequestOptions{
		QueryParams: Params{}.Add("tags", []string{"a", "b"}).Add("q", "x"),
	})
	require.NoError(t, err)
	assert.Equal(t, "tags[]=a&tags[]=b&q=x", rawQuery)
}

func TestClient_NotAuthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"expired"}`))
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Get(context.Background(), server.URL, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindNotAuthenticated, apiErr.Kind)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.True(t, apiErr.WithText("expired"))
	assert.Equal(t, map[string]any{"error": "expired"}, apiErr.JSON())
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   ErrorKind
		target error
	}{
		{name: "forbidden", status: 403, kind: KindNotAuthorized, target: ErrNotAuthorized},
		{name: "not found", status: 404, kind: KindUnknown, target: ErrUnknownAPI},
		{name: "server error", status: 500, kind: KindUnknown, target: ErrUnknownAPI},
		{name: "redirect not followed", status: 304, kind: KindUnknown, target: ErrUnknownAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient()
			_, err := client.Get(context.Background(), server.URL, nil)

			assert.ErrorIs(t, err, tt.target)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Empty(t, apiErr.JSON())
		})
	}
}

func TestClient_StreamRequestType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0x00, 0x01, 0x02})
	}))
	defer server.Close()

	client := NewClient()
	res, err := client.Get(context.Background(), server.URL, &RequestOptions{RequestType: RequestTypeStream})

	require.NoError(t, err)
	b, ok := res.Bytes()
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x01, 0x02}, b)
}

func TestClient_UnsupportedRequestType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Get(context.Background(), server.URL, &RequestOptions{RequestType: "bogus"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedRequestType)
	assert.Contains(t, err.Error(), "bogus")
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestClient_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Get(context.Background(), server.URL, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
	assert.Contains(t, err.Error(), "invalid character")
}

func TestClient_DeduplicatesConcurrentRequests(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"v":1}`))
	}))
	defer server.Close()

	client := NewClient()
	url := server.URL + "/resource"

	const n = 2
	results := make([]*Result, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			res, err := client.Get(context.Background(), url, &RequestOptions{Deduplicate: true})
			results[i] = res
			return err
		})
	}

	require.Eventually(t, func() bool {
		return client.Coordinator().Waiters(url) == n-1
	}, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), calls.Load())
	for _, res := range results {
		assert.Equal(t, 200, res.Status)
		assert.Equal(t, map[string]any{"v": float64(1)}, res.Data)
	}
	assert.False(t, client.Coordinator().HasOngoing(url))
}

func TestClient_DeduplicatedStreamsAreIndependent(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	client := NewClient()
	opts := &RequestOptions{Deduplicate: true, RequestType: RequestTypeStream}

	results := make([]*Result, 3)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			res, err := client.Get(context.Background(), server.URL, opts)
			results[i] = res
			return err
		})
	}
	require.Eventually(t, func() bool {
		return client.Coordinator().Waiters(server.URL) == 2
	}, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	first, _ := results[0].Bytes()
	first[0] = 'X'
	for _, res := range results[1:] {
		b, _ := res.Bytes()
		assert.Equal(t, "payload", string(b))
	}
}

func TestClient_DeduplicationKeyIncludesQuery(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_, _ = w.Write([]byte(`"` + r.URL.Query().Get("page") + `"`))
	}))
	defer server.Close()

	client := NewClient()
	pages := []string{"1", "2"}
	results := make([]*Result, len(pages))
	var g errgroup.Group
	for i, page := range pages {
		g.Go(func() error {
			res, err := client.Get(context.Background(), server.URL, &RequestOptions{
				Deduplicate: true,
				QueryParams: Params{{Key: "page", Value: page}},
			})
			results[i] = res
			return err
		})
	}

	require.Eventually(t, func() bool {
		return calls.Load() == 2
	}, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	assert.Equal(t, "1", results[0].Data)
	assert.Equal(t, "2", results[1].Data)
}

func TestClient_DeduplicatedFailureIsShared(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient()
	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := client.Get(context.Background(), server.URL, &RequestOptions{Deduplicate: true})
			errs <- err
		}()
	}
	require.Eventually(t, func() bool {
		return client.Coordinator().Waiters(server.URL) == 1
	}, time.Second, time.Millisecond)
	close(release)

	assert.ErrorIs(t, <-errs, ErrNotAuthorized)
	assert.ErrorIs(t, <-errs, ErrNotAuthorized)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_WaiterTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient()

	ownerDone := make(chan error, 1)
	go func() {
		_, err := client.Get(context.Background(), server.URL, &RequestOptions{Deduplicate: true})
		ownerDone <- err
	}()
	require.Eventually(t, func() bool {
		return client.Coordinator().HasOngoing(server.URL)
	}, time.Second, time.Millisecond)

	_, err := client.Get(context.Background(), server.URL, &RequestOptions{
		Deduplicate: true,
		WaitTimeout: 20 * time.Millisecond,
	})
	assert.ErrorIs(t, err, queue.ErrTimeout)

	close(release)
	assert.NoError(t, <-ownerDone)
}

func TestClient_NoDeduplicationByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient()
	for range 3 {
		_, err := client.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_SharedCoordinator(t *testing.T) {
	q := queue.New[*Outcome]((*Outcome).Clone)
	a := NewClient(WithCoordinator(q))
	b := NewClient(WithCoordinator(q))
	c := NewClient()

	assert.Same(t, a.Coordinator(), b.Coordinator())
	assert.NotSame(t, a.Coordinator(), c.Coordinator())
}

type fakeDoer struct {
	calls atomic.Int32
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.calls.Add(1)
	return &http.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"path":"` + req.URL.Path + `"}`)),
	}, nil
}

func TestClient_WithTransport(t *testing.T) {
	doer := &fakeDoer{}
	client := NewClient(WithTransport(doer))

	res, err := client.Get(context.Background(), "https://api.example.com/items", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "/items"}, res.Data)
	assert.Equal(t, int32(1), doer.calls.Load())
}

func TestClient_BaseURL(t *testing.T) {
	client := NewClient(WithTransport(&fakeDoer{}), WithBaseURL("https://api.example.com/v1/"))

	res, err := client.Get(context.Background(), "/items", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "/v1/items"}, res.Data)

	res, err = client.Get(context.Background(), "https://other.example.com/x", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "/x"}, res.Data)
}

type recordingObserver struct {
	statuses []int
}

func (r *recordingObserver) ObserveTransport(method, url string, status int, d time.Duration, err error) {
	r.statuses = append(r.statuses, status)
}

func TestClient_TransportObserver(t *testing.T) {
	obs := &recordingObserver{}
	client := NewClient(WithTransport(&fakeDoer{}), WithTransportObserver(obs))

	_, err := client.Get(context.Background(), "https://api.example.com/a", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{200}, obs.statuses)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	client := NewClient(WithTransport(&fakeDoer{}), WithRateLimit(0.001, 1))

	_, err := client.Get(context.Background(), "https://api.example.com/a", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.Get(ctx, "https://api.example.com/a", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestClient_FollowRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`"final"`))
			return
		}
		redirectCount++
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(true))
	res, err := client.Get(context.Background(), server.URL+"/redirect", nil)

	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "final", res.Data)
	assert.Equal(t, 1, redirectCount)
}

func TestClient_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(false))
	_, err := client.Get(context.Background(), server.URL+"/redirect", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 302, apiErr.StatusCode)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid http URL",
			url:     "http://example.com/path",
			wantErr: false,
		},
		{
			name:    "valid https URL",
			url:     "https://example.com/path",
			wantErr: false,
		},
		{
			name:    "invalid scheme",
			url:     "ftp://example.com",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing scheme",
			url:     "example.com/path",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing host",
			url:     "http:///path",
			wantErr: true,
			errMsg:  "URL must have a host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
