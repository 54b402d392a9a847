package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/extbridge/packages/queue"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
	// DefaultWaitTimeout is how long a de-duplicated request waits for the owner
	DefaultWaitTimeout = queue.DefaultTimeout

	// OriginHeader marks requests as coming from this client.
	OriginHeader = "source"
	// DefaultOrigin is the OriginHeader value unless WithOrigin overrides it.
	DefaultOrigin = "browser-extension"
)

// Doer performs a single HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportObserver is told about every transport call the client makes.
// status is zero when err is non-nil.
type TransportObserver interface {
	ObserveTransport(method, url string, status int, duration time.Duration, err error)
}

type Client struct {
	httpClient     Doer
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string

	baseURL     string
	auth        AuthProvider
	origin      string
	requestType RequestType
	deduplicate bool
	waitTimeout time.Duration

	queue         *queue.Coordinator[*Outcome]
	queueObserver queue.Observer
	observer      TransportObserver
	limiter       *rate.Limiter
	logger        logrus.FieldLogger
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
		auth:           NoAuth{},
		origin:         DefaultOrigin,
		requestType:    RequestTypeJSON,
		waitTimeout:    DefaultWaitTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}

	if c.httpClient == nil {
		c.httpClient = c.newHTTPClient()
	}

	if c.queue == nil {
		c.queue = queue.New[*Outcome]((*Outcome).Clone,
			queue.WithTimeout(c.waitTimeout),
			queue.WithObserver(c.queueObserver),
			queue.WithLogger(c.logger),
		)
	}

	return c
}

func (c *Client) newHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !c.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       c.timeout,
		CheckRedirect: redirectPolicy,
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithTransport replaces the underlying HTTP client. Timeout, redirect, SSL
// and proxy options are ignored when a transport is supplied.
func WithTransport(d Doer) ClientOption {
	return func(c *Client) {
		c.httpClient = d
	}
}

// WithBaseURL makes endpoints that are not absolute http(s) URLs relative to
// base.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithAuthProvider sets the source of authentication headers
func WithAuthProvider(p AuthProvider) ClientOption {
	return func(c *Client) {
		if p == nil {
			p = NoAuth{}
		}
		c.auth = p
	}
}

// WithOrigin sets the value of the origin marker header
func WithOrigin(origin string) ClientOption {
	return func(c *Client) {
		c.origin = origin
	}
}

// WithRequestType sets the default decode mode
func WithRequestType(t RequestType) ClientOption {
	return func(c *Client) {
		c.requestType = t
	}
}

// WithDeduplicate de-duplicates every request, not only those that ask for it
func WithDeduplicate(dedupe bool) ClientOption {
	return func(c *Client) {
		c.deduplicate = dedupe
	}
}

// WithWaitTimeout sets how long a de-duplicated request waits for the owner
func WithWaitTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.waitTimeout = d
	}
}

// WithCoordinator shares a coordinator between clients. By default every
// client owns its own.
func WithCoordinator(q *queue.Coordinator[*Outcome]) ClientOption {
	return func(c *Client) {
		c.queue = q
	}
}

// WithQueueObserver receives coordinator events of the client's own coordinator
func WithQueueObserver(o queue.Observer) ClientOption {
	return func(c *Client) {
		c.queueObserver = o
	}
}

// WithTransportObserver receives a callback after every transport call
func WithTransportObserver(o TransportObserver) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// WithRateLimit caps transport calls at rps per second. Coalesced waiters do
// not consume tokens.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// Coordinator returns the coordinator used for de-duplicated requests.
func (c *Client) Coordinator() *queue.Coordinator[*Outcome] {
	return c.queue
}

// Request composes the URL and headers, performs the transport call either
// directly or through the coordinator, and decodes the response.
func (c *Client) Request(ctx context.Context, endpoint string, opts *RequestOptions) (*Result, error) {
	o := c.resolve(opts)

	requestURL, err := BuildURL(c.resolveEndpoint(endpoint), o.QueryParams)
	if err != nil {
		return nil, err
	}

	headers, err := c.buildHeaders(requestURL, o)
	if err != nil {
		return nil, fmt.Errorf("building auth headers: %w", err)
	}

	var out *Outcome
	if o.Deduplicate {
		out, err = c.coalesce(ctx, requestURL, headers, o)
	} else {
		out, err = c.fetch(ctx, requestURL, headers, o)
	}
	if err != nil {
		return nil, err
	}

	return c.handleResponse(out, requestURL, o.RequestType)
}

func (c *Client) resolveEndpoint(endpoint string) string {
	if c.baseURL == "" || strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) resolve(opts *RequestOptions) *RequestOptions {
	o := RequestOptions{}
	if opts != nil {
		o = *opts
	}
	if o.Method == "" {
		o.Method = http.MethodGet
	}
	if o.RequestType == "" {
		o.RequestType = c.requestType
	}
	if c.deduplicate {
		o.Deduplicate = true
	}
	return &o
}

// buildHeaders merges auth headers, the origin marker, client defaults and
// caller headers, in that order of increasing precedence.
func (c *Client) buildHeaders(requestURL string, o *RequestOptions) (http.Header, error) {
	authHeaders, err := c.auth.AuthHeaders(&AuthRequest{
		Method:  o.Method,
		URL:     requestURL,
		Headers: o.Headers,
		Body:    o.Body,
	})
	if err != nil {
		return nil, err
	}

	h := make(http.Header)
	for k, v := range authHeaders {
		h.Set(k, v)
	}
	if c.origin != "" {
		h.Set(OriginHeader, c.origin)
	}
	for k, v := range c.defaultHeaders {
		h.Set(k, v)
	}
	for k, v := range o.Headers {
		h.Set(k, v)
	}
	return h, nil
}

// coalesce performs the transport call as owner of key, or waits for the
// current owner's outcome. The owner's call is detached from the caller's
// cancellation since its outcome is shared with every waiter.
func (c *Client) coalesce(ctx context.Context, key string, headers http.Header, o *RequestOptions) (*Outcome, error) {
	out, owner, err := c.queue.AcquireOrWait(ctx, key, o.WaitTimeout)
	if !owner {
		return out, err
	}

	defer func() {
		if r := recover(); r != nil {
			c.queue.Release(key, nil, fmt.Errorf("request for %s panicked: %v", key, r))
			panic(r)
		}
	}()

	out, err = c.fetch(context.WithoutCancel(ctx), key, headers, o)
	c.queue.Release(key, out, err)
	return out, err
}

func (c *Client) fetch(ctx context.Context, requestURL string, headers http.Header, o *RequestOptions) (*Outcome, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	var body io.Reader
	if len(o.Body) > 0 {
		body = bytes.NewReader(o.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, o.Method, requestURL, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = headers.Clone()

	log := c.logger.WithFields(logrus.Fields{"method": o.Method, "url": requestURL})

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		c.observe(o.Method, requestURL, 0, duration, err)
		log.WithError(err).Debug("transport call failed")
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.observe(o.Method, requestURL, httpResp.StatusCode, duration, err)
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.observe(o.Method, requestURL, httpResp.StatusCode, duration, nil)
	log.WithFields(logrus.Fields{"status": httpResp.StatusCode, "duration": duration}).Debug("transport call completed")

	return &Outcome{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header.Clone(),
		Body:       respBody,
		Duration:   duration,
	}, nil
}

func (c *Client) observe(method, url string, status int, d time.Duration, err error) {
	if c.observer != nil {
		c.observer.ObserveTransport(method, url, status, d, err)
	}
}

func (c *Client) handleResponse(out *Outcome, requestURL string, requestType RequestType) (*Result, error) {
	if !out.IsSuccess() {
		apiErr := classify(out)
		c.logger.WithFields(logrus.Fields{
			"url":    requestURL,
			"status": out.StatusCode,
			"kind":   apiErr.Kind,
		}).Warn("request failed")
		return nil, apiErr
	}

	var data any
	switch requestType {
	case RequestTypeJSON:
		if len(bytes.TrimSpace(out.Body)) > 0 {
			if err := json.Unmarshal(out.Body, &data); err != nil {
				return nil, fmt.Errorf("decoding response: %w", err)
			}
		}
	case RequestTypeStream:
		data = out.Body
	default:
		return nil, &UnsupportedRequestTypeError{Type: requestType}
	}

	return &Result{
		Status: out.StatusCode,
		Data:   data,
	}, nil
}

func (c *Client) Get(ctx context.Context, endpoint string, opts *RequestOptions) (*Result, error) {
	return c.Request(ctx, endpoint, withMethod(http.MethodGet, opts))
}

func (c *Client) Delete(ctx context.Context, endpoint string, opts *RequestOptions) (*Result, error) {
	return c.Request(ctx, endpoint, withMethod(http.MethodDelete, opts))
}

// Post JSON-encodes body. A nil body sends no payload.
func (c *Client) Post(ctx context.Context, endpoint string, body any, opts *RequestOptions) (*Result, error) {
	o, err := withJSONBody(http.MethodPost, body, opts)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, endpoint, o)
}

func (c *Client) Put(ctx context.Context, endpoint string, body any, opts *RequestOptions) (*Result, error) {
	o, err := withJSONBody(http.MethodPut, body, opts)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, endpoint, o)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body any, opts *RequestOptions) (*Result, error) {
	o, err := withJSONBody(http.MethodPatch, body, opts)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, endpoint, o)
}

func withMethod(method string, opts *RequestOptions) *RequestOptions {
	o := RequestOptions{}
	if opts != nil {
		o = *opts
	}
	o.Method = method
	return &o
}

func withJSONBody(method string, body any, opts *RequestOptions) (*RequestOptions, error) {
	o := withMethod(method, opts)
	if body == nil {
		return o, nil
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	o.Body = encoded

	headers := make(map[string]string, len(o.Headers)+1)
	for k, v := range o.Headers {
		headers[k] = v
	}
	if !HasHeader(headers, "Content-Type") {
		headers["Content-Type"] = "application/json"
	}
	o.Headers = headers
	return o, nil
}

// HasHeader reports whether headers holds key under any capitalisation.
func HasHeader(headers map[string]string, key string) bool {
	for k := range headers {
		if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(key) {
			return true
		}
	}
	return false
}
