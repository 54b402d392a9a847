package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	exthttp "github.com/abdul-hamid-achik/extbridge/packages/http"
	"github.com/abdul-hamid-achik/extbridge/packages/params"
)

// FetchType is the message type served by FetchHandler.
const FetchType = "fetch"

// FetchHandler performs HTTP requests on behalf of the sender. The message
// SubType is the method (get when empty) and Data is an object:
//
//	{"endpoint": "...", "params": {...}, "headers": {...}, "body": ..., "dedupe": true}
//
// params keep their document order; array values become key[]=value pairs.
// An API failure answers with its status code and the decoded error body.
type FetchHandler struct {
	client atomic.Pointer[exthttp.Client]
	names  atomic.Pointer[map[string]string]
	logger logrus.FieldLogger
}

func NewFetchHandler(client *exthttp.Client, logger logrus.FieldLogger) *FetchHandler {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	h := &FetchHandler{logger: logger}
	h.client.Store(client)
	return h
}

// SetClient swaps the client used for subsequent messages.
func (h *FetchHandler) SetClient(client *exthttp.Client) {
	h.client.Store(client)
}

// SetParamNames renames query params before they are sent. Keys are the
// names senders use, values the names the API expects.
func (h *FetchHandler) SetParamNames(names map[string]string) {
	h.names.Store(&names)
}

func (h *FetchHandler) Handle(ctx context.Context, msg *Message) *Response {
	method := strings.ToUpper(msg.SubType)
	if method == "" {
		method = http.MethodGet
	}
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return &Response{StatusCode: http.StatusMethodNotAllowed}
	}

	data := gjson.ParseBytes(msg.Data)
	endpoint := data.Get("endpoint").String()
	if endpoint == "" {
		return &Response{StatusCode: http.StatusBadRequest, Data: "endpoint is required"}
	}

	opts := &exthttp.RequestOptions{
		Method:      method,
		QueryParams: h.queryParams(data.Get("params")),
		Deduplicate: data.Get("dedupe").Bool(),
	}
	if headers := data.Get("headers"); headers.IsObject() {
		opts.Headers = make(map[string]string)
		headers.ForEach(func(k, v gjson.Result) bool {
			opts.Headers[k.String()] = v.String()
			return true
		})
	}
	if body := data.Get("body"); body.Exists() {
		opts.Body = []byte(body.Raw)
		if opts.Headers == nil {
			opts.Headers = make(map[string]string)
		}
		if !exthttp.HasHeader(opts.Headers, "Content-Type") {
			opts.Headers["Content-Type"] = "application/json"
		}
	}

	res, err := h.client.Load().Request(ctx, endpoint, opts)
	if err != nil {
		var apiErr *exthttp.APIError
		if errors.As(err, &apiErr) {
			return &Response{StatusCode: apiErr.StatusCode, Data: apiErr.JSON()}
		}
		h.logger.WithError(err).WithField("endpoint", endpoint).Warn("fetch failed")
		return &Response{StatusCode: http.StatusBadGateway, Data: err.Error()}
	}

	if b, ok := res.Bytes(); ok {
		return &Response{StatusCode: http.StatusOK, Data: string(b)}
	}
	return &Response{StatusCode: http.StatusOK, Data: res.Data}
}

func (h *FetchHandler) queryParams(obj gjson.Result) exthttp.Params {
	query := paramsFrom(obj)
	if names := h.names.Load(); names != nil {
		query = params.Rename(query, *names)
	}
	return query
}

func paramsFrom(obj gjson.Result) exthttp.Params {
	if !obj.IsObject() {
		return nil
	}
	var out exthttp.Params
	obj.ForEach(func(k, v gjson.Result) bool {
		if v.IsArray() {
			var items []any
			for _, item := range v.Array() {
				items = append(items, item.Value())
			}
			out = out.Add(k.String(), items)
		} else {
			out = out.Add(k.String(), v.Value())
		}
		return true
	})
	return out
}
