package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/extbridge/packages/storage"
)

const (
	// CounterType is the message type served by CounterHandler.
	CounterType = "counter"

	SubTypeGet    = "get"
	SubTypeUpdate = "update"

	// CounterKey is the storage key holding the counter value.
	CounterKey = "counter"
)

// CounterHandler reads and writes a numeric counter in a Store.
//
//	get    -> 200 with the stored value (nil when unset)
//	update -> 200 after storing data, 400 when data is not a number
//
// Storage failures answer 500 and a message without a subType answers 405.
type CounterHandler struct {
	store  storage.Store
	logger logrus.FieldLogger
}

func NewCounterHandler(store storage.Store, logger logrus.FieldLogger) *CounterHandler {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &CounterHandler{store: store, logger: logger}
}

func (h *CounterHandler) Handle(ctx context.Context, msg *Message) *Response {
	switch msg.SubType {
	case SubTypeGet:
		return h.get(ctx)
	case SubTypeUpdate:
		return h.update(ctx, msg.Data)
	default:
		return &Response{StatusCode: http.StatusMethodNotAllowed}
	}
}

func (h *CounterHandler) get(ctx context.Context) *Response {
	var value *float64
	if _, err := storage.GetInto(ctx, h.store, CounterKey, &value); err != nil {
		h.logger.WithError(err).Error("reading counter")
		return &Response{StatusCode: http.StatusInternalServerError, Data: err.Error()}
	}
	if value == nil {
		return &Response{StatusCode: http.StatusOK}
	}
	return &Response{StatusCode: http.StatusOK, Data: *value}
}

func (h *CounterHandler) update(ctx context.Context, data json.RawMessage) *Response {
	var value *float64
	if len(data) == 0 || json.Unmarshal(data, &value) != nil || value == nil {
		return &Response{StatusCode: http.StatusBadRequest}
	}

	if err := h.store.Set(ctx, CounterKey, *value); err != nil {
		h.logger.WithError(err).Error("writing counter")
		return &Response{StatusCode: http.StatusInternalServerError, Data: err.Error()}
	}
	return &Response{StatusCode: http.StatusOK}
}
