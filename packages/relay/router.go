package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxMessageSize bounds the body accepted by the HTTP endpoint.
const MaxMessageSize = 1 << 20

// Handler answers messages of one type.
type Handler interface {
	Handle(ctx context.Context, msg *Message) *Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) *Response

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) *Response {
	return f(ctx, msg)
}

// Router dispatches messages to the handler registered for their type.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   logrus.FieldLogger
}

func NewRouter(logger logrus.FieldLogger) *Router {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Router{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register sets the handler for msgType, replacing any previous one.
func (r *Router) Register(msgType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = h
}

// Dispatch routes msg. ok is false when no handler is registered for its type.
func (r *Router) Dispatch(ctx context.Context, msg *Message) (resp *Response, ok bool) {
	r.mu.RLock()
	h, ok := r.handlers[msg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	resp = h.Handle(ctx, msg)
	if resp == nil {
		resp = &Response{StatusCode: http.StatusInternalServerError}
	}
	return resp, true
}

// ServeHTTP accepts a JSON Message in a POST body and writes the Response.
// Dispatched messages always get HTTP 200; the outcome is in the body.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	requestID := uuid.NewString()
	log := r.logger.WithField("request_id", requestID)
	w.Header().Set("X-Request-Id", requestID)

	if req.Method != http.MethodPost {
		writeResponse(w, http.StatusMethodNotAllowed, &Response{StatusCode: http.StatusMethodNotAllowed})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(req.Body, MaxMessageSize))
	if err != nil {
		writeResponse(w, http.StatusBadRequest, &Response{StatusCode: http.StatusBadRequest, Data: err.Error()})
		return
	}
	if err := Validate(raw); err != nil {
		log.WithError(err).Debug("rejected message")
		writeResponse(w, http.StatusBadRequest, &Response{StatusCode: http.StatusBadRequest, Data: err.Error()})
		return
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		writeResponse(w, http.StatusBadRequest, &Response{StatusCode: http.StatusBadRequest, Data: err.Error()})
		return
	}

	log = log.WithFields(logrus.Fields{"type": msg.Type, "subType": msg.SubType})
	resp, ok := r.Dispatch(req.Context(), &msg)
	if !ok {
		log.Debug("no handler for message type")
		writeResponse(w, http.StatusNotFound, &Response{StatusCode: http.StatusNotFound})
		return
	}

	log.WithField("status", resp.StatusCode).Info("message handled")
	writeResponse(w, http.StatusOK, resp)
}

func writeResponse(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
