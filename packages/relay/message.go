package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Message is a request sent to the background process.
type Message struct {
	Type    string          `json:"type"`
	SubType string          `json:"subType,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds a message, JSON-encoding data when it is not nil.
func NewMessage(msgType, subType string, data any) (*Message, error) {
	m := &Message{Type: msgType, SubType: subType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encoding message data: %w", err)
		}
		m.Data = raw
	}
	return m, nil
}

// Response is the answer to a Message.
type Response struct {
	StatusCode int `json:"statusCode"`
	Data       any `json:"data,omitempty"`
}

// OK reports whether the response signals success.
func (r *Response) OK() bool {
	return r.StatusCode == 200
}

// RelayError is returned by Sender for responses whose status is not 200.
type RelayError struct {
	StatusCode int
	Data       any
}

func (e *RelayError) Error() string {
	if e.Data == nil {
		return fmt.Sprintf("relay: message failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("relay: message failed with status %d: %v", e.StatusCode, e.Data)
}

const messageSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type"],
	"properties": {
		"type":    {"type": "string", "minLength": 1},
		"subType": {"type": "string"}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(messageSchema)

// Validate checks a raw message against the message schema.
func Validate(raw []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("invalid message: %s", strings.Join(errs, "; "))
	}
	return nil
}
