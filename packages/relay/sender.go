package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	exthttp "github.com/abdul-hamid-achik/extbridge/packages/http"
)

// Sender posts messages to a relay endpoint served by Router.ServeHTTP.
type Sender struct {
	client   *exthttp.Client
	endpoint string
}

// NewSender creates a Sender for endpoint using client for transport.
func NewSender(client *exthttp.Client, endpoint string) *Sender {
	return &Sender{client: client, endpoint: endpoint}
}

// Send delivers msg and returns the response data when the handler answered
// 200. Any other status yields a *RelayError carrying the response data,
// including rejections the relay reports on the HTTP status itself.
func (s *Sender) Send(ctx context.Context, msg *Message) (any, error) {
	res, err := s.client.Post(ctx, s.endpoint, msg, nil)
	if err != nil {
		if relayErr := rejection(err); relayErr != nil {
			return nil, relayErr
		}
		return nil, fmt.Errorf("sending %s message: %w", msg.Type, err)
	}

	var resp Response
	if err := res.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding relay response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RelayError{StatusCode: resp.StatusCode, Data: resp.Data}
	}
	return resp.Data, nil
}

// SendType builds a message from its parts and sends it.
func (s *Sender) SendType(ctx context.Context, msgType, subType string, data any) (any, error) {
	msg, err := NewMessage(msgType, subType, data)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, msg)
}

// rejection recovers the relay envelope from a non-2xx reply written by
// Router.ServeHTTP. It returns nil when err carries no such envelope.
func rejection(err error) *RelayError {
	var apiErr *exthttp.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	var resp Response
	if json.Unmarshal([]byte(apiErr.Text), &resp) != nil || resp.StatusCode == 0 {
		return nil
	}
	return &RelayError{StatusCode: resp.StatusCode, Data: resp.Data}
}
