package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Transport delivers one rendered message to one WhatsApp endpoint. A
// single best-effort attempt; the router never retries.
type Transport interface {
	Send(ctx context.Context, phone, apiKey, text string) error
}

const (
	// DefaultCallMeBotURL is the CallMeBot WhatsApp gateway endpoint.
	DefaultCallMeBotURL = "https://api.callmebot.com/whatsapp.php"

	defaultSendTimeout = 10 * time.Second
)

// CallMeBotTransport sends messages through the CallMeBot WhatsApp API.
type CallMeBotTransport struct {
	baseURL string
	client  *http.Client
}

// NewCallMeBotTransport builds a transport for the given gateway URL,
// falling back to the public endpoint when empty.
func NewCallMeBotTransport(baseURL string) *CallMeBotTransport {
	if baseURL == "" {
		baseURL = DefaultCallMeBotURL
	}
	return &CallMeBotTransport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultSendTimeout},
	}
}

// NopTransport drops every message. Used when notifications are disabled
// so the rest of the pipeline (filtering, rendering, logging) still runs.
type NopTransport struct{}

func (NopTransport) Send(ctx context.Context, phone, apiKey, text string) error {
	return nil
}

// Send issues the gateway GET once. Any non-200 response is a failure.
func (t *CallMeBotTransport) Send(ctx context.Context, phone, apiKey, text string) error {
	if phone == "" || apiKey == "" || text == "" {
		return errors.New("phone, api key and text are required")
	}

	params := url.Values{}
	params.Set("phone", phone)
	params.Set("apikey", apiKey)
	params.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "building notification request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending notification")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notification gateway returned status %d", resp.StatusCode)
	}
	return nil
}
