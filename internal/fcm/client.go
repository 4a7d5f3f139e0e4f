package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Scope required for the FCM v1 send endpoint.
const Scope = "https://www.googleapis.com/auth/firebase.messaging"

const broadcastTopic = "all"

// Client broadcasts a payload to all subscribers of the topic. It
// never returns an error past its boundary: every failure (token,
// network, non-200) comes back as ok=false with the wire-level text
// in detail.
type Client struct {
	endpoint string
	tokens   oauth2.TokenSource
	ttl      time.Duration
	client   *http.Client
}

func NewClient(endpoint string, tokens oauth2.TokenSource, ttl time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		tokens:   tokens,
		ttl:      ttl,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type envelope struct {
	Message message `json:"message"`
}

type message struct {
	Topic   string            `json:"topic"`
	Data    map[string]string `json:"data"`
	Android androidConfig     `json:"android"`
}

type androidConfig struct {
	Priority string `json:"priority"`
	TTL      string `json:"ttl"`
}

func (c *Client) Send(ctx context.Context, content string) (bool, string) {
	token, err := c.tokens.Token()
	if err != nil {
		return false, fmt.Sprintf("token acquisition failed: %v", err)
	}

	reqBody, err := json.Marshal(envelope{
		Message: message{
			Topic: broadcastTopic,
			Data:  map[string]string{"url": content},
			Android: androidConfig{
				Priority: "HIGH",
				TTL:      fmt.Sprintf("%ds", int(c.ttl.Seconds())),
			},
		},
	})
	if err != nil {
		return false, err.Error()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		if len(body) == 0 {
			return false, resp.Status
		}
		return false, string(body)
	}

	return true, string(body)
}
