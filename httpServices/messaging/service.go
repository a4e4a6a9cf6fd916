package messaging

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// SendRequest is one outbound email/SMS delivery order.
type SendRequest struct {
	Recipient string `json:"recipient"`
	Channel   string `json:"channel"` // email | sms
	Template  string `json:"template"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body"`
}

// SendResponse is the provider's acknowledgement.
type SendResponse struct {
	MessageID string `json:"message_id"`
	Accepted  bool   `json:"accepted"`
}

// Client is the HTTP client for the outbound message provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

// Send delivers one message through the provider.
func (c *Client) Send(req SendRequest) (*SendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest("POST", c.baseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.New("messaging API returned non-OK status: " + resp.Status)
	}

	var apiResp SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, err
	}

	return &apiResp, nil
}
