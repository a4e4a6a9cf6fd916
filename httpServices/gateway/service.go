package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Client is the raw HTTP client for the external payment processor. It
// performs no status interpretation; callers go through the payments adapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (c *Client) do(method, path string, payload interface{}) (*IntentResponse, error) {
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	httpReq, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.New("payment gateway returned non-OK status: " + resp.Status)
	}

	var apiResp IntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, err
	}

	return &apiResp, nil
}

// CreateIntent places a hold on funds and returns the processor intent.
func (c *Client) CreateIntent(req CreateIntentRequest) (*IntentResponse, error) {
	return c.do("POST", "/v1/payment_intents", req)
}

// GetIntent fetches the authoritative processor state of an intent.
func (c *Client) GetIntent(ref string) (*IntentResponse, error) {
	return c.do("GET", "/v1/payment_intents/"+ref, nil)
}

// Capture converts a held authorization into a transfer of funds.
func (c *Client) Capture(ref string) (*IntentResponse, error) {
	return c.do("POST", "/v1/payment_intents/"+ref+"/capture", nil)
}

// Cancel releases a pre-capture hold.
func (c *Client) Cancel(ref string) (*IntentResponse, error) {
	return c.do("POST", "/v1/payment_intents/"+ref+"/cancel", nil)
}

// Refund returns captured funds, optionally partially.
func (c *Client) Refund(ref string, req RefundRequest) (*IntentResponse, error) {
	return c.do("POST", "/v1/payment_intents/"+ref+"/refund", req)
}
