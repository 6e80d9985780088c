package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.twilio.com"

// TwilioClient sends messages through the Twilio Programmable Messaging REST API.
type TwilioClient struct {
	baseURL        string
	accountSID     string
	authToken      string
	from           string
	statusCallback string
	client         *http.Client
}

type TwilioOption func(*TwilioClient)

func WithBaseURL(u string) TwilioOption {
	return func(c *TwilioClient) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithStatusCallback(u string) TwilioOption {
	return func(c *TwilioClient) { c.statusCallback = u }
}

func WithTimeout(d time.Duration) TwilioOption {
	return func(c *TwilioClient) { c.client.Timeout = d }
}

func NewTwilioClient(accountSID, authToken, from string, opts ...TwilioOption) *TwilioClient {
	c := &TwilioClient{
		baseURL:    DefaultBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendResult is the part of Twilio's message resource the service keeps.
type SendResult struct {
	SID        string `json:"sid"`
	Status     string `json:"status"`
	From       string `json:"from"`
	To         string `json:"to"`
	AccountSID string `json:"account_sid"`
}

// APIError is a non-2xx answer from Twilio. Code is Twilio's error code when
// the body carried one.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
	MoreInfo   string `json:"more_info"`
	Body       string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twilio error %d (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("unexpected status code: %d body=%q", e.StatusCode, e.Body)
}

func (c *TwilioClient) Send(ctx context.Context, to, body string) (SendResult, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)
	if c.statusCallback != "" {
		form.Set("StatusCallback", c.statusCallback)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return SendResult{}, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		_ = json.Unmarshal(raw, apiErr)
		return SendResult{}, apiErr
	}

	var sr SendResult
	if err := json.Unmarshal(raw, &sr); err != nil {
		return SendResult{}, fmt.Errorf("failed to decode json: %w body=%q", err, string(raw))
	}
	if sr.SID == "" {
		return SendResult{}, fmt.Errorf("missing sid in response body=%q", string(raw))
	}
	return sr, nil
}
