// Package telephony is the REST gateway client for the telephony provider.
// It covers the two provider operations this service performs on its own
// initiative: searching for available phone numbers and purchasing one.
// Everything else (call control, recording, transcription) happens over
// webhooks the provider initiates.
package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the provider's REST API base URL.
const DefaultBaseURL = "https://api.twilio.com/2010-04-01"

// maxResponseBytes caps how much of a provider response body is read.
const maxResponseBytes = 1 << 20

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int    // HTTP status
	Code       int    // provider error code, 0 if absent
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("telephony: provider error %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("telephony: provider error %d: %s", e.StatusCode, e.Message)
}

// Capabilities describes what a number supports.
type Capabilities struct {
	Voice bool `json:"voice"`
	SMS   bool `json:"sms"`
}

// AvailableNumber is a purchasable candidate returned by a search.
type AvailableNumber struct {
	Number       string       `json:"phone_number"`
	FriendlyName string       `json:"friendly_name"`
	Locality     string       `json:"locality"`
	Region       string       `json:"region"`
	Capabilities Capabilities `json:"capabilities"`
}

// SearchFilter narrows a number search. At most one location hint is
// honoured; the provider may return nearby alternatives when nothing
// matches the hint exactly.
type SearchFilter struct {
	AreaCode   string // 3-digit area code
	PostalCode string // 5-digit ZIP
	Limit      int    // max candidates, provider default when 0
}

// PurchaseRequest buys a specific number and registers its webhook URLs.
type PurchaseRequest struct {
	Number               string
	FriendlyName         string
	VoiceURL             string // inbound-call webhook
	VoiceMethod          string
	StatusCallback       string // call status notifications
	StatusCallbackMethod string
}

// PurchasedNumber is the provider's record of a bought number.
type PurchasedNumber struct {
	SID          string       `json:"sid"`
	Number       string       `json:"phone_number"`
	FriendlyName string       `json:"friendly_name"`
	Capabilities Capabilities `json:"capabilities"`
}

// Client talks to the provider's REST API with a fixed credential pair.
// Which pair (test or live) is decided at construction from config; no
// call site consults the environment gate.
type Client struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
}

// NewClient creates a provider REST client. baseURL is DefaultBaseURL in
// production; tests point it at a local server.
func NewClient(baseURL, accountSID, authToken string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
	}
}

// SearchAvailableNumbers returns purchasable numbers matching the filter.
// An empty slice (not an error) means the provider had no candidates for
// the location hint.
func (c *Client) SearchAvailableNumbers(ctx context.Context, filter SearchFilter) ([]AvailableNumber, error) {
	q := url.Values{}
	if filter.AreaCode != "" {
		q.Set("AreaCode", filter.AreaCode)
	}
	if filter.PostalCode != "" {
		q.Set("InPostalCode", filter.PostalCode)
	}
	if filter.Limit > 0 {
		q.Set("PageSize", strconv.Itoa(filter.Limit))
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/AvailablePhoneNumbers/US/Local.json", c.baseURL, c.accountSID)
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var result struct {
		AvailablePhoneNumbers []AvailableNumber `json:"available_phone_numbers"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return result.AvailablePhoneNumbers, nil
}

// PurchaseNumber buys the number and registers its webhook URLs.
func (c *Client) PurchaseNumber(ctx context.Context, req PurchaseRequest) (*PurchasedNumber, error) {
	form := url.Values{}
	form.Set("PhoneNumber", req.Number)
	if req.FriendlyName != "" {
		form.Set("FriendlyName", req.FriendlyName)
	}
	if req.VoiceURL != "" {
		form.Set("VoiceUrl", req.VoiceURL)
		method := req.VoiceMethod
		if method == "" {
			method = http.MethodPost
		}
		form.Set("VoiceMethod", method)
	}
	if req.StatusCallback != "" {
		form.Set("StatusCallback", req.StatusCallback)
		method := req.StatusCallbackMethod
		if method == "" {
			method = http.MethodPost
		}
		form.Set("StatusCallbackMethod", method)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/IncomingPhoneNumbers.json", c.baseURL, c.accountSID)

	var purchased PurchasedNumber
	if err := c.do(ctx, http.MethodPost, endpoint, form, &purchased); err != nil {
		return nil, err
	}
	return &purchased, nil
}

// ReleaseNumber returns a purchased number to the provider. Used as the
// compensating action when the local persistence write fails after a
// successful purchase.
func (c *Client) ReleaseNumber(ctx context.Context, numberSID string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/IncomingPhoneNumbers/%s.json", c.baseURL, c.accountSID, numberSID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// do sends one authenticated request and decodes the JSON response into
// out (when non-nil). Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("telephony: creating request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("telephony: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var detail struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &detail) == nil && detail.Message != "" {
			apiErr.Code = detail.Code
			apiErr.Message = detail.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("telephony: decoding response: %w", err)
	}
	return nil
}
