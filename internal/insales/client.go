package insales

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"insales-monitor/internal/models"
)

const (
	accountEndpoint = "https://%s/admin/account.json"
	maxBodyBytes    = 1 << 20
	userAgent       = "InSalesPaymentMonitor/1.0"
)

// AccountInfo is the part of the InSales account resource the monitor uses.
type AccountInfo struct {
	PaidTill *time.Time // nil when the platform reports no date
}

type Client struct {
	httpClient *http.Client
	endpoint   string
}

func NewClient(timeout time.Duration) *Client {
	return NewClientWithOptions(&http.Client{Timeout: timeout}, accountEndpoint)
}

// NewClientWithOptions takes the HTTP client and a printf pattern with a
// single %s for the shop domain.
func NewClientWithOptions(httpClient *http.Client, endpoint string) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
	}
}

// FetchAccount reads /admin/account.json for one shop. Errors are either
// *NetworkError or *ParseError.
func (c *Client) FetchAccount(ctx context.Context, domain, apiKey, password string) (*AccountInfo, error) {
	url := fmt.Sprintf(c.endpoint, strings.TrimSpace(domain))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{Domain: domain, Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.SetBasicAuth(apiKey, password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Domain: domain, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Domain: domain, StatusCode: resp.StatusCode, Err: fmt.Errorf("error reading response body: %w", err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &NetworkError{Domain: domain, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	info, err := parseAccount(body)
	if err != nil {
		return nil, &ParseError{Domain: domain, Err: err}
	}
	return info, nil
}

// parseAccount accepts fields at the payload root or nested under "account";
// the nested object wins when present.
func parseAccount(body []byte) (*AccountInfo, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("payload is null")
	}

	fields := payload
	if raw, ok := payload["account"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil && nested != nil {
			fields = nested
		}
	}

	rawPaidTill, ok := fields["paid_till"]
	if !ok {
		return &AccountInfo{}, nil
	}

	var value *string
	if err := json.Unmarshal(rawPaidTill, &value); err != nil {
		return nil, fmt.Errorf("paid_till is not a string: %s", string(rawPaidTill))
	}
	if value == nil || strings.TrimSpace(*value) == "" {
		return &AccountInfo{}, nil
	}

	paidTill, err := parseDate(strings.TrimSpace(*value))
	if err != nil {
		return nil, err
	}
	return &AccountInfo{PaidTill: &paidTill}, nil
}

func parseDate(value string) (time.Time, error) {
	if d, err := time.Parse(time.DateOnly, value); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return models.DateOf(ts), nil
	}
	return time.Time{}, fmt.Errorf("paid_till %q is not an ISO date", value)
}
