package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"storefront-payments/internal/config"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const NVP_VERSION = "124.0"

// NVPClient talks to the legacy PayPal Name-Value-Pair API.
type NVPClient interface {
	Do(ctx context.Context, method string, values url.Values) (*NVPResponse, error)
}

type nvpClientImpl struct {
	httpClient *http.Client
	endpoint   string
	username   string
	password   string
	signature  string
}

type NVPResponse struct {
	Ack           string
	CorrelationID string
	Timestamp     string
	Values        url.Values
}

func (r *NVPResponse) Get(key string) string {
	return r.Values.Get(key)
}

// NVPError carries the first L_ERRORCODE/L_SHORTMESSAGE pair of a failed call.
type NVPError struct {
	Ack          string
	ErrorCode    string
	ShortMessage string
	LongMessage  string
	Severity     string
}

func (e *NVPError) Error() string {
	if e.ErrorCode != "" && e.ShortMessage != "" {
		return "PayPal NVP error " + e.ErrorCode + ": " + e.ShortMessage
	}
	if e.Ack != "" {
		return "PayPal NVP " + e.Ack
	}
	return "PayPal NVP request failed"
}

func NewNVPClient(cfg *config.PaypalNVP) NVPClient {
	return &nvpClientImpl{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		endpoint:  cfg.Endpoint,
		username:  cfg.Username,
		password:  cfg.Password,
		signature: cfg.Signature,
	}
}

func (c *nvpClientImpl) Do(ctx context.Context, method string, values url.Values) (*NVPResponse, error) {
	form := url.Values{}
	for k, v := range values {
		form[k] = v
	}
	form.Set("METHOD", method)
	form.Set("USER", c.username)
	form.Set("PWD", c.password)
	form.Set("SIGNATURE", c.signature)
	form.Set("VERSION", NVP_VERSION)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nvp %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read nvp response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("nvp %s: http status %d", method, resp.StatusCode)
	}

	responseValues, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse nvp response: %w", err)
	}

	response := &NVPResponse{
		Ack:           responseValues.Get("ACK"),
		CorrelationID: responseValues.Get("CORRELATIONID"),
		Timestamp:     responseValues.Get("TIMESTAMP"),
		Values:        responseValues,
	}

	ack := strings.ToLower(response.Ack)
	if ack != "success" && ack != "successwithwarning" {
		return response, &NVPError{
			Ack:          response.Ack,
			ErrorCode:    responseValues.Get("L_ERRORCODE0"),
			ShortMessage: responseValues.Get("L_SHORTMESSAGE0"),
			LongMessage:  responseValues.Get("L_LONGMESSAGE0"),
			Severity:     responseValues.Get("L_SEVERITYCODE0"),
		}
	}

	return response, nil
}
