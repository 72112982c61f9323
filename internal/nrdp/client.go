package nrdp

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DeliveryStatus tells whether the endpoint accepted the submission.
type DeliveryStatus int

const (
	Delivered DeliveryStatus = iota
	TransportFailed
)

func (s DeliveryStatus) String() string {
	if s == Delivered {
		return "delivered"
	}
	return "transport_failed"
}

// Delivery is the outcome of a submission. Message holds the endpoint's
// acknowledgment when Delivered; Err the reason when TransportFailed.
type Delivery struct {
	Status  DeliveryStatus
	Message string
	Err     error
}

// Client posts check results to one NRDP endpoint. The zero HTTPClient
// means http.DefaultClient: no timeout and no retry.
type Client struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

// NewClient returns a client for url authenticated with token.
func NewClient(url, token string) *Client {
	return &Client{URL: url, Token: token}
}

type response struct {
	Status  string `xml:"status"`
	Message string `xml:"message"`
}

// Submit sends results in one request. It never returns an error; transport
// and decoding failures come back as a TransportFailed delivery.
func (c *Client) Submit(ctx context.Context, results ...CheckResult) Delivery {
	data, err := Marshal(results...)
	if err != nil {
		return failed(err)
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return failed(fmt.Errorf("parsing url: %w", err))
	}
	q := u.Query()
	q.Set("token", strings.TrimSpace(c.Token))
	q.Set("cmd", "submitcheck")
	q.Set("XMLDATA", string(data))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return failed(err)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed(fmt.Errorf("reading response: %w", err))
	}

	var r response
	if err := xml.Unmarshal(body, &r); err != nil {
		return failed(fmt.Errorf("decoding response (%s): %w", resp.Status, err))
	}
	return Delivery{Status: Delivered, Message: strings.TrimSpace(r.Message)}
}

func failed(err error) Delivery {
	return Delivery{Status: TransportFailed, Err: err}
}
