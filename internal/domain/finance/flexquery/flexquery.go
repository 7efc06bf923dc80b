// Package flexquery runs Interactive Brokers flex queries through the flex
// web service and returns the statement they produce.
package flexquery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultServiceURL is the flex statement service endpoint.
const DefaultServiceURL = "https://gdcdyn.interactivebrokers.com/Universal/servlet/FlexStatementService"

// ErrFlexService is returned when the service reports a non-retryable error.
var ErrFlexService = errors.New("flex service error")

type statementResponse struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Status        string   `xml:"Status"`
	ReferenceCode string   `xml:"ReferenceCode"`
	ErrorCode     string   `xml:"ErrorCode"`
	ErrorMessage  string   `xml:"ErrorMessage"`
}

// Client talks to the flex web service.
type Client struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	retryWait  time.Duration
	logger     *slog.Logger
}

func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    DefaultServiceURL,
		retryWait:  5 * time.Second,
		logger:     logger,
	}
}

// Run requests the statement for query and polls until it is ready. The
// service answers "try again" while the statement is being generated.
func (c *Client) Run(ctx context.Context, token, query string) ([]byte, error) {
	ref, err := c.sendRequest(ctx, token, query)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("flex query accepted", slog.String("query", query), slog.String("reference", ref))

	for {
		body, retry, err := c.getStatement(ctx, token, ref)
		if err != nil {
			return nil, err
		}
		if !retry {
			return body, nil
		}

		c.logger.Debug("flex statement not ready", slog.Duration("wait", c.retryWait))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryWait):
		}
	}
}

func (c *Client) sendRequest(ctx context.Context, token, query string) (string, error) {
	body, _, err := c.get(ctx, "SendRequest", token, query)
	if err != nil {
		return "", err
	}
	var resp statementResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding flex response: %w", err)
	}
	if resp.ReferenceCode == "" {
		return "", fmt.Errorf("%w: %s %s", ErrFlexService, resp.ErrorCode, resp.ErrorMessage)
	}
	return resp.ReferenceCode, nil
}

// getStatement returns the statement body, or retry=true while it is pending.
func (c *Client) getStatement(ctx context.Context, token, ref string) ([]byte, bool, error) {
	body, contentType, err := c.get(ctx, "GetStatement", token, ref)
	if err != nil {
		return nil, false, err
	}
	if !strings.HasPrefix(contentType, "text/xml") {
		return body, false, nil
	}

	var resp statementResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		// XML flex statements are statements too
		return body, false, nil
	}
	if strings.Contains(resp.ErrorMessage, "try again") {
		return nil, true, nil
	}
	return nil, false, fmt.Errorf("%w: %s %s", ErrFlexService, resp.ErrorCode, resp.ErrorMessage)
}

func (c *Client) get(ctx context.Context, action, token, query string) ([]byte, string, error) {
	params := url.Values{}
	params.Set("t", token)
	params.Set("q", query)
	params.Set("v", "3")
	u := c.baseURL + "." + action + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading response: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
