// REST client for the WooCommerce orders/products API.
// Resty transport + shared RetryPolicy.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"opsportal/src/externalmodel"
)

const (
	wooAPIPrefix = "/wp-json/wc/v3"

	// First attempt gets the baseline timeout; retries get a longer one to
	// tolerate a slow but recovering upstream.
	defaultBaseTimeout  = 15 * time.Second
	defaultRetryTimeout = 25 * time.Second

	// Response header carrying the total matching item count.
	totalCountHeader = "X-WP-Total"
)

// OrdersQuery describes one page request against the orders resource.
type OrdersQuery struct {
	Statuses      []string
	Page          int
	PerPage       int
	CreatedAfter  time.Time
	ModifiedAfter time.Time
}

// WooClient talks to a single WooCommerce store.
type WooClient struct {
	http           *resty.Client
	consumerKey    string
	consumerSecret string
	policy         RetryPolicy
	baseTimeout    time.Duration
	retryTimeout   time.Duration
}

func NewWooClient(baseURL, consumerKey, consumerSecret string) *WooClient {
	if baseURL == "" {
		config := GetConfig()
		baseURL = config.WooBaseURL
		logger.Warnf("No base URL provided, using configured default: %s", baseURL)
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/") + wooAPIPrefix)

	return &WooClient{
		http:           httpClient,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		policy:         DefaultRetryPolicy(),
		baseTimeout:    defaultBaseTimeout,
		retryTimeout:   defaultRetryTimeout,
	}
}

// WithRetryPolicy overrides the default retry schedule. Useful for tests.
func (c *WooClient) WithRetryPolicy(policy RetryPolicy) *WooClient {
	c.policy = policy
	return c
}

func (c *WooClient) timeoutFor(attempt int) time.Duration {
	if attempt <= 1 {
		return c.baseTimeout
	}
	return c.retryTimeout
}

// doRequest performs one logical request with the retry policy applied.
// The returned error is always a *RequestError (or a context error).
func (c *WooClient) doRequest(ctx context.Context, path string, query map[string]string) ([]byte, http.Header, error) {
	var body []byte
	var header http.Header

	err := c.policy.Do(ctx, "GET "+path, func(attempt int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(attempt))
		defer cancel()

		req := c.http.R().
			SetContext(attemptCtx).
			SetHeader("Accept", "application/json").
			SetQueryParam("consumer_key", c.consumerKey).
			SetQueryParam("consumer_secret", c.consumerSecret)

		for k, v := range query {
			req.SetQueryParam(k, v)
		}

		resp, err := req.Get(path)
		if err != nil {
			return &RequestError{Kind: classifyTransportErr(err), URL: path, Err: err}
		}

		if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
			return &RequestError{
				Kind:       ErrKindHTTP,
				StatusCode: resp.StatusCode(),
				URL:        path,
				Err:        fmt.Errorf("upstream returned %s: %s", resp.Status(), snippet(resp.Body())),
			}
		}

		// A 200 that is not JSON means a misconfigured endpoint (commonly
		// an HTML error page). Check Content-Type first; sniff the body
		// only when the header is absent.
		contentType := resp.Header().Get("Content-Type")
		if !looksLikeJSON(contentType, resp.Body()) {
			return &RequestError{
				Kind:       ErrKindMalformed,
				StatusCode: resp.StatusCode(),
				URL:        path,
				Err:        fmt.Errorf("non-JSON response (content-type %q): %s", contentType, snippet(resp.Body())),
			}
		}

		body = resp.Body()
		header = resp.Header()
		return nil
	})

	if err != nil {
		return nil, nil, err
	}
	return body, header, nil
}

func looksLikeJSON(contentType string, body []byte) bool {
	if contentType != "" {
		return strings.Contains(strings.ToLower(contentType), "json")
	}

	// Last-resort heuristic for servers that omit the header.
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "<!DOCTYPE") || strings.HasPrefix(strings.ToLower(trimmed), "<html") {
		return false
	}
	return true
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func (q OrdersQuery) params() map[string]string {
	params := map[string]string{
		"orderby": "date",
		"order":   "desc",
	}

	if q.PerPage > 0 {
		params["per_page"] = strconv.Itoa(q.PerPage)
	}
	if q.Page > 0 {
		params["page"] = strconv.Itoa(q.Page)
	}
	if len(q.Statuses) > 0 {
		params["status"] = strings.Join(q.Statuses, ",")
	} else {
		params["status"] = "any"
	}
	if !q.CreatedAfter.IsZero() {
		params["after"] = q.CreatedAfter.UTC().Format("2006-01-02T15:04:05")
	}
	if !q.ModifiedAfter.IsZero() {
		params["modified_after"] = q.ModifiedAfter.UTC().Format("2006-01-02T15:04:05")
	}

	return params
}

// FetchOrdersPage returns one page of remote orders.
func (c *WooClient) FetchOrdersPage(ctx context.Context, q OrdersQuery) ([]externalmodel.RemoteOrder, error) {
	body, _, err := c.doRequest(ctx, "/orders", q.params())
	if err != nil {
		return nil, err
	}

	var orders []externalmodel.RemoteOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, &RequestError{
			Kind: ErrKindMalformed,
			URL:  "/orders",
			Err:  fmt.Errorf("decode orders page: %w", err),
		}
	}

	logger.WithFields(map[string]interface{}{
		"component": "woocommerce_client",
		"page":      q.Page,
		"rows":      len(orders),
	}).Debug("orders page fetched")

	return orders, nil
}

// CountOrders probes the total item count for a query via the X-WP-Total
// header on a minimal one-item page. known is false when the upstream does
// not expose the header.
func (c *WooClient) CountOrders(ctx context.Context, q OrdersQuery) (total int, known bool, err error) {
	probe := q
	probe.Page = 1
	probe.PerPage = 1

	_, header, err := c.doRequest(ctx, "/orders", probe.params())
	if err != nil {
		return 0, false, err
	}

	raw := header.Get(totalCountHeader)
	if raw == "" {
		return 0, false, nil
	}

	total, convErr := strconv.Atoi(raw)
	if convErr != nil {
		logger.WithField("value", raw).Warn("unparseable X-WP-Total header, proceeding without a known total")
		return 0, false, nil
	}

	return total, true, nil
}

// FetchProduct looks up a single product, used to backfill missing
// line-item images.
func (c *WooClient) FetchProduct(ctx context.Context, productID uint) (*externalmodel.RemoteProduct, error) {
	body, _, err := c.doRequest(ctx, fmt.Sprintf("/products/%d", productID), nil)
	if err != nil {
		return nil, err
	}

	var product externalmodel.RemoteProduct
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, &RequestError{
			Kind: ErrKindMalformed,
			URL:  fmt.Sprintf("/products/%d", productID),
			Err:  fmt.Errorf("decode product: %w", err),
		}
	}

	return &product, nil
}

// Ping is the cheap connectivity check run before a sync cycle. Failure
// here means upstream-unreachable and aborts the cycle early.
func (c *WooClient) Ping(ctx context.Context) error {
	_, _, err := c.doRequest(ctx, "/orders", map[string]string{
		"per_page": "1",
		"page":     "1",
		"status":   "any",
	})
	return err
}
