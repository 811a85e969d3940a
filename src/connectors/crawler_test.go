package connectors

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"opsportal/src/externalmodel"
)

// fakeFetcher serves a fixed dataset sliced into pages, with optional
// per-page failures.
type fakeFetcher struct {
	mu       sync.Mutex
	total    int
	hasTotal bool
	pageSize int
	orders   []externalmodel.RemoteOrder
	failPage map[int]error
	calls    []int
}

func (f *fakeFetcher) FetchOrdersPage(ctx context.Context, q OrdersQuery) ([]externalmodel.RemoteOrder, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q.Page)
	f.mu.Unlock()

	if err, ok := f.failPage[q.Page]; ok {
		return nil, err
	}

	start := (q.Page - 1) * f.pageSize
	if start >= len(f.orders) {
		return nil, nil
	}
	end := start + f.pageSize
	if end > len(f.orders) {
		end = len(f.orders)
	}
	return f.orders[start:end], nil
}

func (f *fakeFetcher) CountOrders(ctx context.Context, q OrdersQuery) (int, bool, error) {
	return f.total, f.hasTotal, nil
}

func makeOrders(n int) []externalmodel.RemoteOrder {
	orders := make([]externalmodel.RemoteOrder, n)
	for i := range orders {
		orders[i] = externalmodel.RemoteOrder{ID: uint(i + 1), Status: "processing"}
	}
	return orders
}

func newTestCrawler(f *fakeFetcher) *Crawler {
	return NewCrawler(f).WithTuning(f.pageSize, 3, 0)
}

func TestCrawlCompleteness(t *testing.T) {
	fetcher := &fakeFetcher{total: 23, hasTotal: true, pageSize: 10, orders: makeOrders(23)}
	crawler := newTestCrawler(fetcher)

	orders, err := crawler.FetchAll(context.Background(), OrdersQuery{}, 1000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(orders) != 23 {
		t.Fatalf("expected 23 orders, got %d", len(orders))
	}

	seen := make(map[uint]bool)
	for _, order := range orders {
		if seen[order.ID] {
			t.Fatalf("duplicate order %d in crawl result", order.ID)
		}
		seen[order.ID] = true
	}
}

func TestCrawlStopsWithoutKnownTotal(t *testing.T) {
	// 15 items, page size 10: page 2 is short, page 3 must not matter.
	fetcher := &fakeFetcher{pageSize: 10, orders: makeOrders(15)}
	crawler := newTestCrawler(fetcher)

	orders, err := crawler.FetchAll(context.Background(), OrdersQuery{}, 1000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(orders) != 15 {
		t.Fatalf("expected 15 orders, got %d", len(orders))
	}
}

func TestCrawlHonorsMaxItems(t *testing.T) {
	fetcher := &fakeFetcher{total: 100, hasTotal: true, pageSize: 10, orders: makeOrders(100)}
	crawler := newTestCrawler(fetcher)

	orders, err := crawler.FetchAll(context.Background(), OrdersQuery{}, 25)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(orders) != 25 {
		t.Fatalf("expected maxItems cap of 25, got %d", len(orders))
	}
}

func TestCrawlIsolatesPageFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		total:    30,
		hasTotal: true,
		pageSize: 10,
		orders:   makeOrders(30),
		failPage: map[int]error{2: &RequestError{Kind: ErrKindTimeout, URL: "/orders", Err: fmt.Errorf("deadline exceeded")}},
	}
	crawler := newTestCrawler(fetcher)

	orders, err := crawler.FetchAll(context.Background(), OrdersQuery{}, 1000)
	if err != nil {
		t.Fatalf("a single page failure must not abort the crawl, got %v", err)
	}

	// Pages 1 and 3 still delivered.
	if len(orders) != 20 {
		t.Fatalf("expected 20 orders from surviving pages, got %d", len(orders))
	}
}

func TestCrawlFallbackPerStatus(t *testing.T) {
	broadErr := &RequestError{Kind: ErrKindHTTP, StatusCode: 400, URL: "/orders", Err: fmt.Errorf("invalid filter combination")}

	fetcher := &brokenBroadFetcher{
		perStatus: map[string][]externalmodel.RemoteOrder{
			"processing": {{ID: 1, Status: "processing"}, {ID: 2, Status: "processing"}},
			"completed":  {{ID: 3, Status: "completed"}},
		},
		broadErr: broadErr,
	}
	crawler := NewCrawler(fetcher).WithTuning(10, 3, 0)

	orders, err := crawler.FetchAll(context.Background(), OrdersQuery{}, 1000)
	if err != nil {
		t.Fatalf("fallback should have rescued the crawl, got %v", err)
	}

	if len(orders) != 3 {
		t.Fatalf("expected 3 orders from per-status fallback, got %d", len(orders))
	}
}

// brokenBroadFetcher fails any multi-status query and answers single-status
// ones, mimicking an upstream with a broken filter combination.
type brokenBroadFetcher struct {
	perStatus map[string][]externalmodel.RemoteOrder
	broadErr  error
}

func (f *brokenBroadFetcher) FetchOrdersPage(ctx context.Context, q OrdersQuery) ([]externalmodel.RemoteOrder, error) {
	if len(q.Statuses) != 1 {
		return nil, f.broadErr
	}
	if q.Page > 1 {
		return nil, nil
	}
	return f.perStatus[q.Statuses[0]], nil
}

func (f *brokenBroadFetcher) CountOrders(ctx context.Context, q OrdersQuery) (int, bool, error) {
	if len(q.Statuses) != 1 {
		return 0, false, f.broadErr
	}
	return len(f.perStatus[q.Statuses[0]]), true, nil
}

// End-to-end: a page that times out twice inside the transport client still
// reaches the crawler on the third attempt, so the crawl stays complete.
func TestCrawlSurvivesTransientPageTimeout(t *testing.T) {
	const pageSize = 5
	var page3Calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		if r.URL.Query().Get("per_page") == "1" {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-WP-Total", "15")
			_, _ = w.Write([]byte(`[{"id":1}]`))
			return
		}

		if page == 3 {
			if atomic.AddInt32(&page3Calls, 1) <= 2 {
				time.Sleep(300 * time.Millisecond)
				return
			}
		}

		start := (page-1)*pageSize + 1
		body := "["
		for i := 0; i < pageSize; i++ {
			if i > 0 {
				body += ","
			}
			body += fmt.Sprintf(`{"id":%d,"status":"processing"}`, start+i)
		}
		body += "]"

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	crawler := NewCrawler(client).WithTuning(pageSize, 3, 0)

	orders, err := crawler.FetchAll(context.Background(), OrdersQuery{}, 1000)
	if err != nil {
		t.Fatalf("expected complete crawl, got %v", err)
	}

	if len(orders) != 15 {
		t.Fatalf("expected all 15 orders despite transient page 3 timeouts, got %d", len(orders))
	}

	if got := atomic.LoadInt32(&page3Calls); got != 3 {
		t.Fatalf("expected 3 attempts on page 3, got %d", got)
	}
}
