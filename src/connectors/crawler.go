package connectors

import (
	"context"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"opsportal/src/externalmodel"
)

// KnownRemoteStatuses is the fixed status vocabulary of the upstream store,
// used by the per-status fallback crawl when the broad "any" query fails.
var KnownRemoteStatuses = []string{
	"pending",
	"processing",
	"on-hold",
	"completed",
	"cancelled",
	"refunded",
	"failed",
}

type ordersFetcher interface {
	FetchOrdersPage(ctx context.Context, q OrdersQuery) ([]externalmodel.RemoteOrder, error)
	CountOrders(ctx context.Context, q OrdersQuery) (total int, known bool, err error)
}

// Crawler walks the paginated orders resource in bounded concurrent batches.
type Crawler struct {
	client          ordersFetcher
	pageSize        int
	batchWidth      int
	interBatchDelay time.Duration
}

// NewCrawler builds a crawler with settings from the environment config.
func NewCrawler(client ordersFetcher) *Crawler {
	config := GetConfig()
	return &Crawler{
		client:          client,
		pageSize:        config.PageSize,
		batchWidth:      config.BatchWidth,
		interBatchDelay: config.InterBatchDelay,
	}
}

// WithTuning overrides page size, batch width and inter-batch delay.
// A zero or negative value keeps the configured setting, except the delay
// where zero disables the pause.
func (c *Crawler) WithTuning(pageSize, batchWidth int, interBatchDelay time.Duration) *Crawler {
	out := *c
	if pageSize > 0 {
		out.pageSize = pageSize
	}
	if batchWidth > 0 {
		out.batchWidth = batchWidth
	}
	if interBatchDelay >= 0 {
		out.interBatchDelay = interBatchDelay
	}
	return &out
}

type pageResult struct {
	page   int
	orders []externalmodel.RemoteOrder
	err    error
}

// FetchAll retrieves every order matching q, up to maxItems. The primary
// strategy is a single crawl over the broad query; if that yields nothing or
// cannot get past page 1, it falls back to enumerating the known status
// vocabulary and paginating each status independently.
func (c *Crawler) FetchAll(ctx context.Context, q OrdersQuery, maxItems int) ([]externalmodel.RemoteOrder, error) {
	orders, err := c.crawl(ctx, q, maxItems)
	if err == nil && len(orders) > 0 {
		return orders, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err == nil {
		// Nothing matched. An empty store is a valid answer; only fall
		// back when the broad filter combination itself looks broken,
		// which the count probe distinguishes for us.
		total, known, probeErr := c.client.CountOrders(ctx, q)
		if probeErr == nil && (!known || total == 0) {
			return orders, nil
		}
	}

	logger.WithFields(map[string]interface{}{
		"component": "crawler",
		"statuses":  len(KnownRemoteStatuses),
	}).WithError(err).Warn("broad orders query failed or returned nothing, falling back to per-status crawl")

	return c.crawlPerStatus(ctx, q, maxItems)
}

// crawlPerStatus trades request volume for resilience against upstream
// filter-combination bugs: one independent crawl per known status.
func (c *Crawler) crawlPerStatus(ctx context.Context, q OrdersQuery, maxItems int) ([]externalmodel.RemoteOrder, error) {
	seen := make(map[uint]bool)
	var merged []externalmodel.RemoteOrder
	var lastErr error

	for _, status := range KnownRemoteStatuses {
		if ctx.Err() != nil {
			return merged, ctx.Err()
		}

		remaining := maxItems - len(merged)
		if remaining <= 0 {
			break
		}

		sq := q
		sq.Statuses = []string{status}

		orders, err := c.crawl(ctx, sq, remaining)
		if err != nil {
			lastErr = err
			logger.WithField("status", status).WithError(err).Warn("per-status crawl failed, continuing with remaining statuses")
			continue
		}

		for _, order := range orders {
			if seen[order.ID] {
				continue
			}
			seen[order.ID] = true
			merged = append(merged, order)
		}
	}

	if len(merged) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return merged, nil
}

// crawl fetches pages in batches of batchWidth until the dataset ends or
// maxItems is reached. Failures are isolated per page; only a failure to
// retrieve page 1 with nothing collected is fatal.
func (c *Crawler) crawl(ctx context.Context, q OrdersQuery, maxItems int) ([]externalmodel.RemoteOrder, error) {
	q.PerPage = c.pageSize

	effectiveLimit := maxItems
	totalPages := 0

	total, known, err := c.client.CountOrders(ctx, q)
	if err != nil {
		logger.WithError(err).Warn("count probe failed, crawling without a known total")
	} else if known {
		if total < effectiveLimit {
			effectiveLimit = total
		}
		totalPages = (effectiveLimit + c.pageSize - 1) / c.pageSize
	}

	var out []externalmodel.RemoteOrder
	var page1Err error
	done := false

	for startPage := 1; !done; startPage += c.batchWidth {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		width := c.batchWidth
		if totalPages > 0 && startPage+width-1 > totalPages {
			width = totalPages - startPage + 1
		}
		if width <= 0 {
			break
		}

		results := make([]pageResult, width)
		var wg sync.WaitGroup
		for i := 0; i < width; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				pq := q
				pq.Page = startPage + i
				orders, fetchErr := c.client.FetchOrdersPage(ctx, pq)
				results[i] = pageResult{page: pq.Page, orders: orders, err: fetchErr}
			}(i)
		}
		wg.Wait()

		// All pages in the batch have settled; merge them in page order
		// so the output keeps the upstream sort.
		batchSucceeded := false
		var batchErr error
		for _, res := range results {
			if res.err != nil {
				if res.page == 1 {
					page1Err = res.err
				}
				if batchErr == nil {
					batchErr = res.err
				}
				logger.WithFields(map[string]interface{}{
					"component": "crawler",
					"page":      res.page,
				}).WithError(res.err).Warn("page fetch failed, siblings unaffected")
				continue
			}

			batchSucceeded = true

			if len(res.orders) == 0 {
				done = true
				break
			}

			out = append(out, res.orders...)
			if len(out) >= effectiveLimit {
				out = out[:effectiveLimit]
				done = true
				break
			}

			// A short page means the dataset ended here.
			if len(res.orders) < c.pageSize {
				done = true
				break
			}
		}

		// Without a known total, a batch where every page failed gives no
		// way to tell where the dataset ends; stop instead of probing
		// forever against a degraded upstream.
		if !batchSucceeded {
			done = true
			if page1Err == nil && len(out) == 0 {
				page1Err = batchErr
			}
		}

		if totalPages > 0 && startPage+width > totalPages {
			done = true
		}

		if !done && c.interBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(c.interBatchDelay):
			}
		}
	}

	if len(out) == 0 && page1Err != nil {
		return nil, page1Err
	}

	logger.WithFields(map[string]interface{}{
		"component": "crawler",
		"rows":      len(out),
		"known":     known,
	}).Debug("crawl finished")

	return out, nil
}
