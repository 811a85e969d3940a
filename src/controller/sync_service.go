package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"opsportal/src/connectors"
	"opsportal/src/externalmodel"
	"opsportal/src/mapper"
	"opsportal/src/model"
	"opsportal/src/utils"
)

// Outcome of importing a single remote order snapshot.
const (
	ImportResultNew     = "new"
	ImportResultUpdated = "updated"
	ImportResultSkipped = "skipped"
	ImportResultError   = "error"
)

// remoteClient is the slice of the transport client the sync engine needs
// beyond crawling: product backfill for the mapper and the reachability
// probe that gates every cycle.
type remoteClient interface {
	FetchProduct(ctx context.Context, productID uint) (*externalmodel.RemoteProduct, error)
	Ping(ctx context.Context) error
}

type orderCrawler interface {
	FetchAll(ctx context.Context, q connectors.OrdersQuery, maxItems int) ([]externalmodel.RemoteOrder, error)
}

// orderStore is the repository surface the engine writes through.
type orderStore interface {
	Create(ctx context.Context, order *model.Order) error
	FindByExternalID(ctx context.Context, externalID uint) (*model.Order, error)
	UpdateFromRemote(ctx context.Context, orderID uint, fresh *model.Order, syncedAt time.Time) error
	UpdateStatus(ctx context.Context, orderID uint, status, remoteStatus string) error
	RefreshSyncMeta(ctx context.Context, orderID uint, remoteStatus string, syncedAt time.Time) error
	SetHighlighted(ctx context.Context, orderIDs []uint) error
}

// burstNotifier receives one aggregate notification per sync cycle that
// imported at least one new order.
type burstNotifier interface {
	NotifyNewOrders(count int, sample []model.Order)
}

// CycleStats summarizes one sync cycle for logging, the status endpoint
// and the executor's backoff bookkeeping.
type CycleStats struct {
	Mode       string    `json:"mode"` // "fast_check" | "full_reconcile"
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Fetched    int       `json:"fetched"`
	New        int       `json:"new"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
}

// SyncService drives the import and reconciliation of remote orders into
// the local mirror. Collaborators are interfaces so tests can substitute
// fakes for the transport side while running the store against a real
// in-memory database.
type SyncService struct {
	client     remoteClient
	crawler    orderCrawler
	orders     orderStore
	exceptions exceptionSink
	notifier   burstNotifier

	config Config
	now    func() time.Time

	maxOrders int
	pageSize  int
	tolerance decimal.Decimal
}

func NewSyncService(
	client remoteClient,
	crawler orderCrawler,
	orders orderStore,
	exceptions exceptionSink,
	notifier burstNotifier,
) *SyncService {

	config := GetConfig()
	connConfig := connectors.GetConfig()

	tolerance, err := decimal.NewFromString(config.MoneyTolerance)
	if err != nil {
		logger.WithField("tolerance", config.MoneyTolerance).
			WithError(err).Warn("Invalid money tolerance, falling back to 0.01")
		tolerance = decimal.NewFromFloat(0.01)
	}

	return &SyncService{
		client:     client,
		crawler:    crawler,
		orders:     orders,
		exceptions: exceptions,
		notifier:   notifier,
		config:     config,
		now:        time.Now,
		maxOrders:  connConfig.MaxOrders,
		pageSize:   connConfig.PageSize,
		tolerance:  tolerance,
	}
}

// WithClock overrides the time source, test hook.
func (s *SyncService) WithClock(now func() time.Time) *SyncService {
	s.now = now
	return s
}

// totalsChanged compares money amounts with the configured absolute
// tolerance so float storage noise never counts as a business change.
func (s *SyncService) totalsChanged(local, fresh *model.Order) bool {
	totalDiff := decimal.NewFromFloat(local.TotalAmount).
		Sub(decimal.NewFromFloat(fresh.TotalAmount)).Abs()
	shippingDiff := decimal.NewFromFloat(local.ShippingAmount).
		Sub(decimal.NewFromFloat(fresh.ShippingAmount)).Abs()

	return totalDiff.GreaterThan(s.tolerance) || shippingDiff.GreaterThan(s.tolerance)
}

// Reconcile applies the remote snapshot's status onto an existing local
// order and reports whether anything changed. Totals changes take the full
// update path; a pure status change takes the cheaper UpdateStatus; an
// unchanged order only gets its sync metadata refreshed. fresh must already
// have passed TruncateForStorage; importOrder guarantees that.
func (s *SyncService) Reconcile(
	ctx context.Context,
	local *model.Order,
	fresh *model.Order,
) (bool, error) {

	syncedAt := s.now()

	if s.totalsChanged(local, fresh) {
		if err := s.orders.UpdateFromRemote(ctx, local.ID, fresh, syncedAt); err != nil {
			return false, err
		}

		logger.WithFields(map[string]interface{}{
			"controller":  "SyncService",
			"op":          "Reconcile",
			"order_id":    local.ID,
			"external_id": derefExternalID(local),
		}).Info("Order totals reconciled from remote")

		return true, nil
	}

	if local.Status != fresh.Status || local.RemoteStatus != fresh.RemoteStatus {
		if err := s.orders.UpdateStatus(ctx, local.ID, fresh.Status, fresh.RemoteStatus); err != nil {
			return false, err
		}

		logger.WithFields(map[string]interface{}{
			"controller": "SyncService",
			"op":         "Reconcile",
			"order_id":   local.ID,
			"from":       local.Status,
			"to":         fresh.Status,
		}).Info("Order status reconciled from remote")

		return true, nil
	}

	if err := s.orders.RefreshSyncMeta(ctx, local.ID, fresh.RemoteStatus, syncedAt); err != nil {
		return false, err
	}
	return false, nil
}

// importOrder runs the dedup pipeline for one remote snapshot:
// map, truncate, look up by external ID, then create / reconcile / skip.
// The returned order is non-nil only for newly created rows.
func (s *SyncService) importOrder(
	ctx context.Context,
	remote *externalmodel.RemoteOrder,
) (result string, created *model.Order, err error) {

	fresh := mapper.MapRemoteOrderToModel(ctx, remote, s.client)
	if fresh == nil {
		return ImportResultError, nil, fmt.Errorf("import order: nil snapshot")
	}

	// The one truncation pass: every persistence path below (create,
	// totals update, status update, metadata refresh) sees bounded values.
	mapper.TruncateForStorage(fresh)

	local, err := s.orders.FindByExternalID(ctx, remote.ID)
	if err != nil {
		return ImportResultError, nil, err
	}

	if local == nil {
		err = s.orders.Create(ctx, fresh)
		if err == nil {
			return ImportResultNew, fresh, nil
		}

		// Lost a race against a concurrent import of the same remote
		// order. Refetch and fall through to the reconcile path.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			local, err = s.orders.FindByExternalID(ctx, remote.ID)
			if err != nil || local == nil {
				return ImportResultError, nil, fmt.Errorf(
					"order %d vanished after duplicate insert: %w", remote.ID, err)
			}
		} else {
			return ImportResultError, nil, err
		}
	}

	changed, err := s.Reconcile(ctx, local, fresh)
	if err != nil {
		return ImportResultError, nil, err
	}
	if changed {
		return ImportResultUpdated, nil, nil
	}
	return ImportResultSkipped, nil, nil
}

// importBatch walks a crawled snapshot and imports every order, isolating
// per-order failures so one bad record never aborts the cycle. Newly
// created orders are highlighted as a batch and announced once.
func (s *SyncService) importBatch(
	ctx context.Context,
	mode string,
	remotes []externalmodel.RemoteOrder,
	stats *CycleStats,
) {

	var newIDs []uint
	var newSample []model.Order

	for i := range remotes {
		remote := &remotes[i]

		result, created, err := s.importOrder(ctx, remote)
		switch result {
		case ImportResultNew:
			stats.New++
			newIDs = append(newIDs, created.ID)
			if len(newSample) < 5 {
				newSample = append(newSample, *created)
			}
		case ImportResultUpdated:
			stats.Updated++
		case ImportResultSkipped:
			stats.Skipped++
		case ImportResultError:
			stats.Errors++
			Capture(ctx, s.exceptions, "order_sync", "sync_service", "importOrder",
				"error", err, map[string]interface{}{
					"mode":        mode,
					"external_id": remote.ID,
					"number":      remote.Number,
				})
		}
	}

	if len(newIDs) > 0 {
		if err := s.orders.SetHighlighted(ctx, newIDs); err != nil {
			Capture(ctx, s.exceptions, "order_sync", "sync_service", "SetHighlighted",
				"error", err, map[string]interface{}{"mode": mode, "count": len(newIDs)})
		}
		if s.notifier != nil {
			s.notifier.NotifyNewOrders(len(newIDs), newSample)
		}
	}
}

// RunFastCheck is the frequent shallow pass: it scans only the most recent
// pages of the remote listing looking for new orders and recent changes.
func (s *SyncService) RunFastCheck(ctx context.Context) (CycleStats, error) {
	return s.runCycle(ctx, "fast_check", connectors.OrdersQuery{},
		s.config.FastCheckPages*s.pageSize)
}

// RunFullReconcile is the periodic deep pass: every remote order created
// since the start of the current month is refetched and reconciled, capped
// at the configured order budget.
func (s *SyncService) RunFullReconcile(ctx context.Context) (CycleStats, error) {
	query := connectors.OrdersQuery{
		CreatedAfter: utils.StartOfMonth(s.now()),
	}
	return s.runCycle(ctx, "full_reconcile", query, s.maxOrders)
}

func (s *SyncService) runCycle(
	ctx context.Context,
	mode string,
	query connectors.OrdersQuery,
	maxItems int,
) (CycleStats, error) {

	stats := CycleStats{Mode: mode, StartedAt: s.now()}

	// An unreachable upstream aborts the whole cycle before any partial
	// import can happen.
	if err := s.client.Ping(ctx); err != nil {
		stats.FinishedAt = s.now()
		Capture(ctx, s.exceptions, "order_sync", "sync_service", "Ping",
			"error", err, map[string]interface{}{"mode": mode})
		return stats, fmt.Errorf("upstream unreachable: %w", err)
	}

	remotes, err := s.crawler.FetchAll(ctx, query, maxItems)
	if err != nil {
		stats.FinishedAt = s.now()
		Capture(ctx, s.exceptions, "order_sync", "sync_service", "FetchAll",
			"error", err, map[string]interface{}{"mode": mode})
		return stats, err
	}
	stats.Fetched = len(remotes)

	s.importBatch(ctx, mode, remotes, &stats)
	stats.FinishedAt = s.now()

	logger.WithFields(map[string]interface{}{
		"controller": "SyncService",
		"mode":       mode,
		"fetched":    stats.Fetched,
		"new":        stats.New,
		"updated":    stats.Updated,
		"skipped":    stats.Skipped,
		"errors":     stats.Errors,
		"elapsed":    stats.FinishedAt.Sub(stats.StartedAt).String(),
	}).Info("Sync cycle finished")

	return stats, nil
}

func derefExternalID(order *model.Order) uint {
	if order == nil || order.ExternalID == nil {
		return 0
	}
	return *order.ExternalID
}
