package executors

import (
	"context"
	"errors"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"opsportal/src/connectors"
	"opsportal/src/controller"
	"opsportal/src/notify"
	"opsportal/src/repository"
	"opsportal/src/security"
)

// cycleRunner is the slice of the sync service the loop drives. Tests
// inject a fake through the newSyncService variable below.
type cycleRunner interface {
	RunFastCheck(ctx context.Context) (controller.CycleStats, error)
	RunFullReconcile(ctx context.Context) (controller.CycleStats, error)
}

// Seams for tests, swapped out the same way the credentials are injected.
var (
	newSyncService = func(hub *notify.Hub) (cycleRunner, error) {
		service, err := NewDefaultSyncService(hub)
		if err != nil {
			return nil, err
		}
		return service, nil
	}
	decryptString = security.DecryptString
)

// SyncCursor is the loop's shared progress record, read by the sync
// status endpoint while the loop mutates it.
type SyncCursor struct {
	mu sync.RWMutex

	cycleCount          int
	consecutiveFailures int
	lastSuccess         time.Time
	lastError           string
	lastStats           controller.CycleStats
}

// CursorSnapshot is the read-only copy handed to HTTP callers.
type CursorSnapshot struct {
	CycleCount          int                   `json:"cycle_count"`
	ConsecutiveFailures int                   `json:"consecutive_failures"`
	LastSuccess         time.Time             `json:"last_success"`
	LastError           string                `json:"last_error,omitempty"`
	LastStats           controller.CycleStats `json:"last_stats"`
}

func (c *SyncCursor) Snapshot() CursorSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CursorSnapshot{
		CycleCount:          c.cycleCount,
		ConsecutiveFailures: c.consecutiveFailures,
		LastSuccess:         c.lastSuccess,
		LastError:           c.lastError,
		LastStats:           c.lastStats,
	}
}

func (c *SyncCursor) recordSuccess(stats controller.CycleStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycleCount++
	c.consecutiveFailures = 0
	c.lastSuccess = stats.FinishedAt
	c.lastError = ""
	c.lastStats = stats
}

func (c *SyncCursor) recordFailure(err error) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycleCount++
	c.consecutiveFailures++
	c.lastError = err.Error()
	return c.consecutiveFailures
}

func (c *SyncCursor) failures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.consecutiveFailures
}

func (c *SyncCursor) cycles() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cycleCount
}

// resolveCredentials prefers the encrypted consumer key/secret pair and
// falls back to the plaintext variables for local development.
func resolveCredentials(config connectors.Config) (key, secret string, err error) {
	if config.WooConsumerKeyEnc != "" && config.WooConsumerSecEnc != "" {
		key, err = decryptString(config.WooConsumerKeyEnc)
		if err != nil {
			return "", "", err
		}
		secret, err = decryptString(config.WooConsumerSecEnc)
		if err != nil {
			return "", "", err
		}
		return key, secret, nil
	}

	if config.WooConsumerKey == "" || config.WooConsumerSecret == "" {
		return "", "", errors.New("no consumer key/secret configured")
	}
	return config.WooConsumerKey, config.WooConsumerSecret, nil
}

// NewDefaultSyncService assembles the production sync service from env
// configuration, also used by the one-shot reconcile command.
func NewDefaultSyncService(hub *notify.Hub) (*controller.SyncService, error) {
	connConfig := connectors.GetConfig()

	key, secret, err := resolveCredentials(connConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to resolve store credentials")
		return nil, err
	}

	client := connectors.NewWooClient(connConfig.WooBaseURL, key, secret)
	crawler := connectors.NewCrawler(client)
	orders := repository.NewOrderRepository()
	exceptions := repository.NewExceptionRepository()
	dispatcher := notify.NewDispatcher(hub)

	return controller.NewSyncService(client, crawler, orders, exceptions, dispatcher), nil
}

// intervalFor stretches the base interval once the upstream keeps failing
// so a broken store is not hammered every two minutes.
func intervalFor(config Config, failures int) time.Duration {
	switch {
	case failures >= config.BackoffTier2After:
		return config.FastCheckInterval * time.Duration(config.BackoffTier2Mult)
	case failures >= config.BackoffTier1After:
		return config.FastCheckInterval * time.Duration(config.BackoffTier1Mult)
	default:
		return config.FastCheckInterval
	}
}

// StartLoop runs the sync scheduler until the context is cancelled. Every
// FullReconcileEvery'th cycle runs the deep reconcile, the rest run the
// shallow fast check.
func StartLoop(ctx context.Context, hub *notify.Hub, cursor *SyncCursor) error {
	config := GetConfig()

	service, err := newSyncService(hub)
	if err != nil {
		return err
	}

	timer := time.NewTimer(intervalFor(config, 0))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sync loop stopped")
			return nil

		case <-timer.C:
			runOneCycle(ctx, config, service, cursor)

			next := intervalFor(config, cursor.failures())
			if cursor.failures() >= config.BackoffTier1After {
				logger.WithFields(map[string]interface{}{
					"executor": "StartLoop",
					"failures": cursor.failures(),
					"interval": next.String(),
				}).Warn("Sync loop in backoff")
			}
			timer.Reset(next)
		}
	}
}

func runOneCycle(ctx context.Context, config Config, service cycleRunner, cursor *SyncCursor) {
	full := config.FullReconcileEvery > 0 &&
		(cursor.cycles()+1)%config.FullReconcileEvery == 0

	var stats controller.CycleStats
	var err error
	if full {
		stats, err = service.RunFullReconcile(ctx)
	} else {
		stats, err = service.RunFastCheck(ctx)
	}

	if err != nil {
		failures := cursor.recordFailure(err)
		logger.WithFields(map[string]interface{}{
			"executor": "StartLoop",
			"mode":     stats.Mode,
			"failures": failures,
		}).WithError(err).Error("Sync cycle failed")
		return
	}

	cursor.recordSuccess(stats)
}
