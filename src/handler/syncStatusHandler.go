package handler

import (
	"context"
	"encoding/json"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"opsportal/src/executors"
)

type statusCounter interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type clientCounter interface {
	ClientCount() int
}

// SyncStatusResponse is the operator-facing health view: loop progress,
// per-status order counts, and connected notification clients.
type SyncStatusResponse struct {
	Cursor        executors.CursorSnapshot `json:"cursor"`
	OrdersByState map[string]int64         `json:"orders_by_status"`
	FeedClients   int                      `json:"feed_clients"`
}

// SyncStatusHandler exposes the scheduler's cursor and the mirror's shape.
func SyncStatusHandler(cursor *executors.SyncCursor, repo statusCounter, hub clientCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := repo.CountByStatus(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to count orders by status")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		response := SyncStatusResponse{
			Cursor:        cursor.Snapshot(),
			OrdersByState: counts,
			FeedClients:   hub.ClientCount(),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.WithError(err).Error("failed to encode sync status response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}
