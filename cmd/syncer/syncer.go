package syncer

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"opsportal/src/database"
	"opsportal/src/executors"
	"opsportal/src/notify"
)

// Syncer runs the order sync loop without the portal API, for headless
// deployments where another instance serves HTTP.
type Syncer struct {
	Cursor *executors.SyncCursor
}

func (s *Syncer) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	if s.Cursor == nil {
		s.Cursor = &executors.SyncCursor{}
	}

	logrus.Info("Starting order sync loop")

	if err := executors.StartLoop(ctx, notify.NewHub(), s.Cursor); err != nil {
		logrus.WithError(err).Error("Sync loop failed")
		return err
	}

	return nil
}
