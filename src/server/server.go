package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"opsportal/src/auth"
	"opsportal/src/executors"
	"opsportal/src/handler"
	"opsportal/src/notify"
	"opsportal/src/repository"
)

func StartServer(port string, hub *notify.Hub, cursor *executors.SyncCursor) {
	config := GetConfig()
	orders := repository.NewOrderRepository()

	// Router with middleware
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	r.Get("/ws/notifications", hub.ServeWS)

	// Portal API
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireToken(config.APIToken))

		r.Get("/sync/status", handler.SyncStatusHandler(cursor, orders, hub))
		r.Get("/orders", handler.SearchOrdersHandler(orders))
		r.Post("/orders/{id}/seen", handler.MarkOrderSeenHandler(orders))
	})

	// Graceful server
	// Server setup
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
