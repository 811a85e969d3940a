package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// FastCheckInterval is the base period between shallow sync passes.
	FastCheckInterval time.Duration `envconfig:"FAST_CHECK_INTERVAL" default:"2m"`

	// FullReconcileEvery makes every Nth cycle a deep reconcile instead
	// of a fast check.
	FullReconcileEvery int `envconfig:"FULL_RECONCILE_EVERY" default:"5"`

	// Consecutive-failure thresholds that move the loop into slower
	// backoff tiers, and the multipliers applied to the base interval.
	BackoffTier1After int `envconfig:"SYNC_BACKOFF_TIER1_AFTER" default:"3"`
	BackoffTier2After int `envconfig:"SYNC_BACKOFF_TIER2_AFTER" default:"6"`
	BackoffTier1Mult  int `envconfig:"SYNC_BACKOFF_TIER1_MULT" default:"2"`
	BackoffTier2Mult  int `envconfig:"SYNC_BACKOFF_TIER2_MULT" default:"5"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
