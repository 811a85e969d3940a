package controller

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// FastCheckPages bounds the shallow "new orders only" scan to the
	// most recent pages.
	FastCheckPages int `envconfig:"SYNC_FAST_CHECK_PAGES" default:"2"`

	// MoneyTolerance is the absolute difference below which two order
	// totals are considered equal.
	MoneyTolerance string `envconfig:"SYNC_MONEY_TOLERANCE" default:"0.01"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
