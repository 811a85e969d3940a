package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	WooBaseURL        string `envconfig:"WOO_BASE_URL" default:"https://shop.example.com"`
	WooConsumerKey    string `envconfig:"WOO_CONSUMER_KEY"`
	WooConsumerSecret string `envconfig:"WOO_CONSUMER_SECRET"`
	WooConsumerKeyEnc string `envconfig:"WOO_CONSUMER_KEY_ENC"`
	WooConsumerSecEnc string `envconfig:"WOO_CONSUMER_SECRET_ENC"`

	PageSize        int           `envconfig:"SYNC_PAGE_SIZE" default:"50"`
	BatchWidth      int           `envconfig:"SYNC_BATCH_WIDTH" default:"5"`
	InterBatchDelay time.Duration `envconfig:"SYNC_INTER_BATCH_DELAY" default:"800ms"`
	MaxOrders       int           `envconfig:"SYNC_MAX_ORDERS" default:"2000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
