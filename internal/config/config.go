package config

import "time"

type Config struct {
	Environment  Environment
	Log          Log
	HTTP         HTTPServer
	Database     Database
	Cache        Cache
	Pricing      Pricing
	Membership   Membership
	SeedDemoData bool `env:"SEED_DEMO_DATA" envDefault:"false"`

	BrainTree Braintree `envPrefix:"BRAINTREE_"`
}

// Braintree settles card payments when MerchantID is set; otherwise the
// simulated gateway is used.
type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

type Database struct {
	// mysql, postgres or sqlite
	Driver       string `env:"DATABASE_DRIVER" envDefault:"mysql"`
	URL          string `env:"DATABASE_URL"`
	MaxIdleConns int    `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"50"`
}

type Cache struct {
	Size              int           `env:"CACHE_SIZE" envDefault:"4096"`
	SlidingExpiration time.Duration `env:"CACHE_SLIDING_EXPIRATION" envDefault:"30m"`
}

type Pricing struct {
	OrderTaxRate             string `env:"ORDER_TAX_RATE" envDefault:"0.18"`
	DeliveryFee              string `env:"DELIVERY_FEE" envDefault:"5.00"`
	ThresholdDiscountPercent string `env:"THRESHOLD_DISCOUNT_PERCENT" envDefault:"10"`
	EstimatedDeliveryMinutes int    `env:"ESTIMATED_DELIVERY_MINUTES" envDefault:"45"`
}

type Membership struct {
	SigningKey string `env:"MEMBERSHIP_SIGNING_KEY" envDefault:"change-me"`
}
