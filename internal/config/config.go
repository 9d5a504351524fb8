package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Database  Database  `envPrefix:"DATABASE_"`
	Paypal    Paypal    `envPrefix:"PAYPAL_"`
	PaypalNVP PaypalNVP `envPrefix:"PAYPAL_NVP_"`
	BrainTree Braintree `envPrefix:"BRAINTREE_"`
	Kafka     Kafka     `envPrefix:"KAFKA_"`
	Telemetry Telemetry `envPrefix:"OTEL_"`
	Session   Session   `envPrefix:"SESSION_"`
	Admin     Admin     `envPrefix:"ADMIN_"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"mysql"` // mysql, sqlite
	URL    string `env:"URL"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	WebhookID    string `env:"WEBHOOK_ID"`
	Environment  string `env:"ENVIRONMENT" envDefault:"sandbox"` // sandbox, live
	MerchantID   string `env:"MERCHANT_ID"`
}

// PaypalNVP holds the legacy Name-Value-Pair API signature credentials.
type PaypalNVP struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"https://api-3t.sandbox.paypal.com/nvp"`
	Username  string `env:"USERNAME"`
	Password  string `env:"PASSWORD"`
	Signature string `env:"SIGNATURE"`
}

func (c PaypalNVP) Configured() bool {
	return c.Username != "" && c.Password != "" && c.Signature != ""
}

type Braintree struct {
	Environment     string        `env:"ENVIRONMENT" envDefault:"sandbox"`
	BaseURL         string        `env:"BASE_URL"` // overrides Environment
	MerchantID      string        `env:"MERCHANT_ID"`
	PublicKey       string        `env:"PUBLIC_KEY"`
	PrivateKey      string        `env:"PRIVATE_KEY"`
	TokenAttempts   int           `env:"TOKEN_ATTEMPTS" envDefault:"3"`
	TokenRetryDelay time.Duration `env:"TOKEN_RETRY_DELAY" envDefault:"250ms"`
}

func (c Braintree) Configured() bool {
	return c.MerchantID != "" && c.PublicKey != "" && c.PrivateKey != ""
}

type Kafka struct {
	Brokers     []string `env:"BROKERS" envSeparator:","`
	OrdersTopic string   `env:"ORDERS_TOPIC" envDefault:"storefront.orders.v1"`
}

type Telemetry struct {
	Endpoint    string `env:"EXPORTER_OTLP_TRACES_ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"storefront-payments"`
}

type Session struct {
	CookieName string        `env:"COOKIE_NAME" envDefault:"zenid"`
	TTL        time.Duration `env:"TTL" envDefault:"24h"`
}

type Admin struct {
	Token string `env:"TOKEN"`
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

// Load reads an optional .env file into the process environment and parses it.
func Load() (*Config, error) {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
