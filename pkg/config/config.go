package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Store struct {
	// Driver is "postgres" or "memory".
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Redis struct {
	Addr string        `mapstructure:"addr"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// Downstream describes an HTTP dependency.
type Downstream struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ServiceToken string        `mapstructure:"service_token"`
}

type Stripe struct {
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	SuccessURL    string        `mapstructure:"success_url"`
	CancelURL     string        `mapstructure:"cancel_url"`
	Currency      string        `mapstructure:"currency"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Service string `mapstructure:"-"`

	HTTP           HTTP          `mapstructure:"http"`
	LogLevel       string        `mapstructure:"log_level"`
	TracingURL     string        `mapstructure:"tracing_url"`
	Store          Store         `mapstructure:"store"`
	Kafka          Kafka         `mapstructure:"kafka"`
	Redis          Redis         `mapstructure:"redis"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	InternalSecret string        `mapstructure:"internal_secret"`
	Workers        int           `mapstructure:"workers"`
	RelayInterval  time.Duration `mapstructure:"relay_interval"`

	Inventory Downstream `mapstructure:"inventory"`
	Payment   Downstream `mapstructure:"payment"`
	Order     Downstream `mapstructure:"order"`
	Stripe    Stripe     `mapstructure:"stripe"`
}

const (
	OrderService   = "order"
	PaymentService = "payment"
)

// Load reads defaults, then the optional YAML file, then environment
// variables prefixed with the upper-cased service name (ORDER_STORE_DSN).
func Load(service, file string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	v.SetEnvPrefix(strings.ToUpper(service))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Service = service
	return cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	addr := ":8082"
	topic := "order.events"
	if service == PaymentService {
		addr = ":8083"
		topic = "payment.events"
	}

	v.SetDefault("http.addr", addr)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("tracing_url", "")

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.max_conns", 10)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", topic)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.ttl", 24*time.Hour)

	// Secrets carry no usable default. They are declared so env binding sees them.
	v.SetDefault("jwt_secret", "")
	v.SetDefault("internal_secret", "")
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")

	v.SetDefault("workers", 16)
	v.SetDefault("relay_interval", 500*time.Millisecond)

	v.SetDefault("inventory.base_url", "http://localhost:8081/api")
	v.SetDefault("inventory.timeout", 3*time.Second)
	v.SetDefault("inventory.service_token", "")
	v.SetDefault("payment.base_url", "http://localhost:8083/api")
	v.SetDefault("payment.timeout", 5*time.Second)
	v.SetDefault("order.base_url", "http://localhost:8082/api")
	v.SetDefault("order.timeout", 3*time.Second)

	v.SetDefault("stripe.success_url", "http://localhost:3000/payment/success")
	v.SetDefault("stripe.cancel_url", "http://localhost:3000/payment/cancel")
	v.SetDefault("stripe.currency", "usd")
	v.SetDefault("stripe.timeout", 10*time.Second)
}

var ErrMissing = errors.New("config: required value missing")

// Validate fails when a value the service cannot run without is empty.
func (c *Config) Validate() error {
	var missing []string
	need := func(name, val string) {
		if val == "" {
			missing = append(missing, name)
		}
	}

	need("jwt_secret", c.JWTSecret)
	need("internal_secret", c.InternalSecret)
	switch c.Store.Driver {
	case "postgres":
		need("store.dsn", c.Store.DSN)
	case "memory":
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	switch c.Service {
	case OrderService:
		need("inventory.base_url", c.Inventory.BaseURL)
		need("payment.base_url", c.Payment.BaseURL)
	case PaymentService:
		need("order.base_url", c.Order.BaseURL)
		need("stripe.secret_key", c.Stripe.SecretKey)
		need("stripe.webhook_secret", c.Stripe.WebhookSecret)
	}

	if c.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}
