package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"JWT_SECRET"`

	Gateway  Gateway  `envPrefix:"GATEWAY_"`
	Shipping Shipping `envPrefix:"SHIPPING_"`
	Client   Client   `envPrefix:"CLIENT_"`
}

// Gateway holds credentials for the external redirect-based payment provider.
type Gateway struct {
	PayURL       string        `env:"PAY_URL"`
	QueryURL     string        `env:"QUERY_URL"`
	MerchantCode string        `env:"MERCHANT_CODE"`
	HashSecret   string        `env:"HASH_SECRET"`
	ReturnURL    string        `env:"RETURN_URL"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"15m"`
}

// Shipping drives the cart totals: a flat fee waived above the free threshold.
// Amounts are minor currency units.
type Shipping struct {
	Fee           int64 `env:"FEE" envDefault:"30000"`
	FreeThreshold int64 `env:"FREE_THRESHOLD" envDefault:"500000"`
}

// Client configures the storefront client components (cart sync, refresh).
type Client struct {
	DebounceWindow time.Duration `env:"DEBOUNCE_WINDOW" envDefault:"500ms"`
	RefreshTimeout time.Duration `env:"REFRESH_TIMEOUT" envDefault:"5s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
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
