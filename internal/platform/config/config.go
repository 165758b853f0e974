package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Server    Server
	Auth      Auth
	Registry  Registry
	Storage   Storage
	Redis     RedisConfig
	Audit     Audit
	Privacy   Privacy
	RateLimit RateLimit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string
}

// Auth configures the issued bearer credential.
type Auth struct {
	JWTSigningKey  string
	Issuer         string
	Audience       string
	AccessTokenTTL time.Duration
}

// Registry configures the automated session against the licensing registry.
type Registry struct {
	BaseURL           string
	NavigationTimeout time.Duration
	ResultTimeout     time.Duration
	DetailTimeout     time.Duration
	MaxConcurrent     int
	NavigationRetries int
	BreakerFailures   int
	BreakerCooldown   time.Duration
	Headless          bool
	ChromePath        string
	Timezone          string
}

// Location resolves Timezone. Load has already validated it.
func (r Registry) Location() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AttemptBudget bounds one verify request: a lookup queued behind a full set
// of registry slots, then its own lookup with every navigation retry.
func (r Registry) AttemptBudget() time.Duration {
	lookup := r.NavigationTimeout*time.Duration(r.NavigationRetries+1) + r.ResultTimeout + r.DetailTimeout
	return 2 * lookup
}

// Storage selects and configures the ledger backend.
type Storage struct {
	Backend       string
	DatabaseURL   string
	MongoURL      string
	MongoDatabase string
}

// RedisConfig configures the optional Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Audit configures where audit events are streamed.
type Audit struct {
	KafkaBrokers  []string
	Topic         string
	ConsumerGroup string
}

// RateLimit caps requests per client IP on the doctor API. Requests below 1
// disables the cap.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Privacy holds keys for PII sealing and lookup hashing.
type Privacy struct {
	PIIKey        string
	LookupHashKey string
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv loads a .env file when present, then builds a Config from
// environment variables. Malformed values fail startup.
func FromEnv() (Config, error) {
	_ = godotenv.Load()
	return Load(os.Getenv)
}

// Load builds a Config using lookup for each variable.
func Load(lookup func(string) string) (Config, error) {
	p := parser{lookup: lookup}

	cfg := Config{
		Server: Server{
			Addr:      p.str("MEDVERIFY_ADDR", ":8080"),
			LogLevel:  p.str("LOG_LEVEL", "info"),
			LogFormat: p.str("LOG_FORMAT", "json"),
		},
		Auth: Auth{
			JWTSigningKey:  p.str("JWT_SIGNING_KEY", devSigningKey),
			Issuer:         p.str("JWT_ISSUER", "medverify"),
			Audience:       p.str("JWT_AUDIENCE", "parenting-community"),
			AccessTokenTTL: p.duration("ACCESS_TOKEN_TTL", time.Hour),
		},
		Registry: Registry{
			BaseURL:           p.str("REGISTRY_BASE_URL", "https://pmdc.pk/"),
			NavigationTimeout: p.duration("REGISTRY_NAVIGATION_TIMEOUT", 30*time.Second),
			ResultTimeout:     p.duration("REGISTRY_RESULT_TIMEOUT", 5*time.Second),
			DetailTimeout:     p.duration("REGISTRY_DETAIL_TIMEOUT", 10*time.Second),
			MaxConcurrent:     p.integer("REGISTRY_MAX_CONCURRENT", 4),
			NavigationRetries: p.integer("REGISTRY_NAVIGATION_RETRIES", 0),
			BreakerFailures:   p.integer("REGISTRY_BREAKER_FAILURES", 5),
			BreakerCooldown:   p.duration("REGISTRY_BREAKER_COOLDOWN", time.Minute),
			Headless:          p.boolean("REGISTRY_HEADLESS", true),
			ChromePath:        p.str("CHROME_PATH", ""),
			Timezone:          p.str("REGISTRY_TIMEZONE", "Asia/Karachi"),
		},
		Storage: Storage{
			Backend:       strings.ToLower(p.str("LEDGER_BACKEND", BackendMemory)),
			DatabaseURL:   p.str("DATABASE_URL", ""),
			MongoURL:      p.str("MONGO_URL", ""),
			MongoDatabase: p.str("MONGO_DATABASE", "medverify"),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: Audit{
			KafkaBrokers:  p.list("KAFKA_BROKERS"),
			Topic:         p.str("AUDIT_TOPIC", "medverify.audit"),
			ConsumerGroup: p.str("AUDIT_CONSUMER_GROUP", "medverify-audit-materializer"),
		},
		Privacy: Privacy{
			PIIKey:        p.str("PII_KEY", ""),
			LookupHashKey: p.str("LOOKUP_HASH_KEY", ""),
		},
		RateLimit: RateLimit{
			Requests: p.integer("RATE_LIMIT_REQUESTS", 30),
			Window:   p.duration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := p.err(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required when LEDGER_BACKEND=postgres")
		}
	case BackendMongo:
		if c.Storage.MongoURL == "" {
			return errors.New("config: MONGO_URL is required when LEDGER_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("config: unknown LEDGER_BACKEND %q", c.Storage.Backend)
	}
	if c.Registry.MaxConcurrent < 1 {
		return errors.New("config: REGISTRY_MAX_CONCURRENT must be at least 1")
	}
	if c.Registry.NavigationRetries < 0 {
		return errors.New("config: REGISTRY_NAVIGATION_RETRIES must not be negative")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return errors.New("config: RATE_LIMIT_WINDOW must be positive")
	}
	if _, err := time.LoadLocation(c.Registry.Timezone); err != nil {
		return fmt.Errorf("config: REGISTRY_TIMEZONE: %w", err)
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return errors.New("config: ACCESS_TOKEN_TTL must be positive")
	}
	return nil
}

type parser struct {
	lookup func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.lookup(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.lookup(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(p.lookup(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v := strings.TrimSpace(p.lookup(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (p *parser) list(key string) []string {
	var out []string
	for part := range strings.SplitSeq(p.lookup(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}
