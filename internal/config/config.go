// Package config builds the immutable server configuration from flags and
// environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/and161185/tasktracker/internal/errs"
)

// Limiter backends.
const (
	LimiterMemory   = "memory"
	LimiterPostgres = "postgres"
)

// Config is read once at startup and passed by value afterwards.
type Config struct {
	Addr string
	// DSN selects PostgreSQL storage; empty means in-memory storage.
	DSN       string
	JWTSecret []byte
	TokenTTL  time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int
	LimiterBackend  string
	// TrustProxy makes the client address come from X-Forwarded-For.
	TrustProxy bool

	BcryptCost int
	// DBConnectAttempts bounds the startup ping retries.
	DBConnectAttempts uint64
	ShutdownTimeout   time.Duration
}

// Default returns a Config with every optional setting filled in.
func Default() Config {
	return Config{
		Addr:              ":3000",
		TokenTTL:          24 * time.Hour,
		RateLimitWindow:   15 * time.Minute,
		RateLimitMax:      100,
		LimiterBackend:    LimiterMemory,
		BcryptCost:        12,
		DBConnectAttempts: 5,
		ShutdownTimeout:   5 * time.Second,
	}
}

// Load parses args (without the program name) on top of defaults taken from
// getenv. Flags win over environment variables.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()

	env := envReader{get: getenv}
	cfg.Addr = env.str("ADDR", cfg.Addr)
	cfg.DSN = env.str("DATABASE_DSN", cfg.DSN)
	secret := env.str("JWT_SECRET", "")
	cfg.TokenTTL = env.dur("TOKEN_TTL", cfg.TokenTTL)
	cfg.RateLimitWindow = env.dur("RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
	cfg.RateLimitMax = env.num("RATE_LIMIT_MAX", cfg.RateLimitMax)
	cfg.LimiterBackend = env.str("LIMITER_BACKEND", cfg.LimiterBackend)
	cfg.TrustProxy = env.boolean("TRUST_PROXY", cfg.TrustProxy)
	cfg.BcryptCost = env.num("BCRYPT_COST", cfg.BcryptCost)
	if env.err != nil {
		return Config{}, env.err
	}

	fs := flag.NewFlagSet("tasktracker", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "PostgreSQL DSN (empty: in-memory storage)")
	fs.StringVar(&secret, "jwt-secret", secret, "HS256 signing secret (required)")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "session token TTL")
	fs.DurationVar(&cfg.RateLimitWindow, "rate-window", cfg.RateLimitWindow, "auth rate limit window")
	fs.IntVar(&cfg.RateLimitMax, "rate-max", cfg.RateLimitMax, "auth requests per window per client")
	fs.StringVar(&cfg.LimiterBackend, "limiter", cfg.LimiterBackend, "rate limiter backend: memory|postgres")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", cfg.TrustProxy, "take client address from X-Forwarded-For")
	fs.IntVar(&cfg.BcryptCost, "bcrypt-cost", cfg.BcryptCost, "bcrypt work factor")
	fs.Uint64Var(&cfg.DBConnectAttempts, "db-attempts", cfg.DBConnectAttempts, "database ping attempts at startup")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown deadline")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	cfg.JWTSecret = []byte(secret)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. A missing secret is
// errs.ErrMissingSecret.
func (c Config) Validate() error {
	if len(c.JWTSecret) == 0 {
		return fmt.Errorf("%w: set JWT_SECRET or -jwt-secret", errs.ErrMissingSecret)
	}
	var problems []error
	if c.TokenTTL <= 0 {
		problems = append(problems, errors.New("token ttl must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		problems = append(problems, errors.New("rate limit window must be positive"))
	}
	if c.RateLimitMax <= 0 {
		problems = append(problems, errors.New("rate limit max must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		problems = append(problems, fmt.Errorf("bcrypt cost must be in [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}
	switch c.LimiterBackend {
	case LimiterMemory:
	case LimiterPostgres:
		if c.DSN == "" {
			problems = append(problems, errors.New("postgres limiter requires a dsn"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown limiter backend %q", c.LimiterBackend))
	}
	if c.ShutdownTimeout <= 0 {
		problems = append(problems, errors.New("shutdown timeout must be positive"))
	}
	return errors.Join(problems...)
}

// envReader remembers the first malformed variable.
type envReader struct {
	get func(string) string
	err error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) dur(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *envReader) num(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("env %s: %w", key, err)
	}
}
