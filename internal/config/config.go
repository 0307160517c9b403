// Package config assembles the immutable runtime configuration.
//
// Layers, lowest precedence first: built-in defaults, an optional TOML file
// (--config or CONFIG_FILE), a .env file (never overriding the real
// environment), environment variables, command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"

	ProviderBrevo  = "brevo"
	ProviderResend = "resend"
	ProviderLog    = "log"

	devJWTSecret = "dev-secret-please-change"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	DatabaseURI  string
	DatabaseName string

	JWTSecret       string
	SessionTTL      time.Duration
	OTPTTL          time.Duration
	OTPResendWindow time.Duration

	EmailProvider    string
	EmailTimeout     time.Duration
	BrevoAPIKey      string
	BrevoSenderEmail string
	BrevoSenderName  string
	ResendAPIKey     string
	ResendSender     string

	AuthorizedEmailsFile string
	AdminEmails          []string
	UseEmailReputation   bool
	AbstractAPIKey       string
	// EmailMinReputation is the lowest provider verdict (LOW, MEDIUM, HIGH)
	// an admin may authorize.
	EmailMinReputation string
	EmailAllowRole     bool

	ClientURL         string
	AuthRatePerSecond float64
	AuthRateBurst     int

	SentryDSN string
	Release   string
}

func Defaults() *Config {
	return &Config{
		Env:                  EnvDev,
		LogLevel:             "info",
		HTTPAddr:             ":5000",
		DatabaseName:         "marks",
		SessionTTL:           7 * 24 * time.Hour,
		OTPTTL:               10 * time.Minute,
		OTPResendWindow:      60 * time.Second,
		EmailProvider:        ProviderBrevo,
		EmailTimeout:         5 * time.Second,
		EmailMinReputation:   "MEDIUM",
		BrevoSenderEmail:     "noreply@marksmanagement.com",
		BrevoSenderName:      "Marks Management System",
		AuthorizedEmailsFile: "config/authorizedEmails.txt",
		ClientURL:            "http://localhost:5173",
		AuthRatePerSecond:    1,
		AuthRateBurst:        10,
		Release:              "dev",
	}
}

// Load builds the configuration from args (without the program name) and the
// process environment.
func Load(args []string) (*Config, error) {
	cfg := Defaults()

	fs := pflag.NewFlagSet("marks-api", pflag.ContinueOnError)
	configFile := fs.String("config", os.Getenv("CONFIG_FILE"), "path to a TOML config file")
	envFile := fs.String("env-file", ".env", "path to a dotenv file")
	addr := fs.String("addr", "", "HTTP listen address")
	dbURI := fs.String("database-uri", "", "postgres://, mongodb:// or memory:// URI")
	logLevel := fs.String("log-level", "", "debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configFile != "" {
		if err := applyFile(cfg, *configFile); err != nil {
			return nil, err
		}
	}

	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if fs.Changed("addr") {
		cfg.HTTPAddr = *addr
	}
	if fs.Changed("database-uri") {
		cfg.DatabaseURI = *dbURI
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}

	if cfg.JWTSecret == "" && cfg.Env == EnvDev {
		cfg.JWTSecret = devJWTSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Env != EnvDev && c.Env != EnvProd {
		errs = append(errs, fmt.Errorf("ENV must be %q or %q, got %q", EnvDev, EnvProd, c.Env))
	}
	if c.DatabaseURI == "" {
		errs = append(errs, errors.New("DATABASE_URI is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Env == EnvProd && c.JWTSecret == devJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be changed in prod"))
	}
	switch c.EmailProvider {
	case ProviderBrevo:
		if c.BrevoAPIKey == "" {
			errs = append(errs, errors.New("BREVO_API_KEY is required for the brevo provider"))
		}
	case ProviderResend:
		if c.ResendAPIKey == "" || c.ResendSender == "" {
			errs = append(errs, errors.New("RESEND_API_KEY and RESEND_SENDER are required for the resend provider"))
		}
	case ProviderLog:
		if c.Env == EnvProd {
			errs = append(errs, errors.New("EMAIL_PROVIDER=log is not allowed in prod"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider))
	}
	if c.UseEmailReputation && c.AbstractAPIKey == "" {
		errs = append(errs, errors.New("ABSTRACT_EMAIL_API_KEY is required when USE_EMAIL_REPUTATION=true"))
	}
	switch strings.ToUpper(c.EmailMinReputation) {
	case "LOW", "MEDIUM", "HIGH":
	default:
		errs = append(errs, fmt.Errorf("EMAIL_MIN_REPUTATION must be LOW, MEDIUM or HIGH, got %q", c.EmailMinReputation))
	}
	for name, d := range map[string]time.Duration{
		"SESSION_TTL":       c.SessionTTL,
		"OTP_TTL":           c.OTPTTL,
		"OTP_RESEND_WINDOW": c.OTPResendWindow,
		"EMAIL_TIMEOUT":     c.EmailTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.AuthRatePerSecond <= 0 || c.AuthRateBurst <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_PER_SECOND and AUTH_RATE_BURST must be positive"))
	}
	return errors.Join(errs...)
}

// fileConfig mirrors Config for TOML decoding; unset keys leave defaults alone.
type fileConfig struct {
	Env                  *string        `toml:"env"`
	LogLevel             *string        `toml:"log_level"`
	HTTPAddr             *string        `toml:"http_addr"`
	DatabaseURI          *string        `toml:"database_uri"`
	DatabaseName         *string        `toml:"database_name"`
	JWTSecret            *string        `toml:"jwt_secret"`
	SessionTTL           *time.Duration `toml:"session_ttl"`
	OTPTTL               *time.Duration `toml:"otp_ttl"`
	OTPResendWindow      *time.Duration `toml:"otp_resend_window"`
	EmailProvider        *string        `toml:"email_provider"`
	EmailTimeout         *time.Duration `toml:"email_timeout"`
	BrevoSenderEmail     *string        `toml:"brevo_sender_email"`
	BrevoSenderName      *string        `toml:"brevo_sender_name"`
	ResendSender         *string        `toml:"resend_sender"`
	AuthorizedEmailsFile *string        `toml:"authorized_emails_file"`
	AdminEmails          []string       `toml:"admin_emails"`
	UseEmailReputation   *bool          `toml:"use_email_reputation"`
	EmailMinReputation   *string        `toml:"email_min_reputation"`
	EmailAllowRole       *bool          `toml:"email_allow_role"`
	ClientURL            *string        `toml:"client_url"`
	AuthRatePerSecond    *float64       `toml:"auth_rate_per_second"`
	AuthRateBurst        *int           `toml:"auth_rate_burst"`
}

func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	setString(&cfg.Env, fc.Env)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.DatabaseURI, fc.DatabaseURI)
	setString(&cfg.DatabaseName, fc.DatabaseName)
	setString(&cfg.JWTSecret, fc.JWTSecret)
	setDuration(&cfg.SessionTTL, fc.SessionTTL)
	setDuration(&cfg.OTPTTL, fc.OTPTTL)
	setDuration(&cfg.OTPResendWindow, fc.OTPResendWindow)
	setString(&cfg.EmailProvider, fc.EmailProvider)
	setDuration(&cfg.EmailTimeout, fc.EmailTimeout)
	setString(&cfg.BrevoSenderEmail, fc.BrevoSenderEmail)
	setString(&cfg.BrevoSenderName, fc.BrevoSenderName)
	setString(&cfg.ResendSender, fc.ResendSender)
	setString(&cfg.AuthorizedEmailsFile, fc.AuthorizedEmailsFile)
	if fc.AdminEmails != nil {
		cfg.AdminEmails = fc.AdminEmails
	}
	if fc.UseEmailReputation != nil {
		cfg.UseEmailReputation = *fc.UseEmailReputation
	}
	setString(&cfg.EmailMinReputation, fc.EmailMinReputation)
	if fc.EmailAllowRole != nil {
		cfg.EmailAllowRole = *fc.EmailAllowRole
	}
	setString(&cfg.ClientURL, fc.ClientURL)
	if fc.AuthRatePerSecond != nil {
		cfg.AuthRatePerSecond = *fc.AuthRatePerSecond
	}
	if fc.AuthRateBurst != nil {
		cfg.AuthRateBurst = *fc.AuthRateBurst
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	dur := func(dst *time.Duration, key string) {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str(&cfg.Env, "ENV")
	cfg.Env = strings.ToLower(cfg.Env)
	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.HTTPAddr, "HTTP_ADDR")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("HTTP_ADDR") == "" {
		cfg.HTTPAddr = ":" + port
	}
	str(&cfg.DatabaseURI, "DATABASE_URI", "MONGODB_URI", "DATABASE_URL")
	str(&cfg.DatabaseName, "DATABASE_NAME")
	str(&cfg.JWTSecret, "JWT_SECRET")
	dur(&cfg.SessionTTL, "SESSION_TTL")
	dur(&cfg.OTPTTL, "OTP_TTL")
	dur(&cfg.OTPResendWindow, "OTP_RESEND_WINDOW")
	str(&cfg.EmailProvider, "EMAIL_PROVIDER")
	cfg.EmailProvider = strings.ToLower(cfg.EmailProvider)
	dur(&cfg.EmailTimeout, "EMAIL_TIMEOUT")
	str(&cfg.BrevoAPIKey, "BREVO_API_KEY")
	str(&cfg.BrevoSenderEmail, "BREVO_SENDER_EMAIL")
	str(&cfg.BrevoSenderName, "BREVO_SENDER_NAME")
	str(&cfg.ResendAPIKey, "RESEND_API_KEY")
	str(&cfg.ResendSender, "RESEND_SENDER")
	str(&cfg.AuthorizedEmailsFile, "AUTHORIZED_EMAILS_FILE")
	if v := os.Getenv("ADMIN_EMAILS"); v != "" {
		cfg.AdminEmails = splitList(v)
	}
	if v := os.Getenv("USE_EMAIL_REPUTATION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("USE_EMAIL_REPUTATION: %w", err))
		}
		cfg.UseEmailReputation = b
	}
	str(&cfg.AbstractAPIKey, "ABSTRACT_EMAIL_API_KEY")
	str(&cfg.EmailMinReputation, "EMAIL_MIN_REPUTATION")
	if v := os.Getenv("EMAIL_ALLOW_ROLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("EMAIL_ALLOW_ROLE: %w", err))
		}
		cfg.EmailAllowRole = b
	}
	str(&cfg.ClientURL, "CLIENT_URL")
	if v := os.Getenv("AUTH_RATE_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("AUTH_RATE_PER_SECOND: %w", err))
		}
		cfg.AuthRatePerSecond = f
	}
	if v := os.Getenv("AUTH_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("AUTH_RATE_BURST: %w", err))
		}
		cfg.AuthRateBurst = n
	}
	str(&cfg.SentryDSN, "SENTRY_DSN")
	str(&cfg.Release, "RELEASE")
	return errors.Join(errs...)
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
