package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	passwordvalidator "github.com/wagslane/go-password-validator"

	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
)

// minSecretEntropyBits is the least entropy accepted for the API token secret.
const minSecretEntropyBits = 60

type ReconcileMode string

const (
	ReconcileDB       ReconcileMode = "db"
	ReconcileCallback ReconcileMode = "callback"
)

type Config struct {
	RunAddr        string        `env:"RUN_ADDRESS"         envDefault:"localhost:8080"`
	DatabaseURI    string        `env:"DATABASE_URI"        envDefault:""`
	NodeServerURL  string        `env:"NODE_SERVER_URL"     envDefault:"http://localhost:5000"`
	PortalURL      string        `env:"PORTAL_URL"          envDefault:"https://kpp.bankplus.vn"`
	PortalUsername string        `env:"PORTAL_USERNAME"     envDefault:""`
	PortalPassword string        `env:"PORTAL_PASSWORD"     envDefault:""`
	DefaultPIN     string        `env:"DEFAULT_PIN"         envDefault:""`
	ResultDir      string        `env:"RESULT_DIR"          envDefault:"result"`
	ReconcileMode  ReconcileMode `env:"RECONCILE_MODE"      envDefault:"db"`
	ProfileDir     string        `env:"BROWSER_PROFILE_DIR" envDefault:"browser-profile"`
	SecretKey      string        `env:"SECRET_KEY"          envDefault:""`
	LogLevel       string        `env:"LOG_LEVEL"           envDefault:"info"`
	Schedules      Schedules
	StepPause      time.Duration `env:"STEP_PAUSE"          envDefault:"1s"`
	PendingLimit   int           `env:"PENDING_LIMIT"       envDefault:"10"`
	Headless       bool          `env:"HEADLESS"            envDefault:"false"`
}

// Schedules holds one cron spec per service; empty disables the service.
type Schedules struct {
	FTTHLookup     string `env:"SCHEDULE_TRA_CUU_FTTH"`
	EVNPayment     string `env:"SCHEDULE_GACH_DIEN_EVN"`
	MultiTopUp     string `env:"SCHEDULE_NAP_TIEN_DA_MANG"`
	ViettelTopUp   string `env:"SCHEDULE_NAP_TIEN_VIETTEL"`
	TVInternet     string `env:"SCHEDULE_THANH_TOAN_TV_INTERNET"`
	PostpaidLookup string `env:"SCHEDULE_TRA_CUU_NO_TRA_SAU"`
}

// Enabled returns the services with a schedule.
func (s Schedules) Enabled() map[order.ServiceType]string {
	all := map[order.ServiceType]string{
		order.ServiceFTTHLookup:     s.FTTHLookup,
		order.ServiceEVNPayment:     s.EVNPayment,
		order.ServiceMultiTopUp:     s.MultiTopUp,
		order.ServiceViettelTopUp:   s.ViettelTopUp,
		order.ServiceTVInternet:     s.TVInternet,
		order.ServicePostpaidLookup: s.PostpaidLookup,
	}
	enabled := make(map[order.ServiceType]string)
	for service, spec := range all {
		if spec = strings.TrimSpace(spec); spec != "" {
			enabled[service] = spec
		}
	}
	return enabled
}

func (c *Config) Validate() error {
	switch c.ReconcileMode {
	case ReconcileDB:
		if c.DatabaseURI == "" {
			return errors.New("DATABASE_URI is required in db reconcile mode")
		}
	case ReconcileCallback:
		if c.NodeServerURL == "" {
			return errors.New("NODE_SERVER_URL is required in callback reconcile mode")
		}
	default:
		return fmt.Errorf("unknown reconcile mode %q", c.ReconcileMode)
	}
	if c.PendingLimit <= 0 {
		return fmt.Errorf("pending limit must be positive, got %d", c.PendingLimit)
	}
	if c.SecretKey != "" {
		if err := passwordvalidator.Validate(c.SecretKey, minSecretEntropyBits); err != nil {
			return fmt.Errorf("SECRET_KEY is too weak: %w", err)
		}
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto slog; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type Builder struct {
	cfg *Config
	log *slog.Logger
}

func NewBuilder(log *slog.Logger) *Builder {
	return &Builder{
		cfg: &Config{},
		log: log,
	}
}

// FromDotEnv loads variables from the files into the process environment.
// Missing files are skipped, variables already set win.
func (b *Builder) FromDotEnv(files ...string) *Builder {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			b.log.LogAttrs(context.Background(),
				slog.LevelError, "failed to load env file",
				slog.String("file", f),
				slog.Any(model.KeyLoggerError, err))
		}
	}
	return b
}

func (b *Builder) FromEnv() *Builder {
	if err := env.Parse(b.cfg); err != nil {
		b.log.LogAttrs(context.Background(),
			slog.LevelError, "failed to parse config", slog.Any(model.KeyLoggerError, err))
	}
	return b
}

// RegisterFlags declares the config flags on fs. Only flags set on the
// command line override the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("address", "a", "", "Run address")
	fs.StringP("database", "d", "", "Database URI")
	fs.StringP("node-server", "n", "", "Order service base URL")
	fs.String("portal", "", "Portal base URL")
	fs.StringP("result-dir", "o", "", "Export directory")
	fs.StringP("reconcile", "r", "", "Reconcile mode: db or callback")
	fs.String("profile-dir", "", "Browser profile directory")
	fs.StringP("key", "k", "", "Secret key for API tokens")
	fs.StringP("log-level", "l", "", "Log level")
	fs.String("pin", "", "Payment PIN")
	fs.Bool("headless", false, "Run the browser headless")
}

func (b *Builder) FromFlags(fs *pflag.FlagSet) *Builder {
	strFlags := map[string]*string{
		"address":     &b.cfg.RunAddr,
		"database":    &b.cfg.DatabaseURI,
		"node-server": &b.cfg.NodeServerURL,
		"portal":      &b.cfg.PortalURL,
		"result-dir":  &b.cfg.ResultDir,
		"profile-dir": &b.cfg.ProfileDir,
		"key":         &b.cfg.SecretKey,
		"log-level":   &b.cfg.LogLevel,
		"pin":         &b.cfg.DefaultPIN,
	}
	for name, dst := range strFlags {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			b.flagError(name, err)
			continue
		}
		*dst = v
	}

	if fs.Changed("reconcile") {
		v, err := fs.GetString("reconcile")
		if err != nil {
			b.flagError("reconcile", err)
		} else {
			b.cfg.ReconcileMode = ReconcileMode(v)
		}
	}
	if fs.Changed("headless") {
		v, err := fs.GetBool("headless")
		if err != nil {
			b.flagError("headless", err)
		} else {
			b.cfg.Headless = v
		}
	}
	return b
}

func (b *Builder) GetConfig() *Config {
	return b.cfg
}

func (b *Builder) flagError(name string, err error) {
	b.log.LogAttrs(context.Background(),
		slog.LevelError, "failed to read flag",
		slog.String("flag", name),
		slog.Any(model.KeyLoggerError, err))
}
