package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | inmem
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	BillingConfig struct {
		EnrollmentFee      decimal.Decimal
		DefaultMonthlyRate decimal.Decimal
		// GraceMonths is added to a tuition period's month to get its due month.
		GraceMonths int
		Location    *time.Location
	}

	Config struct {
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		WorkDir                   string
		FrontendBaseURL           string
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Billing  BillingConfig

		defaultFromEmail string
	}
)

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	return *addr
}

func (conf *Config) Address() string {
	return net.JoinHostPort(conf.Server.Host, conf.Server.Port)
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads the configuration for the current ENV (DEV by default).
// Values come from defaults, then config/.env.<env> if present, then <ENV>_* environment variables.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Cuota")
	v.SetDefault("secretKey", "c4u7-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("defaultFromEmail", "Cuota <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server_host", "")
	v.SetDefault("server_port", "3001")
	v.SetDefault("server_debugHost", "localhost:4001")
	v.SetDefault("server_shutdownTimeout", 5*time.Second)
	v.SetDefault("server_jwtExpirationDelta", 8*time.Hour)
	v.SetDefault("server_jwtRefreshExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "cuota")
	v.SetDefault("database_user", "cuota")
	v.SetDefault("database_password", "cuota")
	v.SetDefault("database_adminUser", "postgres")
	v.SetDefault("database_adminPassword", "postgres")
	v.SetDefault("database_disableTLS", true)

	v.SetDefault("billing_enrollmentFee", "100.00")
	v.SetDefault("billing_defaultMonthlyRate", "300.00")
	v.SetDefault("billing_graceMonths", 1)
	v.SetDefault("billing_timezone", "America/Lima")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	} else {
		v.SetDefault("testMode", false)
	}
	v.SetEnvPrefix(env)

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		WorkDir:                   workDir,
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			Port:                      v.GetString("server_port"),
			DebugHost:                 v.GetString("server_debugHost"),
			ShutdownTimeout:           v.GetDuration("server_shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server_jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server_jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_adminUser"),
			AdminPassword: v.GetString("database_adminPassword"),
			DisableTLS:    v.GetBool("database_disableTLS"),
		},
		Billing: BillingConfig{
			EnrollmentFee:      mustDecimal("billing_enrollmentFee", v.GetString("billing_enrollmentFee")),
			DefaultMonthlyRate: mustDecimal("billing_defaultMonthlyRate", v.GetString("billing_defaultMonthlyRate")),
			GraceMonths:        v.GetInt("billing_graceMonths"),
			Location:           loadLocation(v.GetString("billing_timezone")),
		},
	}
	return conf
}

// NewTestConfig returns a Config suitable for tests: no .env lookup, no env vars.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		Debug:                     false,
		TestMode:                  true,
		AppName:                   "Cuota",
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:5173",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		defaultFromEmail:          "Cuota <noreply@localhost>",
		Server: ServerConfig{
			Port:                      "3001",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Database: DatabaseConfig{Engine: "inmem"},
		Billing: BillingConfig{
			EnrollmentFee:      decimal.RequireFromString("100.00"),
			DefaultMonthlyRate: decimal.RequireFromString("300.00"),
			GraceMonths:        1,
			Location:           time.UTC,
		},
	}
}

func mustDecimal(key, val string) decimal.Decimal {
	d, err := decimal.NewFromString(val)
	if err != nil {
		log.Fatalf("config.%s: %v", key, fmt.Errorf("invalid amount %q: %w", val, err))
	}
	return d
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("config.billing_timezone: failed to load %q, falling back to UTC: %v", name, err)
		return time.UTC
	}
	return loc
}
