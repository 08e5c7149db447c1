/*
Package config loads server and organization configuration.

SOURCES (highest precedence first):
  1. Environment variables
  2. .env file in the working directory (loaded via godotenv, optional)
  3. Built-in defaults

VARIABLES:
  PORT                     HTTP port (default 8080)
  DB_PATH                  SQLite path, ":memory:" for ephemeral (default payroll.db)
  LOG_LEVEL                zap level: debug, info, warn, error (default info)

  ORG_ENTITY_TYPE          MAINLAND_MOHRE or FREE_ZONE
  ORG_ESTABLISHMENT_NUMBER MOHRE establishment number (WPS header field)
  ORG_BANK_ROUTING_CODE    WPS bank routing code
  ORG_CURRENCY             Currency code (default AED)
  ORG_WPS_APPLICABLE       true/false (default true)
  ORG_STANDARD_HOURS       Hourly-rate divisor (default 240)
  ORG_PRORATION            day_weighted or ignore_mid_period
  ORG_GRATUITY_TIER1_DAYS  Days per year for the first five years (default 21)
  ORG_GRATUITY_TIER2_DAYS  Days per year beyond five years (default 30)
  ORG_GRATUITY_CAP_YEARS   Gratuity cap in years of basic salary (default 2)
*/
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// Config is the resolved server configuration.
type Config struct {
	Port     int
	DBPath   string
	LogLevel string
	Org      payroll.OrgSettings
}

// Load reads configuration from the environment, with an optional .env file.
// A missing .env file is not an error.
func Load() Config {
	godotenv.Load()

	cfg := Config{
		Port:     envInt("PORT", 8080),
		DBPath:   envString("DB_PATH", "payroll.db"),
		LogLevel: envString("LOG_LEVEL", "info"),
		Org:      payroll.DefaultSettings(),
	}

	cfg.Org.EntityType = payroll.EntityType(envString("ORG_ENTITY_TYPE", string(cfg.Org.EntityType)))
	cfg.Org.MOHREEstablishmentNumber = envString("ORG_ESTABLISHMENT_NUMBER", cfg.Org.MOHREEstablishmentNumber)
	cfg.Org.WPSBankRoutingCode = envString("ORG_BANK_ROUTING_CODE", cfg.Org.WPSBankRoutingCode)
	cfg.Org.Currency = envString("ORG_CURRENCY", cfg.Org.Currency)
	cfg.Org.WPSApplicable = envBool("ORG_WPS_APPLICABLE", cfg.Org.WPSApplicable)
	cfg.Org.StandardMonthlyHours = envDecimal("ORG_STANDARD_HOURS", cfg.Org.StandardMonthlyHours)
	cfg.Org.Proration = payroll.ProrationPolicy(envString("ORG_PRORATION", string(cfg.Org.Proration)))
	cfg.Org.GratuityFirst5YearDays = envDecimal("ORG_GRATUITY_TIER1_DAYS", cfg.Org.GratuityFirst5YearDays)
	cfg.Org.GratuityAfter5YearDays = envDecimal("ORG_GRATUITY_TIER2_DAYS", cfg.Org.GratuityAfter5YearDays)
	cfg.Org.GratuityCapYears = envInt("ORG_GRATUITY_CAP_YEARS", cfg.Org.GratuityCapYears)

	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}
