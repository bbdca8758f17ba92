// Package config defines the YAML product-configuration shape and loads it
// into engine terms and validated allocation rules. The engine itself never
// reads configuration; everything is resolved here and passed in explicitly.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/loan-engine/allocation"
	"github.com/warp/loan-engine/engine"
)

// DateLayout is the date format expected in config files.
const DateLayout = "2006-01-02"

// Configuration is the root of a product configuration file.
type Configuration struct {
	Currency CurrencyConfig
	Rounding RoundingConfig
	Product  ProductConfig
}

// CurrencyConfig names the currency and its minor-unit digits.
type CurrencyConfig struct {
	Code   string
	Digits int32
}

// RoundingConfig selects the engine's math context.
type RoundingConfig struct {
	Precision int32
	Mode      string // half_even, half_up, down, up, floor, ceiling
}

// ProductConfig carries the loan product definition: default terms, the
// processing strategy and the raw allocation rule payloads.
type ProductConfig struct {
	TransactionProcessingStrategy string
	Terms                         TermsConfig
	PaymentAllocations            []allocation.RawPaymentAllocationRule
	CreditAllocations             []allocation.RawCreditAllocationRule
}

// TermsConfig is the file-level shape of engine.LoanTerms. Amounts and
// rates are strings so they parse exactly, never through float64.
type TermsConfig struct {
	Principal          string
	AnnualRatePercent  string
	DisbursementDate   string
	FirstPeriodStart   string
	NumberOfRepayments int
	RepaymentUnit      string
	RepayEvery         int
	DaysInMonth        string
	DaysInYear         string
	DownPaymentEnabled bool
	DownPaymentPercent string
	PreClosureStrategy string
}

// LoadConfiguration reads a YAML product configuration from the given path.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &configuration, nil
}

// EngineCurrency resolves the configured currency, defaulting to USD.
func (c *Configuration) EngineCurrency() engine.Currency {
	if c.Currency.Code == "" {
		return engine.USD
	}
	return engine.Currency{Code: c.Currency.Code, Digits: c.Currency.Digits}
}

// MathContext resolves the configured rounding policy, defaulting to the
// engine's half-even context.
func (c *Configuration) MathContext() engine.MathContext {
	mc := engine.DefaultMathContext
	if c.Rounding.Precision > 0 {
		mc.Precision = c.Rounding.Precision
	}
	if c.Rounding.Mode != "" {
		mc.Mode = engine.RoundingMode(c.Rounding.Mode)
	}
	return mc
}

// EngineTerms converts the file-level terms into engine.LoanTerms.
func (c *Configuration) EngineTerms() (engine.LoanTerms, error) {
	cur := c.EngineCurrency()
	tc := c.Product.Terms

	principal, err := engine.NewMoneyFromString(cur, tc.Principal)
	if err != nil {
		return engine.LoanTerms{}, fmt.Errorf("principal: %w", err)
	}
	rate, err := decimal.NewFromString(tc.AnnualRatePercent)
	if err != nil {
		return engine.LoanTerms{}, fmt.Errorf("annualRatePercent: %w", err)
	}
	disbursement, err := time.Parse(DateLayout, tc.DisbursementDate)
	if err != nil {
		return engine.LoanTerms{}, fmt.Errorf("disbursementDate: %w", err)
	}
	firstStart, err := time.Parse(DateLayout, tc.FirstPeriodStart)
	if err != nil {
		return engine.LoanTerms{}, fmt.Errorf("firstPeriodStart: %w", err)
	}

	terms := engine.LoanTerms{
		Currency:           cur,
		Principal:          principal,
		AnnualRatePercent:  rate,
		DisbursementDate:   disbursement,
		FirstPeriodStart:   firstStart,
		NumberOfRepayments: tc.NumberOfRepayments,
		RepaymentUnit:      engine.RepaymentUnit(orDefault(tc.RepaymentUnit, string(engine.RepayMonthly))),
		RepayEvery:         tc.RepayEvery,
		DaysInMonth:        engine.DaysInMonthType(orDefault(tc.DaysInMonth, string(engine.DaysInMonthActual))),
		DaysInYear:         engine.DaysInYearType(orDefault(tc.DaysInYear, string(engine.DaysInYearActual))),
		DownPaymentEnabled: tc.DownPaymentEnabled,
		PreClosureStrategy: engine.PreClosureStrategy(orDefault(tc.PreClosureStrategy, string(engine.TillPreClosureDate))),
	}
	if tc.DownPaymentEnabled {
		pct, err := decimal.NewFromString(tc.DownPaymentPercent)
		if err != nil {
			return engine.LoanTerms{}, fmt.Errorf("downPaymentPercent: %w", err)
		}
		terms.DownPaymentPercent = pct
	}
	return terms, terms.Validate()
}

// PaymentRules parses and validates the configured payment allocation
// rules against the product's strategy.
func (c *Configuration) PaymentRules() ([]allocation.PaymentAllocationRule, error) {
	return allocation.ParsePaymentAllocationRules(c.Product.PaymentAllocations, c.Product.TransactionProcessingStrategy)
}

// CreditRules parses and validates the configured credit allocation rules.
func (c *Configuration) CreditRules() ([]allocation.CreditAllocationRule, error) {
	return allocation.ParseCreditAllocationRules(c.Product.CreditAllocations, c.Product.TransactionProcessingStrategy)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
