// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package taxctlconfig provides configuration parsing and validation for taxctl.
//
// Configuration is stored at <dir>/taxctl.yaml, where <dir> is the base
// directory given by the --dir flag. The currency pair and the broker export
// schema are configuration so the same binary can be re-keyed to other
// brokers' export layouts and other jurisdictions' currency pairs.
package taxctlconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/taxctl/taxctl/internal/pkg/brokercsv"
)

// ConfigFileName is the well-known config file name within the base directory.
const ConfigFileName = "taxctl.yaml"

// configTemplate is the default configuration file template with comments.
// yaml.v3 does not preserve comments, so we hardcode the template string.
const configTemplate = `# The configuration file version.
#
# Required. The only current valid version is v1.
version: v1
# The currency pair for the report.
#
# foreign is the currency the brokerage transactions are denominated in.
# base is the home-jurisdiction reporting currency.
currencies:
  foreign: USD
  base: ILS
# Broker export schema overrides.
#
# Optional. The defaults match Interactive Brokers Activity Statement CSVs.
# Override section and column names to re-key the extractor to another
# broker's export layout.
# broker:
#   trades_section: Trades
#   dividends_section: Dividends
#   withholding_section: Withholding Tax
#   cash_report_section: Cash Report
#   stocks_category: Stocks
#   order_discriminator: Order
#   symbol_column: Symbol
#   quantity_column: Quantity
#   date_time_column: Date/Time
#   basis_column: Basis
#   asset_category_column: Asset Category
#   discriminator_column: DataDiscriminator
#   currency_column: Currency
#   date_column: Date
#   description_column: Description
#   amount_column: Amount
`

// ExternalConfig is the YAML-serializable configuration file structure.
type ExternalConfig struct {
	// Version is the configuration file version (must be "v1").
	Version string `yaml:"version"`
	// Currencies holds the foreign/base currency pair.
	Currencies ExternalCurrenciesConfig `yaml:"currencies"`
	// Broker holds optional broker export schema overrides.
	Broker ExternalBrokerConfig `yaml:"broker"`
}

// ExternalCurrenciesConfig holds the currency pair configuration.
type ExternalCurrenciesConfig struct {
	// Foreign is the transaction currency (e.g., "USD").
	Foreign string `yaml:"foreign"`
	// Base is the reporting currency (e.g., "ILS").
	Base string `yaml:"base"`
}

// ExternalBrokerConfig holds broker export schema overrides. Empty fields
// fall back to the Interactive Brokers defaults.
type ExternalBrokerConfig struct {
	TradesSection       string `yaml:"trades_section"`
	DividendsSection    string `yaml:"dividends_section"`
	WithholdingSection  string `yaml:"withholding_section"`
	CashReportSection   string `yaml:"cash_report_section"`
	StocksCategory      string `yaml:"stocks_category"`
	OrderDiscriminator  string `yaml:"order_discriminator"`
	SymbolColumn        string `yaml:"symbol_column"`
	QuantityColumn      string `yaml:"quantity_column"`
	DateTimeColumn      string `yaml:"date_time_column"`
	BasisColumn         string `yaml:"basis_column"`
	AssetCategoryColumn string `yaml:"asset_category_column"`
	DiscriminatorColumn string `yaml:"discriminator_column"`
	CurrencyColumn      string `yaml:"currency_column"`
	DateColumn          string `yaml:"date_column"`
	DescriptionColumn   string `yaml:"description_column"`
	AmountColumn        string `yaml:"amount_column"`
}

// Config is the validated runtime configuration derived from the config file.
type Config struct {
	// ForeignCurrency is the transaction currency.
	ForeignCurrency string
	// BaseCurrency is the reporting currency.
	BaseCurrency string
	// Schema is the broker export schema, defaults merged with overrides.
	Schema brokercsv.Schema
}

// NewConfig validates an ExternalConfig and returns a runtime Config.
func NewConfig(externalConfig ExternalConfig) (*Config, error) {
	if externalConfig.Version != "v1" {
		return nil, fmt.Errorf("unsupported config version %q, must be v1", externalConfig.Version)
	}
	foreignCurrency := externalConfig.Currencies.Foreign
	if foreignCurrency == "" {
		foreignCurrency = "USD"
	}
	baseCurrency := externalConfig.Currencies.Base
	if baseCurrency == "" {
		baseCurrency = "ILS"
	}
	if len(foreignCurrency) != 3 {
		return nil, fmt.Errorf("currencies.foreign must be a 3-letter ISO code, got %q", foreignCurrency)
	}
	if len(baseCurrency) != 3 {
		return nil, fmt.Errorf("currencies.base must be a 3-letter ISO code, got %q", baseCurrency)
	}
	if foreignCurrency == baseCurrency {
		return nil, fmt.Errorf("currencies.foreign and currencies.base are both %q, a report needs two currencies", foreignCurrency)
	}
	schema := mergeSchema(brokercsv.DefaultSchema(), externalConfig.Broker)
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("broker schema: %w", err)
	}
	return &Config{
		ForeignCurrency: foreignCurrency,
		BaseCurrency:    baseCurrency,
		Schema:          schema,
	}, nil
}

// ConfigFilePath returns the path to the config file within the base directory.
func ConfigFilePath(dirPath string) string {
	return filepath.Join(dirPath, ConfigFileName)
}

// ReadConfig reads and validates the configuration file from the base directory.
// Returns a clear error message directing users to run "taxctl config init" if
// the file is missing.
func ReadConfig(dirPath string) (*Config, error) {
	filePath := ConfigFilePath(dirPath)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found at %s, run \"taxctl config init\" to create one", filePath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var externalConfig ExternalConfig
	if err := unmarshalYAMLStrict(data, &externalConfig); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
	}
	return NewConfig(externalConfig)
}

// InitConfig creates a new configuration file with a documented template.
// Creates the base directory if it does not exist.
// Returns the path to the created file, or an error if the file already exists.
func InitConfig(dirPath string) (string, error) {
	filePath := ConfigFilePath(dirPath)
	if _, err := os.Stat(filePath); err == nil {
		return "", fmt.Errorf("configuration file already exists: %s", filePath)
	}
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(filePath, []byte(configTemplate), 0o644); err != nil {
		return "", err
	}
	return filePath, nil
}

// ValidateConfig reads and validates the configuration file from the base directory.
func ValidateConfig(dirPath string) error {
	_, err := ReadConfig(dirPath)
	return err
}

// *** PRIVATE ***

// mergeSchema overlays non-empty broker overrides onto the default schema.
func mergeSchema(schema brokercsv.Schema, overrides ExternalBrokerConfig) brokercsv.Schema {
	for _, override := range []struct {
		value  string
		target *string
	}{
		{overrides.TradesSection, &schema.TradesSection},
		{overrides.DividendsSection, &schema.DividendsSection},
		{overrides.WithholdingSection, &schema.WithholdingSection},
		{overrides.CashReportSection, &schema.CashReportSection},
		{overrides.StocksCategory, &schema.StocksCategory},
		{overrides.OrderDiscriminator, &schema.OrderDiscriminator},
		{overrides.SymbolColumn, &schema.SymbolColumn},
		{overrides.QuantityColumn, &schema.QuantityColumn},
		{overrides.DateTimeColumn, &schema.DateTimeColumn},
		{overrides.BasisColumn, &schema.BasisColumn},
		{overrides.AssetCategoryColumn, &schema.AssetCategoryColumn},
		{overrides.DiscriminatorColumn, &schema.DiscriminatorColumn},
		{overrides.CurrencyColumn, &schema.CurrencyColumn},
		{overrides.DateColumn, &schema.DateColumn},
		{overrides.DescriptionColumn, &schema.DescriptionColumn},
		{overrides.AmountColumn, &schema.AmountColumn},
	} {
		if override.value != "" {
			*override.target = override.value
		}
	}
	return schema
}

// unmarshalYAMLStrict unmarshals the data as YAML with strict field checking.
// If the data length is 0, this is a no-op.
func unmarshalYAMLStrict(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	yamlDecoder := yaml.NewDecoder(bytes.NewReader(data))
	// Reject unknown fields.
	yamlDecoder.KnownFields(true)
	if err := yamlDecoder.Decode(v); err != nil {
		return fmt.Errorf("could not unmarshal as YAML: %w", err)
	}
	return nil
}
