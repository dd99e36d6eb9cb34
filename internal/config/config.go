package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file written by init and searched for by Load.
const FileName = "finoob.yaml"

// EnvPrefix prefixes environment overrides, e.g. FINOOB_LEDGER_BACKEND.
const EnvPrefix = "FINOOB"

// Ledger backends.
const (
	BackendCSV      = "csv"
	BackendBigQuery = "bigquery"
)

// Config is the resolved finoob configuration.
type Config struct {
	Log            LogConfig            `mapstructure:"log" yaml:"log"`
	Data           DataConfig           `mapstructure:"data" yaml:"data"`
	Ledger         LedgerConfig         `mapstructure:"ledger" yaml:"ledger"`
	BigQuery       BigQueryConfig       `mapstructure:"bigquery" yaml:"bigquery"`
	Categorization CategorizationConfig `mapstructure:"categorization" yaml:"categorization"`
	Reimbursement  ReimbursementConfig  `mapstructure:"reimbursement" yaml:"reimbursement"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// DataConfig locates local files. Relative paths resolve against Directory.
type DataConfig struct {
	Directory      string `mapstructure:"directory" yaml:"directory"`
	AccountsFile   string `mapstructure:"accounts_file" yaml:"accounts_file"`
	CategoriesFile string `mapstructure:"categories_file" yaml:"categories_file"`
}

// LedgerConfig selects the ledger store.
type LedgerConfig struct {
	Backend      string `mapstructure:"backend" yaml:"backend"`
	CSVDirectory string `mapstructure:"csv_directory" yaml:"csv_directory"`
}

// BigQueryConfig identifies the ledger table and net-worth procedure.
type BigQueryConfig struct {
	Project           string `mapstructure:"project" yaml:"project"`
	Dataset           string `mapstructure:"dataset" yaml:"dataset"`
	Table             string `mapstructure:"table" yaml:"table"`
	Location          string `mapstructure:"location" yaml:"location"`
	CredentialsFile   string `mapstructure:"credentials_file" yaml:"credentials_file,omitempty"`
	NetWorthProcedure string `mapstructure:"net_worth_procedure" yaml:"net_worth_procedure"`
}

// CategorizationConfig controls keyword matching.
type CategorizationConfig struct {
	CaseSensitive bool `mapstructure:"case_sensitive" yaml:"case_sensitive"`
}

// ReimbursementConfig controls candidate selection for linking.
type ReimbursementConfig struct {
	Category     string `mapstructure:"category" yaml:"category"`
	CutoverDate  string `mapstructure:"cutover_date" yaml:"cutover_date"` // YYYY-MM-DD
	ExpenseLimit int    `mapstructure:"expense_limit" yaml:"expense_limit"`
}

// Load resolves configuration from defaults, an optional config file,
// a .env file and FINOOB_* environment variables, in increasing precedence.
// An empty path searches ".", ".finoob" and "$HOME/.finoob" for finoob.yaml.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(path); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(".finoob")
		v.AddConfigPath("$HOME/.finoob")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Data.Directory == "" && v.ConfigFileUsed() != "" {
		cfg.Data.Directory = filepath.Dir(v.ConfigFileUsed())
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads .env next to the config file (or in the working
// directory) without overriding variables already set.
func loadEnvFile(configPath string) error {
	envFile := ".env"
	if configPath != "" {
		envFile = filepath.Join(filepath.Dir(configPath), ".env")
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("data.directory", d.Data.Directory)
	v.SetDefault("data.accounts_file", d.Data.AccountsFile)
	v.SetDefault("data.categories_file", d.Data.CategoriesFile)
	v.SetDefault("ledger.backend", d.Ledger.Backend)
	v.SetDefault("ledger.csv_directory", d.Ledger.CSVDirectory)
	v.SetDefault("bigquery.project", d.BigQuery.Project)
	v.SetDefault("bigquery.dataset", d.BigQuery.Dataset)
	v.SetDefault("bigquery.table", d.BigQuery.Table)
	v.SetDefault("bigquery.location", d.BigQuery.Location)
	v.SetDefault("bigquery.credentials_file", d.BigQuery.CredentialsFile)
	v.SetDefault("bigquery.net_worth_procedure", d.BigQuery.NetWorthProcedure)
	v.SetDefault("categorization.case_sensitive", d.Categorization.CaseSensitive)
	v.SetDefault("reimbursement.category", d.Reimbursement.Category)
	v.SetDefault("reimbursement.cutover_date", d.Reimbursement.CutoverDate)
	v.SetDefault("reimbursement.expense_limit", d.Reimbursement.ExpenseLimit)
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Data: DataConfig{
			AccountsFile:   "accounts.json",
			CategoriesFile: "categories.json",
		},
		Ledger: LedgerConfig{
			Backend:      BackendCSV,
			CSVDirectory: "ledger",
		},
		BigQuery: BigQueryConfig{
			Dataset:           "finance",
			Table:             "transactions",
			Location:          "EU",
			NetWorthProcedure: "refresh_net_worth",
		},
		Reimbursement: ReimbursementConfig{
			Category:     "Reimbursement",
			CutoverDate:  "2025-09-12",
			ExpenseLimit: 1000,
		},
	}
}

// Validate checks value ranges and backend requirements.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", c.Log.Format)
	}

	switch c.Ledger.Backend {
	case BackendCSV:
		if c.Ledger.CSVDirectory == "" {
			return fmt.Errorf("ledger.csv_directory is required for the %s backend", BackendCSV)
		}
	case BackendBigQuery:
		if c.BigQuery.Project == "" || c.BigQuery.Dataset == "" || c.BigQuery.Table == "" {
			return fmt.Errorf("bigquery.project, bigquery.dataset and bigquery.table are required for the %s backend", BackendBigQuery)
		}
	default:
		return fmt.Errorf("unknown ledger backend %q (must be %q or %q)", c.Ledger.Backend, BackendCSV, BackendBigQuery)
	}

	if c.Reimbursement.Category == "" {
		return fmt.Errorf("reimbursement.category must not be empty")
	}
	if _, err := c.CutoverDate(); err != nil {
		return err
	}
	if c.Reimbursement.ExpenseLimit < 1 {
		return fmt.Errorf("reimbursement.expense_limit must be positive, got: %d", c.Reimbursement.ExpenseLimit)
	}
	return nil
}

// CutoverDate returns the date before which credits are never offered as
// reimbursement candidates.
func (c *Config) CutoverDate() (civil.Date, error) {
	d, err := civil.ParseDate(c.Reimbursement.CutoverDate)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid reimbursement.cutover_date %q: %w", c.Reimbursement.CutoverDate, err)
	}
	return d, nil
}

// Resolve returns p unchanged if absolute, otherwise joined onto Data.Directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Data.Directory == "" {
		return p
	}
	return filepath.Join(c.Data.Directory, p)
}

// AccountsPath returns the resolved account registry file.
func (c *Config) AccountsPath() string { return c.Resolve(c.Data.AccountsFile) }

// CategoriesPath returns the resolved category rule file.
func (c *Config) CategoriesPath() string { return c.Resolve(c.Data.CategoriesFile) }

// LedgerDir returns the resolved CSV ledger directory.
func (c *Config) LedgerDir() string { return c.Resolve(c.Ledger.CSVDirectory) }

// DataDir returns the project root holding the registry files, the inbox
// and the activity log.
func (c *Config) DataDir() string {
	if c.Data.Directory == "" {
		return "."
	}
	return c.Data.Directory
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
