// Package app wires the finoob services from a resolved configuration.
package app

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"github.com/finoob/finoob/internal/accounts"
	"github.com/finoob/finoob/internal/auditlog"
	"github.com/finoob/finoob/internal/categorize"
	"github.com/finoob/finoob/internal/config"
	"github.com/finoob/finoob/internal/importer"
	"github.com/finoob/finoob/internal/ingest"
	"github.com/finoob/finoob/internal/ledger"
	"github.com/finoob/finoob/internal/ledger/bqstore"
	"github.com/finoob/finoob/internal/ledger/csvstore"
	"github.com/finoob/finoob/internal/logging"
	"github.com/finoob/finoob/internal/reimburse"
	"github.com/finoob/finoob/internal/rules"
)

// App holds every dependency a command needs. Build it with New and release
// it with Close.
type App struct {
	Config     *config.Config
	Logger     logging.Logger
	Accounts   *accounts.Registry
	Rules      *rules.Store
	Ledger     ledger.Store
	Adapters   *importer.Registry
	Ingest     *ingest.Service
	Categorize *categorize.Service
	Linker     *reimburse.Linker
}

// New creates the logger first, then the registries, the ledger backend and
// the services on top of them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	logger := logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
	return NewWithLogger(ctx, cfg, logger)
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	cutover, err := cfg.CutoverDate()
	if err != nil {
		return nil, err
	}

	store, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	accts := accounts.NewRegistry(cfg.AccountsPath())
	ruleStore := rules.NewStore(cfg.CategoriesPath())
	adapters := importer.DefaultRegistry()

	a := &App{
		Config:     cfg,
		Logger:     logger,
		Accounts:   accts,
		Rules:      ruleStore,
		Ledger:     store,
		Adapters:   adapters,
		Ingest:     ingest.NewService(accts, ruleStore, store, adapters, cfg.Categorization.CaseSensitive, logger),
		Categorize: categorize.NewService(store, logger),
		Linker: reimburse.NewLinker(store, reimburse.Options{
			Category:     cfg.Reimbursement.Category,
			Cutover:      cutover,
			ExpenseLimit: cfg.Reimbursement.ExpenseLimit,
		}, logger),
	}

	logger.Debug("App initialized",
		logging.F(logging.FieldBackend, cfg.Ledger.Backend),
		logging.F("banks", adapters.Banks()))
	return a, nil
}

func openLedger(ctx context.Context, cfg *config.Config, logger logging.Logger) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case config.BackendBigQuery:
		store, err := bqstore.New(ctx, bqstore.Config{
			Project:           cfg.BigQuery.Project,
			Dataset:           cfg.BigQuery.Dataset,
			Table:             cfg.BigQuery.Table,
			Location:          cfg.BigQuery.Location,
			CredentialsFile:   cfg.Resolve(cfg.BigQuery.CredentialsFile),
			NetWorthProcedure: cfg.BigQuery.NetWorthProcedure,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("opening bigquery ledger: %w", err)
		}
		return store, nil
	case config.BackendCSV:
		store, err := csvstore.Open(cfg.LedgerDir())
		if err != nil {
			return nil, fmt.Errorf("opening csv ledger: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// Root is the project directory holding the inbox and the activity log.
func (a *App) Root() string { return a.Config.DataDir() }

// SourceOptions returns the client options for reading gs:// exports.
func (a *App) SourceOptions() []option.ClientOption {
	if a.Config.BigQuery.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(a.Config.Resolve(a.Config.BigQuery.CredentialsFile))}
}

// Audit appends entries to the activity log. A failure is logged, not returned:
// the operation being audited has already completed.
func (a *App) Audit(entries ...auditlog.Entry) {
	if err := auditlog.Append(a.Root(), entries); err != nil {
		a.Logger.WithError(err).Warn("Failed to write activity log")
	}
}

// Close releases the ledger backend.
func (a *App) Close() error {
	if a.Ledger == nil {
		return nil
	}
	return a.Ledger.Close()
}
