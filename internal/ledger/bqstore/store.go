// Package bqstore keeps the ledger in a BigQuery table. Appends go through
// load jobs, category edits through a MERGE, and reimbursement links through
// a transactional script.
package bqstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/finoob/finoob/internal/ledger"
	"github.com/finoob/finoob/internal/logging"
	"github.com/finoob/finoob/internal/model"
)

// Config locates the ledger table and the net-worth procedure.
type Config struct {
	Project           string
	Dataset           string
	Table             string
	Location          string
	CredentialsFile   string
	NetWorthProcedure string
}

// Store is a ledger.Store backed by BigQuery.
//
// Appends check numbering against a MAX query before the load job runs, so
// two processes importing the same account at once can still collide. The
// ledger assumes a single writer per account.
type Store struct {
	client    *bigquery.Client
	ref       tableRef
	procedure string
	logger    logging.Logger
}

var _ ledger.Store = (*Store)(nil)

// New creates a BigQuery client for cfg.Project.
func New(ctx context.Context, cfg Config, logger logging.Logger) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	return &Store{
		client:    client,
		ref:       tableRef{Project: cfg.Project, Dataset: cfg.Dataset, Table: cfg.Table},
		procedure: cfg.NetWorthProcedure,
		logger:    logger.WithField(logging.FieldBackend, "bigquery"),
	}, nil
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func jobID(op string) string {
	return fmt.Sprintf("finoob_%s_%s", op, uuid.NewString())
}

func (s *Store) query(sql string, params ...bigquery.QueryParameter) *bigquery.Query {
	q := s.client.Query(s.ref.render(sql))
	q.Parameters = params
	return q
}

func (s *Store) readTransactions(ctx context.Context, op string, q *bigquery.Query) ([]model.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var txns []model.Transaction
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		t, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s: decoding row: %w", op, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// run executes a statement as a job and waits for it.
func (s *Store) run(ctx context.Context, op string, q *bigquery.Query) (*bigquery.JobStatus, error) {
	q.JobID = jobID(op)
	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: starting job: %w", op, err)
	}
	s.logger.Debug("BigQuery job started",
		logging.F(logging.FieldJobID, job.ID()),
		logging.F(logging.FieldOperation, op))

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: waiting for job %s: %w", op, job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("%s: job %s: %w", op, job.ID(), err)
	}
	return status, nil
}

func (s *Store) LastTransaction(ctx context.Context, accountID string) (*model.Transaction, error) {
	q := s.query(lastTransactionSQL, bigquery.QueryParameter{Name: "account_id", Value: accountID})
	txns, err := s.readTransactions(ctx, "LastTransaction", q)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, nil
	}
	return &txns[0], nil
}

func (s *Store) MaxTransactionNumber(ctx context.Context, accountID string) (int64, error) {
	q := s.query(maxNumberSQL, bigquery.QueryParameter{Name: "account_id", Value: accountID})
	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("MaxTransactionNumber: query read: %w", err)
	}

	var row map[string]bigquery.Value
	err = it.Next(&row)
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("MaxTransactionNumber: iter next: %w", err)
	}
	n, _ := row["max_num"].(int64)
	return n, nil
}

func (s *Store) Get(ctx context.Context, key model.Key) (model.Transaction, error) {
	q := s.query(getSQL,
		bigquery.QueryParameter{Name: "account_id", Value: key.AccountID},
		bigquery.QueryParameter{Name: "transaction_number", Value: key.Number},
	)
	txns, err := s.readTransactions(ctx, "Get", q)
	if err != nil {
		return model.Transaction{}, err
	}
	if len(txns) == 0 {
		return model.Transaction{}, fmt.Errorf("%s: %w", key, ledger.ErrNotFound)
	}
	return txns[0], nil
}

func (s *Store) Uncategorized(ctx context.Context, accountID string) ([]model.Transaction, error) {
	q := s.query(uncategorizedSQL, bigquery.QueryParameter{Name: "account_id", Value: accountID})
	return s.readTransactions(ctx, "Uncategorized", q)
}

func (s *Store) ReimbursementCandidates(ctx context.Context, accountID, category string, after civil.Date) ([]model.Transaction, error) {
	q := s.query(candidatesSQL,
		bigquery.QueryParameter{Name: "account_id", Value: accountID},
		bigquery.QueryParameter{Name: "category", Value: category},
		bigquery.QueryParameter{Name: "cutover", Value: after},
	)
	return s.readTransactions(ctx, "ReimbursementCandidates", q)
}

func (s *Store) ExpenseCandidates(ctx context.Context, accountID string, limit int) ([]model.Transaction, error) {
	q := s.query(expensesSQL,
		bigquery.QueryParameter{Name: "account_id", Value: accountID},
		bigquery.QueryParameter{Name: "limit", Value: int64(limit)},
	)
	return s.readTransactions(ctx, "ExpenseCandidates", q)
}

// Insert validates the batch against the table's current maximum and appends
// it with a single load job, which either lands every row or none.
func (s *Store) Insert(ctx context.Context, accountID string, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	current, err := s.MaxTransactionNumber(ctx, accountID)
	if err != nil {
		return err
	}
	if errs := ledger.ValidateInsert(accountID, current, txns); len(errs) > 0 {
		return errs
	}

	data, err := encodeRows(txns)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	src := bigquery.NewReaderSource(bytes.NewReader(data))
	src.SourceFormat = bigquery.JSON

	loader := s.client.DatasetInProject(s.ref.Project, s.ref.Dataset).Table(s.ref.Table).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateNever
	loader.JobID = jobID("insert")

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("Insert: starting load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("Insert: waiting for load job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("Insert: load job %s: %w", job.ID(), err)
	}

	s.logger.Info("Appended transactions",
		logging.F(logging.FieldAccountID, accountID),
		logging.F(logging.FieldCount, len(txns)),
		logging.F(logging.FieldJobID, job.ID()))
	return nil
}

// categoryUpdate is one element of the @updates ARRAY<STRUCT> parameter.
type categoryUpdate struct {
	AccountID         string `bigquery:"account_id"`
	TransactionNumber int64  `bigquery:"transaction_number"`
	Category          string `bigquery:"category"`
	Label             string `bigquery:"label"`
}

func (s *Store) UpdateCategories(ctx context.Context, updates []model.CategoryUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	params := make([]categoryUpdate, len(updates))
	for i, u := range updates {
		params[i] = categoryUpdate{
			AccountID:         u.AccountID,
			TransactionNumber: u.TransactionNumber,
			Category:          u.Category,
			Label:             u.Label,
		}
	}

	q := s.query(mergeCategoriesSQL, bigquery.QueryParameter{Name: "updates", Value: params})
	status, err := s.run(ctx, "categorize", q)
	if err != nil {
		return 0, fmt.Errorf("UpdateCategories: %w", err)
	}
	return affectedRows(status), nil
}

func affectedRows(status *bigquery.JobStatus) int {
	if status == nil || status.Statistics == nil {
		return 0
	}
	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return int(qs.NumDMLAffectedRows)
	}
	return 0
}

// Link checks the rows as they stand, then runs the guarded two-row update.
// A guard failure inside the script surfaces as ErrLinkConflict.
func (s *Store) Link(ctx context.Context, req ledger.LinkRequest) error {
	credit, err := s.Get(ctx, req.Credit)
	if err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	debit, err := s.Get(ctx, req.Debit)
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if !credit.Credit.Equal(req.Amount) {
		return fmt.Errorf("credit %s is now %s, not %s: %w",
			req.Credit, credit.Credit.StringFixed(2), req.Amount.StringFixed(2), ledger.ErrLinkConflict)
	}
	if err := ledger.ValidateLink(credit, debit); err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrLinkConflict, err)
	}

	linkedAt := req.LinkedAt
	if linkedAt.IsZero() {
		linkedAt = time.Now()
	}

	q := s.query(linkSQL, linkParams(req, linkedAt)...)
	if _, err := s.run(ctx, "link", q); err != nil {
		if isConflict(err) {
			return fmt.Errorf("%w: %w", ledger.ErrLinkConflict, err)
		}
		return fmt.Errorf("Link: %w", err)
	}

	s.logger.Info("Linked reimbursement",
		logging.F(logging.FieldTransactionID, req.Debit.String()),
		logging.F(logging.FieldAmount, req.Amount.String()))
	return nil
}

func linkParams(req ledger.LinkRequest, linkedAt time.Time) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "credit_account", Value: req.Credit.AccountID},
		{Name: "credit_number", Value: req.Credit.Number},
		{Name: "credit_id", Value: req.Credit.String()},
		{Name: "debit_account", Value: req.Debit.AccountID},
		{Name: "debit_number", Value: req.Debit.Number},
		{Name: "debit_id", Value: req.Debit.String()},
		{Name: "amount", Value: req.Amount.Rat()},
		{Name: "linked_at", Value: linkedAt.UTC()},
	}
}

func isConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), conflictMarker)
}

// RefreshNetWorth calls the configured stored procedure. It is a no-op when
// no procedure is configured.
func (s *Store) RefreshNetWorth(ctx context.Context) error {
	if s.procedure == "" {
		return nil
	}
	q := s.client.Query(s.ref.renderCall(s.procedure))
	if _, err := s.run(ctx, "refresh_net_worth", q); err != nil {
		return fmt.Errorf("RefreshNetWorth: %w", err)
	}
	return nil
}
