// Package service orchestrates the import pipeline: parse a statement
// file, process the transactions into expenses, and commit them in atomic
// batches with rollback on failure.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/casaledger/casaledger/internal/docstore"
	"github.com/casaledger/casaledger/internal/domain/categorization"
	"github.com/casaledger/casaledger/internal/domain/duplicates"
	"github.com/casaledger/casaledger/internal/domain/expense"
	"github.com/casaledger/casaledger/internal/domain/import/parser"
	"github.com/casaledger/casaledger/internal/domain/import/validator"
	"github.com/casaledger/casaledger/pkg/metrics"
)

const (
	// DefaultMaxTransactions caps one import run. Oversized files are
	// rejected outright rather than silently truncated.
	DefaultMaxTransactions = 1000

	integritySampleSize = 5
)

var (
	ErrTooManyTransactions = errors.New("import exceeds the maximum transaction count")

	// ErrRollbackFailed means a batch failed AND the compensating deletes
	// also failed: the store holds a partial session that needs manual
	// reconciliation. The wrapping error carries the session id.
	ErrRollbackFailed = errors.New("rollback failed; manual intervention required")
)

// ProcessConfig tunes one run of ProcessTransactions.
type ProcessConfig struct {
	MaxTransactions int // 0 means DefaultMaxTransactions

	// Pre-filters; zero values disable each one.
	FromDate            time.Time
	ToDate              time.Time
	MinAmount           decimal.Decimal
	MaxAmount           decimal.Decimal
	ExcludeCredits      bool
	ExcludeDescriptions []string // case-insensitive substrings

	CheckDuplicates bool
	History         []categorization.HistoricalTransaction

	Mapper expense.MapperConfig
}

// ProcessResult carries everything the caller needs for a review screen.
type ProcessResult struct {
	Expenses         []expense.Expense
	Suggestions      []categorization.Suggestion
	DuplicateResults []duplicates.Result
	Invalid          []validator.InvalidTransaction
	Summary          ProcessSummary
}

type ProcessSummary struct {
	Input             int
	Filtered          int
	InvalidCount      int
	SkippedDuplicates int
	Mapped            int
}

// CommitOptions tunes the commit phase.
type CommitOptions struct {
	RollbackOnFailure bool
	OnProgress        func(Progress)
}

// ImportResult is the terminal outcome of a commit.
type ImportResult struct {
	Success       bool
	ImportedCount int
	ImportedIDs   []string
	Errors        []string
	RolledBack    bool
	Summary       string
}

// Service wires the pipeline stages together.
type Service struct {
	router     *parser.Router
	validator  *validator.Validator
	categories *categorization.Service
	detector   *duplicates.Detector
	repo       *expense.Repository
	store      docstore.Store
	registry   *Registry
	metrics    *metrics.Metrics
	limiter    *rate.Limiter
	retry      retryPolicy
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

// Config assembles a Service from its collaborators.
type Config struct {
	Router           *parser.Router
	Validator        *validator.Validator
	Categories       *categorization.Service
	Detector         *duplicates.Detector
	Repository       *expense.Repository
	Store            docstore.Store
	Registry         *Registry
	Metrics          *metrics.Metrics
	BatchesPerSecond float64 // 0 disables rate limiting
	Logger           *slog.Logger

	// Retry policy for transient failures; zero values take defaults.
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RetryMaxAttempts uint64
}

func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.BatchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.BatchesPerSecond), 1)
	}
	return &Service{
		router:     cfg.Router,
		validator:  cfg.Validator,
		categories: cfg.Categories,
		detector:   cfg.Detector,
		repo:       cfg.Repository,
		store:      cfg.Store,
		registry:   cfg.Registry,
		metrics:    cfg.Metrics,
		limiter:    limiter,
		retry: retryPolicy{
			baseDelay:   cfg.RetryBaseDelay,
			maxDelay:    cfg.RetryMaxDelay,
			maxAttempts: cfg.RetryMaxAttempts,
		}.withDefaults(),
		tracer: otel.Tracer("casaledger/import"),
		logger: cfg.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Registry() *Registry { return s.registry }

// Parse turns a statement file into transactions. Failures carry the file
// name; transient I/O errors are retried.
func (s *Service) Parse(ctx context.Context, filename string, data []byte) (*parser.ParseResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.parse",
		trace.WithAttributes(attribute.String("file.name", filename)))
	defer span.End()

	var result *parser.ParseResult
	err := s.retry.run(ctx, func(context.Context) error {
		var parseErr error
		result, parseErr = s.router.ParseFile(filename, data)
		return parseErr
	})
	if err != nil {
		// The router already wraps with the file name.
		return nil, err
	}

	for _, warning := range result.Metadata.Warnings {
		s.logger.Warn("parse warning",
			slog.String("file", filename),
			slog.String("warning", warning),
		)
	}
	if s.metrics != nil {
		fileType := string(result.Metadata.FileType)
		s.metrics.RowsParsed.WithLabelValues(fileType).Add(float64(len(result.Transactions)))
		s.metrics.RowErrors.WithLabelValues(fileType).Add(float64(len(result.Errors)))
	}
	return result, nil
}

// ProcessTransactions filters, validates, categorizes, deduplicates and
// maps transactions into expenses ready for commit.
func (s *Service) ProcessTransactions(ctx context.Context, txs []parser.ParsedTransaction, cfg ProcessConfig) (*ProcessResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.process",
		trace.WithAttributes(attribute.Int("transactions", len(txs))))
	defer span.End()

	maxTx := cfg.MaxTransactions
	if maxTx <= 0 {
		maxTx = DefaultMaxTransactions
	}
	if len(txs) > maxTx {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyTransactions, len(txs), maxTx)
	}

	result := &ProcessResult{Summary: ProcessSummary{Input: len(txs)}}

	filtered := s.applyFilters(txs, cfg)
	result.Summary.Filtered = len(txs) - len(filtered)

	validated := s.validator.Validate(filtered)
	result.Invalid = validated.Invalid
	result.Summary.InvalidCount = len(validated.Invalid)

	descriptions := make([]string, len(validated.Valid))
	for i, tx := range validated.Valid {
		descriptions[i] = tx.Description
	}
	suggestions := s.categories.SuggestBatch(ctx, descriptions, cfg.History)

	var dupResults []duplicates.Result
	skipDuplicate := make([]bool, len(validated.Valid))
	if cfg.CheckDuplicates {
		existing, err := s.loadExistingRecords(ctx, cfg.Mapper.CoupleID)
		if err != nil {
			return nil, err
		}
		dupResults = s.detector.DetectForTransactions(validated.Valid, existing, s.now())
		for i, dr := range dupResults {
			if s.detector.ShouldAutoSkip(dr) {
				skipDuplicate[i] = true
				result.Summary.SkippedDuplicates++
			}
			if dr.HasDuplicates && s.metrics != nil {
				s.metrics.DuplicatesDetected.Inc()
			}
		}
	}
	result.DuplicateResults = dupResults

	for i, tx := range validated.Valid {
		if skipDuplicate[i] {
			continue
		}
		suggestion := suggestions[i]
		e, err := expense.MapTransaction(tx, &suggestion, "", cfg.Mapper)
		if err != nil {
			result.Invalid = append(result.Invalid, validator.InvalidTransaction{
				Transaction: tx,
				Reasons:     []string{err.Error()},
			})
			continue
		}
		if reasons := expenseProblems(e); len(reasons) > 0 {
			result.Invalid = append(result.Invalid, validator.InvalidTransaction{
				Transaction: tx,
				Reasons:     reasons,
			})
			continue
		}
		result.Expenses = append(result.Expenses, e)
		result.Suggestions = append(result.Suggestions, suggestion)
	}
	result.Summary.Mapped = len(result.Expenses)
	return result, nil
}

// Commit writes expenses in fixed-size atomic batches. Cancellation and
// batch failures both resolve through the rollback path when enabled.
func (s *Service) Commit(ctx context.Context, session *Session, expenses []expense.Expense, opts CommitOptions) (*ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.commit",
		trace.WithAttributes(
			attribute.String("session.id", session.ID),
			attribute.Int("expenses", len(expenses)),
		))
	defer span.End()

	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ImportDuration.Observe(time.Since(start).Seconds())
		}
	}()

	for i := range expenses {
		if expenses[i].Import == nil {
			expenses[i].Import = &expense.ImportMetadata{ImportedAt: s.now()}
		}
		expenses[i].Import.SessionID = session.ID
	}

	batches := docstore.Chunk(expenses, s.store.MaxBatchOps())
	result := &ImportResult{}

	report := func(phase string, current, total int) {
		session.ReportProgress(phase, current, total)
		if opts.OnProgress != nil {
			opts.OnProgress(session.Progress())
		}
	}

	for i, batch := range batches {
		// Cancellation is cooperative: checked only at batch boundaries,
		// never mid-write.
		if err := ctx.Err(); err != nil {
			return s.failCommit(ctx, session, result, opts, fmt.Errorf("import cancelled: %w", err))
		}

		for j := range batch {
			batch[j].Import.BatchIndex = i
		}
		ops, err := expense.ToWriteOps(batch)
		if err != nil {
			return s.failCommit(ctx, session, result, opts, err)
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return s.failCommit(ctx, session, result, opts, fmt.Errorf("import cancelled: %w", err))
		}
		err = s.retry.run(ctx, func(ctx context.Context) error {
			return s.store.BatchWrite(ctx, ops)
		})
		if err != nil {
			return s.failCommit(ctx, session, result, opts, fmt.Errorf("batch %d of %d: %w", i+1, len(batches), err))
		}

		result.ImportedCount += len(batch)
		for _, e := range batch {
			result.ImportedIDs = append(result.ImportedIDs, e.ID)
		}
		if s.metrics != nil {
			s.metrics.BatchesCommitted.Inc()
			s.metrics.ExpensesImported.Add(float64(len(batch)))
		}
		report("importing", result.ImportedCount, len(expenses))
	}

	s.verifyCommitted(ctx, expenses, result.ImportedIDs)

	result.Success = true
	result.Summary = fmt.Sprintf("imported %d expenses in %d batches", result.ImportedCount, len(batches))
	report("importing", len(expenses), len(expenses))
	return result, nil
}

// RunImport drives a full session through the state machine. The returned
// session is registered so background jobs can observe it.
func (s *Service) RunImport(ctx context.Context, userID, filename string, data []byte, procCfg ProcessConfig, commitOpts CommitOptions) (*Session, *ImportResult, error) {
	session := NewSession(userID)
	s.registry.Add(session)

	fail := func(err error) (*Session, *ImportResult, error) {
		s.endSession(session, err)
		return session, nil, err
	}

	if err := session.Transition(StateParsing); err != nil {
		return fail(err)
	}
	parsed, err := s.Parse(ctx, filename, data)
	if err != nil {
		return fail(err)
	}

	if err := session.Transition(StateProcessing); err != nil {
		return fail(err)
	}
	procCfg.Mapper.SessionID = session.ID
	processed, err := s.ProcessTransactions(ctx, parsed.Transactions, procCfg)
	if err != nil {
		return fail(err)
	}

	if err := session.Transition(StateImporting); err != nil {
		return fail(err)
	}
	result, err := s.Commit(ctx, session, processed.Expenses, commitOpts)
	if err != nil {
		// Commit already moved the session to a terminal state.
		return session, result, err
	}

	if err := session.Complete(result); err != nil {
		return fail(err)
	}
	return session, result, nil
}

// failCommit runs the rollback policy for a failed or cancelled commit and
// moves the session to its terminal state. The progress sink always gets
// one final event after the terminal transition clamps percentage to 100.
func (s *Service) failCommit(ctx context.Context, session *Session, partial *ImportResult, opts CommitOptions, cause error) (*ImportResult, error) {
	partial.Errors = append(partial.Errors, cause.Error())
	s.logger.Error("commit failed",
		slog.String("session_id", session.ID),
		slog.Int("committed_so_far", partial.ImportedCount),
		slog.Any("error", cause),
	)

	notify := func() {
		if opts.OnProgress != nil {
			opts.OnProgress(session.Progress())
		}
	}

	if !opts.RollbackOnFailure {
		// Partial success reported honestly.
		partial.Success = false
		partial.Summary = fmt.Sprintf("halted after %d expenses; rollback disabled", partial.ImportedCount)
		s.endSession(session, cause)
		notify()
		return partial, cause
	}

	if err := s.rollbackSession(ctx, session.ID, partial.ImportedIDs); err != nil {
		// A partially committed store is a failure even when the trigger
		// was a cancellation.
		critical := fmt.Errorf("session %s: %w: %s", session.ID, ErrRollbackFailed, err.Error())
		partial.Errors = append(partial.Errors, critical.Error())
		partial.Summary = "store left partially committed"
		_ = session.Fail(critical)
		notify()
		return partial, critical
	}

	if s.metrics != nil {
		s.metrics.Rollbacks.Inc()
	}
	partial.RolledBack = true
	partial.ImportedCount = 0
	partial.ImportedIDs = nil
	partial.Summary = "rolled back after failure"
	s.endSession(session, cause)
	notify()
	return partial, cause
}

// endSession picks the terminal state: a context cancellation lands in
// cancelled, everything else in failed.
func (s *Service) endSession(session *Session, cause error) {
	if errors.Is(cause, context.Canceled) {
		if session.Cancel() == nil {
			return
		}
	}
	if err := session.Fail(cause); err != nil {
		s.logger.Error("session transition failed", slog.Any("error", err))
	}
}

// rollbackSession deletes every record committed so far, chunked to the
// store's per-call limit. Runs against a fresh context so a cancelled
// import can still clean up.
func (s *Service) rollbackSession(ctx context.Context, sessionID string, ids []string) error {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, chunk := range docstore.Chunk(ids, s.store.MaxBatchOps()) {
		err := s.retry.run(cleanupCtx, func(ctx context.Context) error {
			return s.store.BatchDelete(ctx, expense.Collection, chunk)
		})
		if err != nil {
			return fmt.Errorf("deleting %d records for session %s: %w", len(chunk), sessionID, err)
		}
	}
	s.logger.Info("session rolled back",
		slog.String("session_id", sessionID),
		slog.Int("records_deleted", len(ids)),
	)
	return nil
}

// RollbackAbandoned force-fails a stale session and deletes whatever it
// committed. The stale-session cron job calls this.
func (s *Service) RollbackAbandoned(ctx context.Context, session *Session) error {
	ids, err := s.repo.SessionExpenseIDs(ctx, session.ID)
	if err != nil {
		return err
	}
	if err := s.rollbackSession(ctx, session.ID, ids); err != nil {
		return fmt.Errorf("session %s: %w: %s", session.ID, ErrRollbackFailed, err.Error())
	}
	_ = session.Fail(errors.New("session abandoned"))
	s.registry.Remove(session.ID)
	return nil
}

// verifyCommitted samples committed ids and re-reads them. Mismatches are
// a detection aid, logged but never acted on.
func (s *Service) verifyCommitted(ctx context.Context, expenses []expense.Expense, ids []string) {
	if len(ids) == 0 || s.repo == nil {
		return
	}
	byID := make(map[string]string, len(expenses))
	for _, e := range expenses {
		byID[e.ID] = e.CoupleID
	}

	step := len(ids) / integritySampleSize
	if step == 0 {
		step = 1
	}
	for i := 0; i < len(ids); i += step {
		id := ids[i]
		stored, err := s.repo.Get(ctx, id)
		if err != nil {
			s.logger.Warn("integrity check: committed expense unreadable",
				slog.String("id", id), slog.Any("error", err))
			continue
		}
		if stored.CoupleID != byID[id] {
			s.logger.Warn("integrity check: couple mismatch",
				slog.String("id", id),
				slog.String("expected", byID[id]),
				slog.String("actual", stored.CoupleID),
			)
		}
	}
}

func (s *Service) applyFilters(txs []parser.ParsedTransaction, cfg ProcessConfig) []parser.ParsedTransaction {
	out := make([]parser.ParsedTransaction, 0, len(txs))
	for _, tx := range txs {
		if !cfg.FromDate.IsZero() && tx.Date.Before(cfg.FromDate) {
			continue
		}
		if !cfg.ToDate.IsZero() && tx.Date.After(cfg.ToDate) {
			continue
		}
		if !cfg.MinAmount.IsZero() && tx.Amount.LessThan(cfg.MinAmount) {
			continue
		}
		if !cfg.MaxAmount.IsZero() && tx.Amount.GreaterThan(cfg.MaxAmount) {
			continue
		}
		if cfg.ExcludeCredits && tx.Type == parser.TypeCredit {
			continue
		}
		if matchesExclusion(tx.Description, cfg.ExcludeDescriptions) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func matchesExclusion(description string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	lower := strings.ToLower(description)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// loadExistingRecords reads the duplicate-candidate window. The detector
// re-applies its own lookback cutoff; this query just bounds the read.
func (s *Service) loadExistingRecords(ctx context.Context, coupleID string) ([]duplicates.ExistingRecord, error) {
	since := s.now().AddDate(0, 0, -duplicates.DefaultOptions().LookbackDays)
	stored, err := s.repo.Recent(ctx, coupleID, since)
	if err != nil {
		return nil, err
	}

	records := make([]duplicates.ExistingRecord, len(stored))
	for i, e := range stored {
		records[i] = duplicates.ExistingRecord{
			ID:          e.ID,
			Date:        e.Date,
			Amount:      e.Amount,
			Description: e.Description,
		}
	}
	return records, nil
}

// expenseProblems is the expense-level validation gate applied after
// mapping.
func expenseProblems(e expense.Expense) []string {
	var reasons []string
	if e.CoupleID == "" {
		reasons = append(reasons, "missing couple id")
	}
	if e.Description == "" {
		reasons = append(reasons, "missing description")
	}
	if !e.Amount.IsPositive() {
		reasons = append(reasons, "amount must be positive")
	}
	if e.Date.IsZero() {
		reasons = append(reasons, "missing date")
	}
	sum := e.Split.User1Amount.Add(e.Split.User2Amount)
	if sum.Sub(e.Amount).Abs().GreaterThan(decimal.RequireFromString("0.01")) {
		reasons = append(reasons, "split amounts do not reconstruct the total")
	}
	return reasons
}
