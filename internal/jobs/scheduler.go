package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/tabula/internal/llmcall"
	"github.com/jackzampolin/tabula/internal/table"
)

// ErrInvalidRequest is returned when a RunRequest fails validation.
var ErrInvalidRequest = errors.New("invalid run request")

// RunRequest describes one batch run.
type RunRequest struct {
	InputPath  string
	OutputPath string

	// Columns are merged, in this order, into each row's text.
	Columns []string

	Delimiter      string
	PromptTemplate string

	// OutputColumn defaults to DefaultOutputColumn.
	OutputColumn string

	// Concurrency is clamped by ClampConcurrency.
	Concurrency int

	// MaxRetries is the per-row attempt budget; zero means DefaultMaxRetries.
	MaxRetries int
}

// Validate checks the request and fills in defaults.
func (r *RunRequest) Validate() error {
	var problems []string
	if r.Delimiter == "" {
		problems = append(problems, "delimiter must not be empty")
	}
	if len(r.Columns) == 0 {
		problems = append(problems, "at least one column must be selected")
	}
	if strings.TrimSpace(r.PromptTemplate) == "" {
		problems = append(problems, "prompt must not be empty")
	}
	if r.MaxRetries < 0 {
		problems = append(problems, "max retries must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}

	if r.OutputColumn == "" {
		r.OutputColumn = DefaultOutputColumn
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = DefaultMaxRetries
	}
	r.Concurrency = ClampConcurrency(r.Concurrency)
	return nil
}

// Callbacks connect a run to its presentation layer. All of them are
// invoked from the scheduler's coordinating goroutine, never concurrently.
type Callbacks struct {
	// OnProgress is called once per resolved row with a non-decreasing
	// completed count.
	OnProgress func(completed, total int)

	// OnSnapshot receives the same updates as OnProgress with elapsed time,
	// failures and ETA, plus one initial snapshot before any row resolves.
	OnSnapshot func(Progress)

	// OnLog receives lifecycle lines and per-row failures.
	OnLog func(message string)

	// IsCancelled is polled before each row is submitted and before each
	// outcome is drained. Cancelling the run's context has the same effect.
	IsCancelled func() bool
}

// Result is the terminal report of a run.
type Result struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	Status     Status        `json:"status" yaml:"status"`
	Success    bool          `json:"success" yaml:"success"`
	Summary    string        `json:"summary" yaml:"summary"`
	InputPath  string        `json:"input_path,omitempty" yaml:"input_path,omitempty"`
	OutputPath string        `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	Total      int           `json:"total" yaml:"total"`
	Processed  int           `json:"processed" yaml:"processed"`
	Failed     int           `json:"failed" yaml:"failed"`
	Failures   []RowFailure  `json:"failures,omitempty" yaml:"failures,omitempty"`
	CacheHits  int           `json:"cache_hits" yaml:"cache_hits"`
	Dispatched int           `json:"dispatched" yaml:"dispatched"`
	UniqueKeys int           `json:"unique_keys" yaml:"unique_keys"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Invoker Invoker
	Loader  table.Loader
	Saver   table.Saver
	Logger  *slog.Logger

	// Now overrides the clock used for elapsed time.
	Now func() time.Time
}

// Scheduler drives a bounded worker pool over every row of a table. A
// single coordinating goroutine owns the cache, the run state and every
// callback; workers only execute row tasks and hand outcomes back.
type Scheduler struct {
	invoker Invoker
	loader  table.Loader
	saver   table.Saver
	logger  *slog.Logger
	now     func() time.Time
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		invoker: cfg.Invoker,
		loader:  cfg.Loader,
		saver:   cfg.Saver,
		logger:  logger,
		now:     now,
	}
}

// Run loads req.InputPath, processes every row and saves the table to
// req.OutputPath. The returned Result is never nil. The error is non-nil
// for an invalid request, a missing endpoint, a *table.LoadError (nothing
// was processed) or a *table.SaveError (processing finished but the output
// was not written). Per-row failures are never errors.
func (s *Scheduler) Run(ctx context.Context, req RunRequest, cb Callbacks) (*Result, error) {
	started := s.now()
	res := &Result{
		RunID:      uuid.New().String(),
		Status:     StatusIdle,
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
	}
	logger := s.logger.With("run_id", res.RunID)
	fail := func(err error) (*Result, error) {
		transition(logger, res, StatusFailed)
		res.Summary = err.Error()
		res.Elapsed = s.now().Sub(started)
		logger.Error("run failed", "error", err)
		return res, err
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}
	if err := s.checkConfigured(); err != nil {
		return fail(err)
	}
	if s.loader == nil {
		return fail(&table.LoadError{Path: req.InputPath, Err: errors.New("no loader configured")})
	}

	tbl, err := s.loader.Load(req.InputPath)
	if err != nil {
		var le *table.LoadError
		if !errors.As(err, &le) {
			err = &table.LoadError{Path: req.InputPath, Err: err}
		}
		emitLog(cb, logger, fmt.Sprintf("failed to read input: %v", err))
		return fail(err)
	}

	transition(logger, res, StatusRunning)
	r := s.process(ctx, tbl, req, cb, logger, started)
	r.fill(res)

	mat := Materializer{Column: req.OutputColumn, Saver: s.saver, Logger: logger}
	if err := mat.Apply(tbl, r.outcomes); err != nil {
		return fail(err)
	}
	if err := mat.Save(tbl, req.OutputPath); err != nil {
		r.log(fmt.Sprintf("failed to save output: %v", err))
		transition(logger, res, StatusFailed)
		res.Success = false
		res.Elapsed = s.now().Sub(started)
		res.Summary = fmt.Sprintf("processed %d/%d rows but saving failed: %v", res.Processed, res.Total, err)
		return res, err
	}
	r.log(fmt.Sprintf("output saved to %s", req.OutputPath))

	r.finish(ctx, res)
	res.Elapsed = s.now().Sub(started)
	logger.Info("run finished", "status", res.Status, "processed", res.Processed, "failed", res.Failed, "elapsed", res.Elapsed)
	return res, nil
}

// Process runs every row of an already loaded table and writes the
// outcomes into its output column. Nothing is saved.
func (s *Scheduler) Process(ctx context.Context, tbl *table.Table, req RunRequest, cb Callbacks) (*Result, error) {
	started := s.now()
	res := &Result{RunID: uuid.New().String(), Status: StatusIdle}
	logger := s.logger.With("run_id", res.RunID)
	fail := func(err error) (*Result, error) {
		transition(logger, res, StatusFailed)
		res.Summary = err.Error()
		return res, err
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}
	if err := s.checkConfigured(); err != nil {
		return fail(err)
	}

	transition(logger, res, StatusRunning)
	r := s.process(ctx, tbl, req, cb, logger, started)
	r.fill(res)
	mat := Materializer{Column: req.OutputColumn, Logger: logger}
	if err := mat.Apply(tbl, r.outcomes); err != nil {
		return fail(err)
	}
	r.finish(ctx, res)
	res.Elapsed = s.now().Sub(started)
	return res, nil
}

// checkConfigured fails fast before any row is touched.
func (s *Scheduler) checkConfigured() error {
	if s.invoker == nil {
		return llmcall.ErrNotConfigured
	}
	if c, ok := s.invoker.(interface{ Configured() bool }); ok && !c.Configured() {
		return llmcall.ErrNotConfigured
	}
	return nil
}

// run is the coordinator-owned state of one invocation.
type run struct {
	cb     Callbacks
	logger *slog.Logger
	now    func() time.Time

	state    *RunState
	cache    *Cache
	outcomes []RowOutcome

	// pending holds, per dispatched key, the rows waiting on its outcome.
	pending map[CacheKey][]int
	keys    map[int]CacheKey

	cancelled  bool
	hits       int
	dispatched int
	received   int
}

func (s *Scheduler) process(ctx context.Context, tbl *table.Table, req RunRequest, cb Callbacks, logger *slog.Logger, started time.Time) *run {
	total := tbl.Len()
	r := &run{
		cb:      cb,
		logger:  logger,
		now:     s.now,
		state:   NewRunState(total, started),
		cache:   NewCache(),
		pending: make(map[CacheKey][]int),
		keys:    make(map[int]CacheKey),
	}

	Materializer{Column: req.OutputColumn}.Prepare(tbl)
	r.snapshot()

	if missing := tbl.MissingColumns(req.Columns); len(missing) > 0 {
		r.log(fmt.Sprintf("columns not found, treated as empty: %s", strings.Join(missing, ", ")))
	}
	r.log(fmt.Sprintf("processing %d rows with concurrency %d", total, req.Concurrency))

	pool := NewWorkerPool(WorkerPoolConfig{
		Name:      "rows",
		Logger:    logger,
		Workers:   req.Concurrency,
		QueueSize: total,
		Handler: func(ctx context.Context, task RowTask) RowOutcome {
			return task.Execute(ctx, s.invoker)
		},
	})
	// In-flight requests are never interrupted; cancellation only stops
	// the coordinator from submitting and waiting.
	pool.Start(context.WithoutCancel(ctx))

	r.enqueue(ctx, tbl, req, pool)
	r.drain(ctx, pool)

	if r.cancelled {
		pool.Stop()
		pool.Close()
		if outstanding := r.dispatched - r.received; outstanding > 0 {
			st := pool.Status()
			logger.Info("discarding outstanding rows", "count", outstanding,
				"in_flight", st.InFlight, "queued", st.QueueDepth)
		}
	} else {
		pool.Close()
		if err := pool.Wait(); err != nil {
			logger.Warn("worker pool exited with error", "error", err)
		}
		st := pool.Status()
		logger.Debug("worker pool finished", "pool", st.Name, "completed", st.Completed, "skipped", st.Skipped)
	}
	return r
}

func (r *run) enqueue(ctx context.Context, tbl *table.Table, req RunRequest, pool *WorkerPool) {
	values := make([]string, len(req.Columns))
	for i := 0; i < tbl.Len(); i++ {
		if r.checkCancelled(ctx) {
			r.log(fmt.Sprintf("cancellation requested, stopped submitting at row %d", i))
			return
		}

		for j, col := range req.Columns {
			v, _ := tbl.Value(i, col)
			values[j] = v
		}
		merged := MergeFields(values)
		key := NewCacheKey(merged, req.Delimiter, req.PromptTemplate)

		// Outcomes that are already back turn later duplicates into
		// synchronous cache hits.
		r.collect(pool)
		if cached, ok := r.cache.Get(key); ok {
			r.hits++
			r.record(cached.WithRow(i))
			continue
		}
		if waiters, ok := r.pending[key]; ok {
			r.pending[key] = append(waiters, i)
			continue
		}

		task := RowTask{
			Input: RowInput{
				RowIndex:       i,
				MergedText:     merged,
				Delimiter:      req.Delimiter,
				PromptTemplate: req.PromptTemplate,
			},
			Key:        key,
			MaxRetries: req.MaxRetries,
		}
		if err := pool.Submit(task); err != nil {
			o := failed(i, req.Delimiter, fmt.Sprintf("submit: %v", err))
			r.log(fmt.Sprintf("row %d failed: %s", i, o.ErrorReason))
			r.record(o)
			continue
		}
		r.pending[key] = nil
		r.keys[i] = key
		r.dispatched++
	}
}

// collect accepts every outcome that is ready without blocking.
func (r *run) collect(pool *WorkerPool) {
	for r.received < r.dispatched {
		select {
		case o := <-pool.Results():
			r.accept(o)
		default:
			return
		}
	}
}

func (r *run) drain(ctx context.Context, pool *WorkerPool) {
	for r.received < r.dispatched {
		if r.checkCancelled(ctx) {
			r.log("cancellation requested, no longer waiting for outstanding rows")
			return
		}

		var o RowOutcome
		select {
		case o = <-pool.Results():
		case <-ctx.Done():
			r.cancelled = true
			r.log("cancellation requested, no longer waiting for outstanding rows")
			return
		}
		r.accept(o)
	}
}

// accept caches a worker outcome and resolves its row and every row
// waiting on the same key.
func (r *run) accept(o RowOutcome) {
	r.received++
	key := r.keys[o.RowIndex]
	r.cache.Put(key, o)
	if o.IsError {
		r.log(fmt.Sprintf("row %d failed: %s", o.RowIndex, o.ErrorReason))
	}
	r.record(o)

	for _, row := range r.pending[key] {
		r.hits++
		r.record(o.WithRow(row))
	}
	delete(r.pending, key)
}

func (r *run) checkCancelled(ctx context.Context) bool {
	if r.cancelled {
		return true
	}
	if ctx.Err() != nil || (r.cb.IsCancelled != nil && r.cb.IsCancelled()) {
		r.cancelled = true
	}
	return r.cancelled
}

func (r *run) record(o RowOutcome) {
	r.outcomes = append(r.outcomes, o)
	r.state.Resolve(o)
	if r.cb.OnProgress != nil {
		r.cb.OnProgress(r.state.Completed(), r.state.Total())
	}
	r.snapshot()
}

func (r *run) snapshot() {
	if r.cb.OnSnapshot != nil {
		r.cb.OnSnapshot(r.state.Snapshot(r.now()))
	}
}

func (r *run) log(msg string) {
	emitLog(r.cb, r.logger, msg)
}

func (r *run) fill(res *Result) {
	res.Total = r.state.Total()
	res.Processed = len(r.outcomes)
	res.Failed = r.state.FailedCount()
	res.Failures = r.state.Failures()
	res.CacheHits = r.hits
	res.Dispatched = r.dispatched
	res.UniqueKeys = r.cache.Len()
}

// finish settles the terminal status. Cancellation is sticky, so a
// request that arrives after the last row still reports cancelled.
func (r *run) finish(ctx context.Context, res *Result) {
	next := StatusCompleted
	if r.checkCancelled(ctx) {
		next = StatusCancelled
	}
	transition(r.logger, res, next)
	res.Success = res.Status == StatusCompleted
	res.Summary = Summary(res.Status, res.Total, res.Processed, res.Failed)
	r.log(res.Summary)
}

// transition moves res to next. A terminal status is never left.
func transition(logger *slog.Logger, res *Result, next Status) {
	if res.Status == next || res.Status.Terminal() {
		return
	}
	logger.Debug("run status", "from", res.Status, "to", next)
	res.Status = next
}

func emitLog(cb Callbacks, logger *slog.Logger, msg string) {
	logger.Info(msg)
	if cb.OnLog != nil {
		cb.OnLog(msg)
	}
}
