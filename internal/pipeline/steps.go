package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/redfishscan/internal/crawler"
	"github.com/nao1215/redfishscan/internal/database"
	"github.com/nao1215/redfishscan/internal/document"
	"github.com/nao1215/redfishscan/internal/model"
	"github.com/nao1215/redfishscan/internal/redfish"
)

var (
	// ErrNoCrawl is returned by steps that need a crawl result when none ran.
	ErrNoCrawl = errors.New("no crawl result in report")

	// ErrInvalidMethod is returned for an action method other than
	// PATCH, POST, PUT or DELETE.
	ErrInvalidMethod = errors.New("invalid action method")

	// ErrInvalidBody is returned when an action body is not valid JSON.
	ErrInvalidBody = errors.New("invalid action body")

	// ErrMissingBody is returned when PATCH or PUT is given no body.
	ErrMissingBody = errors.New("action body is required")

	// ErrPatternTooBroad is returned when an action filter would select
	// every resource.
	ErrPatternTooBroad = errors.New("action filter must select specific resources")

	// ErrNoMatchingResources is returned when no crawled resource fully
	// matches the action filter. Action URIs under "Actions" are not
	// crawled, so a filter naming one never matches.
	ErrNoMatchingResources = errors.New("no crawled resource matches the action filter")

	// ErrRunNotStarted is returned when snapshots reach a RecordStep
	// before its run began.
	ErrRunNotStarted = errors.New("history run not started")
)

// StepCrawl and StepSession name the steps that are not collectors.
const (
	StepCrawl   = "crawl"
	StepSession = "session"
)

// SessionClient opens and closes Redfish sessions. *redfish.Client
// satisfies it.
type SessionClient interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
}

// SessionStep logs in with session authentication and logs out when the
// pipeline ends. BMCs hold a small fixed number of session slots, so a run
// that leaks its session can lock out the next one.
type SessionStep struct {
	client   SessionClient
	username string
	password string
	logger   *slog.Logger
}

// NewSessionStep creates a session step.
func NewSessionStep(client SessionClient, username, password string, logger *slog.Logger) *SessionStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStep{
		client:   client,
		username: username,
		password: password,
		logger:   logger,
	}
}

// Name returns the step name.
func (s *SessionStep) Name() string {
	return StepSession
}

// Do opens the session.
func (s *SessionStep) Do(ctx context.Context, _ *model.TargetReport) error {
	return s.client.Login(ctx, s.username, s.password)
}

// Finalize closes the session.
func (s *SessionStep) Finalize(ctx context.Context, report *model.TargetReport) error {
	err := s.client.Logout(ctx)
	if errors.Is(err, redfish.ErrNoSession) {
		s.logger.Debug("no session to close", "target", report.Target)
		return nil
	}
	return err
}

// RecordStep begins a run in the history database, receives the crawl's
// snapshots as a crawler.Store, and stores the final report when the
// pipeline ends. It must be added before the CrawlStep that writes to it.
type RecordStep struct {
	db      *database.CrawlDB
	root    string
	pattern string
	run     *database.RunStore
}

// NewRecordStep creates a record step for a crawl of root with pattern.
func NewRecordStep(db *database.CrawlDB, root, pattern string) *RecordStep {
	return &RecordStep{
		db:      db,
		root:    root,
		pattern: pattern,
	}
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return model.ScanRecord
}

// Do begins the run and sets report.RunID.
func (s *RecordStep) Do(ctx context.Context, report *model.TargetReport) error {
	run, err := s.db.BeginRun(ctx, report.Target, report.BaseURI, report.Command, s.root, s.pattern)
	if err != nil {
		return err
	}
	s.run = run
	report.RunID = run.ID()
	return nil
}

// Put implements crawler.Store.
func (s *RecordStep) Put(ctx context.Context, path string, snap *model.Snapshot) error {
	if s.run == nil {
		return ErrRunNotStarted
	}
	return s.run.Put(ctx, path, snap)
}

// Finalize records the crawl counts and the report.
func (s *RecordStep) Finalize(ctx context.Context, report *model.TargetReport) error {
	return s.run.Finish(ctx, report.Crawl, report)
}

// CrawlStep runs the crawl engine and stores its result in report.Crawl.
type CrawlStep struct {
	// fetcher issues the GET requests.
	fetcher crawler.Fetcher

	// request is the root and filter pattern.
	request crawler.Request

	// store receives snapshots. Nil means the engine's in-memory store.
	store crawler.Store

	// engineOpts configure the engine.
	engineOpts []crawler.Option

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlStore sets the store snapshots are written to.
func WithCrawlStore(store crawler.Store) CrawlStepOption {
	return func(s *CrawlStep) {
		s.store = store
	}
}

// WithCrawlEngineOptions passes options through to the crawl engine.
func WithCrawlEngineOptions(opts ...crawler.Option) CrawlStepOption {
	return func(s *CrawlStep) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step for req.
func NewCrawlStep(fetcher crawler.Fetcher, req crawler.Request, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		fetcher: fetcher,
		request: req,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return StepCrawl
}

// Do crawls the target. Per-path failures stay in report.Crawl.Failures;
// only a malformed request or cancellation makes Do fail, and a cancelled
// crawl still leaves its partial result in the report.
func (s *CrawlStep) Do(ctx context.Context, report *model.TargetReport) error {
	opts := append([]crawler.Option{crawler.WithLogger(s.logger)}, s.engineOpts...)
	engine := crawler.New(s.fetcher, s.store, opts...)

	result, err := engine.Crawl(ctx, s.request)
	if result != nil {
		report.Crawl = result
	}
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	s.logger.Info("crawl finished",
		"target", report.Target,
		"visited", len(result.Visited),
		"failures", len(result.Failures),
		"duration", result.Duration(),
	)
	return nil
}

// LogCollectStep turns the LogEntry resources of a crawl into
// report.LogEntries.
type LogCollectStep struct {
	// since drops entries created before it. Zero keeps everything.
	since time.Time

	// minSeverity drops entries below it.
	minSeverity model.Severity

	// logger for structured logging.
	logger *slog.Logger
}

// LogCollectStepOption configures a LogCollectStep.
type LogCollectStepOption func(*LogCollectStep)

// WithLogSince keeps only entries created at or after t. Entries without a
// parseable Created timestamp are kept.
func WithLogSince(t time.Time) LogCollectStepOption {
	return func(s *LogCollectStep) {
		s.since = t
	}
}

// WithLogMinSeverity keeps only entries at or above severity.
func WithLogMinSeverity(severity model.Severity) LogCollectStepOption {
	return func(s *LogCollectStep) {
		s.minSeverity = severity
	}
}

// WithLogLogger sets a custom logger for the log step.
func WithLogLogger(logger *slog.Logger) LogCollectStepOption {
	return func(s *LogCollectStep) {
		s.logger = logger
	}
}

// NewLogCollectStep creates a log collection step.
func NewLogCollectStep(opts ...LogCollectStepOption) *LogCollectStep {
	s := &LogCollectStep{
		minSeverity: model.SeverityUnknown,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *LogCollectStep) Name() string {
	return model.ScanLogs
}

// Do extracts log entries in visit order.
func (s *LogCollectStep) Do(_ context.Context, report *model.TargetReport) error {
	if report.Crawl == nil {
		return ErrNoCrawl
	}

	for _, snap := range report.Crawl.SortedSnapshots() {
		if !model.IsLogEntry(snap) {
			continue
		}
		entry := model.NewLogEntry(snap)
		if !s.since.IsZero() && !entry.Created.IsZero() && entry.Created.Before(s.since) {
			continue
		}
		if !entry.Severity.AtLeast(s.minSeverity) {
			continue
		}
		report.LogEntries = append(report.LogEntries, entry)
	}

	s.logger.Info("log entries collected",
		"target", report.Target,
		"entries", len(report.LogEntries),
	)
	return nil
}

// Doer issues one Redfish request. *redfish.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, method, path string, body []byte) (*redfish.Response, error)
}

// ActionStep issues one write to every crawled resource that fully matches
// a filter pattern.
type ActionStep struct {
	doer    Doer
	method  string
	pattern string
	body    []byte

	// dryRun reports what would be written without writing.
	dryRun bool

	// force ignores the Allow header.
	force bool

	logger *slog.Logger
}

// ActionStepOption configures an ActionStep.
type ActionStepOption func(*ActionStep)

// WithActionDryRun reports planned writes without issuing them.
func WithActionDryRun(dryRun bool) ActionStepOption {
	return func(s *ActionStep) {
		s.dryRun = dryRun
	}
}

// WithActionForce writes even to resources whose Allow header does not
// list the method.
func WithActionForce(force bool) ActionStepOption {
	return func(s *ActionStep) {
		s.force = force
	}
}

// WithActionLogger sets a custom logger for the action step.
func WithActionLogger(logger *slog.Logger) ActionStepOption {
	return func(s *ActionStep) {
		s.logger = logger
	}
}

// NewActionStep validates the method, pattern and body and creates an
// action step. Validation happens here so that a bad invocation fails
// before anything is fetched. POST without a body sends an empty object.
func NewActionStep(doer Doer, method, pattern string, body []byte, opts ...ActionStepOption) (*ActionStep, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	switch method {
	case http.MethodPatch, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" || trimmed == crawler.MatchAll {
		return nil, ErrPatternTooBroad
	}

	body = []byte(strings.TrimSpace(string(body)))
	if len(body) > 0 {
		if _, err := document.Decode(body); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBody, err)
		}
	} else {
		switch method {
		case http.MethodPatch, http.MethodPut:
			return nil, fmt.Errorf("%w for %s", ErrMissingBody, method)
		case http.MethodPost:
			body = []byte("{}")
		default:
			body = nil
		}
	}

	s := &ActionStep{
		doer:    doer,
		method:  method,
		pattern: pattern,
		body:    body,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns the step name.
func (s *ActionStep) Name() string {
	return model.ScanAction
}

// Method returns the normalized HTTP method.
func (s *ActionStep) Method() string {
	return s.method
}

// Do writes to every matching resource in visit order and records one
// ActionResult each. Failed writes do not stop the step.
func (s *ActionStep) Do(ctx context.Context, report *model.TargetReport) error {
	if report.Crawl == nil {
		return ErrNoCrawl
	}

	base, err := model.ParseBaseURI(report.Crawl.BaseURI)
	if err != nil {
		return err
	}
	filter, err := crawler.NewFilter(s.pattern, report.Crawl.Root, base)
	if err != nil {
		return err
	}

	for _, snap := range report.Crawl.SortedSnapshots() {
		if !filter.MatchFull(snap.Path) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Actions = append(report.Actions, s.apply(ctx, snap))
	}

	s.logger.Info("actions finished",
		"target", report.Target,
		"method", s.method,
		"targets", len(report.Actions),
		"dry_run", s.dryRun,
	)
	if len(report.Actions) == 0 {
		return fmt.Errorf("%w: %s", ErrNoMatchingResources, s.pattern)
	}
	return nil
}

// apply issues, plans or skips the write for one resource.
func (s *ActionStep) apply(ctx context.Context, snap *model.Snapshot) model.ActionResult {
	result := model.ActionResult{
		Path:   snap.Path,
		Method: s.method,
	}

	if !s.force && !snap.Allows(s.method) {
		result.Status = model.ActionSkipped
		advertised := "none"
		if len(snap.Methods) > 0 {
			advertised = strings.Join(snap.Methods, ", ")
		}
		result.Message = fmt.Sprintf("%s not advertised (allowed: %s)", s.method, advertised)
		return result
	}

	if s.dryRun {
		result.Status = model.ActionPlanned
		return result
	}

	resp, err := s.doer.Do(ctx, s.method, snap.Path, s.body)
	if err != nil {
		result.Status = model.ActionFailed
		result.Message = err.Error()
		return result
	}
	result.StatusCode = resp.StatusCode
	if err := resp.Err(); err != nil {
		result.Status = model.ActionFailed
		result.Message = err.Error()
		return result
	}

	result.Status = model.ActionApplied
	s.logger.Debug("action applied",
		"path", snap.Path,
		"method", s.method,
		"status", resp.StatusCode,
	)
	return result
}
