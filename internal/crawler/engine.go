package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nao1215/redfishscan/internal/document"
	"github.com/nao1215/redfishscan/internal/model"
	"github.com/nao1215/redfishscan/internal/redfish"
)

var (
	// ErrEmptyRoot is returned when a crawl request has no root path.
	ErrEmptyRoot = errors.New("crawl root must not be empty")

	// ErrConflictingBase is returned when an absolute root points at a
	// different scheme or host than the fetcher's base URI.
	ErrConflictingBase = errors.New("root path conflicts with base URI")

	// ErrNoBaseURI is returned when the fetcher has no base URI.
	ErrNoBaseURI = errors.New("fetcher has no base URI")
)

// Fetcher issues GET requests against one Redfish service.
// *redfish.Client satisfies it.
type Fetcher interface {
	// BaseURI returns the scheme and authority relative paths resolve against.
	BaseURI() *url.URL

	// Get fetches path. A non-nil error means no response was received;
	// HTTP error statuses are reported through Response.Err.
	Get(ctx context.Context, path string) (*redfish.Response, error)
}

// Request describes one crawl.
type Request struct {
	// Root is the path the crawl starts from. It is always visited.
	Root string

	// Pattern is the filter pattern. Empty means MatchAll.
	Pattern string
}

// Engine walks a Redfish resource graph by following @odata.id and href links.
//
// An Engine holds configuration only. Each call to Crawl gets its own visited
// set and result, so one Engine may run several crawls, and crawls against
// different targets may run in parallel.
type Engine struct {
	// fetcher performs the HTTP requests.
	fetcher Fetcher

	// store receives every visited snapshot.
	store Store

	// concurrency bounds in-flight fetches. 1 means a sequential
	// depth-first walk.
	concurrency int

	// maxResources caps claimed paths per crawl. 0 means unlimited.
	maxResources int

	// recordFailures controls whether error snapshots are handed to the store.
	recordFailures bool

	// visitHook is called after each successful snapshot is stored.
	visitHook func(*model.Snapshot)

	// logger receives per-visit debug output.
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency sets how many fetches may be in flight at once.
// Values below 1 are treated as 1.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
	}
}

// WithMaxResources caps the number of paths a crawl may claim. 0 disables the cap.
func WithMaxResources(n int) Option {
	return func(e *Engine) {
		if n < 0 {
			n = 0
		}
		e.maxResources = n
	}
}

// WithRecordFailures sets whether failed fetches produce an error snapshot
// in the store. Failures are always listed in the result.
func WithRecordFailures(record bool) Option {
	return func(e *Engine) {
		e.recordFailures = record
	}
}

// WithVisitHook registers a callback invoked after each snapshot is stored.
// With concurrency above 1 the hook is called from several goroutines.
func WithVisitHook(hook func(*model.Snapshot)) Option {
	return func(e *Engine) {
		e.visitHook = hook
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine. A nil store is replaced by a MemoryStore.
func New(fetcher Fetcher, store Store, opts ...Option) *Engine {
	if store == nil {
		store = NewMemoryStore()
	}
	e := &Engine{
		fetcher:        fetcher,
		store:          store,
		concurrency:    1,
		recordFailures: true,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Crawl visits req.Root and every in-scope resource reachable from it.
//
// Per-path failures never stop the crawl; they are listed in the result's
// Failures. The returned error is non-nil only for a malformed request,
// which is detected before any fetch, or for cancellation, in which case the
// partial result is returned together with ctx.Err().
func (e *Engine) Crawl(ctx context.Context, req Request) (*model.CrawlResult, error) {
	base := e.fetcher.BaseURI()
	if base == nil || base.Host == "" {
		return nil, ErrNoBaseURI
	}

	root := strings.TrimSpace(req.Root)
	if root == "" {
		return nil, ErrEmptyRoot
	}
	if !model.SameOrigin(base, root) {
		return nil, fmt.Errorf("%w: root %q, base %q", ErrConflictingBase, root, base.String())
	}

	filter, err := NewFilter(req.Pattern, root, base)
	if err != nil {
		return nil, err
	}

	c := &crawl{
		engine: e,
		base:   base,
		filter: filter,
		seen:   make(map[string]struct{}),
		result: model.NewCrawlResult(base.String(), root, filter.Pattern()),
		logger: e.logger.With(slog.String("base_uri", base.String())),
	}

	c.logger.Debug("crawl started", slog.String("root", root), slog.String("pattern", filter.Pattern()))

	if e.concurrency > 1 {
		c.runParallel(ctx, root)
	} else {
		c.runSequential(ctx, root)
	}

	c.result.FinishedAt = time.Now()
	c.logger.Debug("crawl finished",
		slog.Int("visited", len(c.result.Visited)),
		slog.Int("failures", len(c.result.Failures)),
		slog.Duration("duration", c.result.Duration()))

	if err := ctx.Err(); err != nil {
		return c.result, err
	}
	return c.result, nil
}

// crawl is the state of one Crawl invocation.
type crawl struct {
	engine *Engine
	base   *url.URL
	filter *Filter
	logger *slog.Logger

	// mu guards seen and result.
	mu     sync.Mutex
	seen   map[string]struct{}
	result *model.CrawlResult
}

// claim atomically checks link against the visited set, the filter and the
// resource cap, and marks it visited when all pass. A filtered link is not
// marked, so it stays eligible if another spelling is ever in scope.
func (c *crawl) claim(link string) (key, rel string, ok bool) {
	key = model.NormalizeURL(c.base, link)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.seen[key]; dup {
		c.result.Skipped.Duplicate++
		return "", "", false
	}
	if !c.filter.Match(link) {
		c.result.Skipped.Filtered++
		return "", "", false
	}
	if limit := c.engine.maxResources; limit > 0 && len(c.seen) >= limit {
		c.result.Skipped.Limit++
		return "", "", false
	}

	c.seen[key] = struct{}{}
	rel = model.TrimPath(model.RelativePath(c.base, link))
	if !model.SameOrigin(c.base, link) {
		rel = key
	}
	c.result.Visited = append(c.result.Visited, rel)
	return key, rel, true
}

// runSequential walks the graph depth-first with an explicit stack. Children
// are pushed in reverse so they pop in extraction order, which reproduces the
// order of a recursive walk without growing the call stack.
func (c *crawl) runSequential(ctx context.Context, root string) {
	stack := []string{root}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return
		}

		link := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		key, rel, ok := c.claim(link)
		if !ok {
			continue
		}

		children := c.visit(ctx, link, key, rel)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// runParallel starts one goroutine per claimed link. Claims stay atomic
// through c.mu; the semaphore bounds concurrent fetches.
func (c *crawl) runParallel(ctx context.Context, root string) {
	sem := semaphore.NewWeighted(int64(c.engine.concurrency))
	var wg sync.WaitGroup

	var walk func(link string)
	walk = func(link string) {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}

		key, rel, ok := c.claim(link)
		if !ok {
			return
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		children := c.visit(ctx, link, key, rel)
		sem.Release(1)

		for _, child := range children {
			wg.Add(1)
			go walk(child)
		}
	}

	wg.Add(1)
	go walk(root)
	wg.Wait()
}

// visit fetches one claimed path, stores its snapshot and returns the links
// it contains. A failed fetch or decode returns no links.
func (c *crawl) visit(ctx context.Context, link, key, rel string) []string {
	logger := c.logger.With(slog.String("path", rel))
	logger.Debug("fetching")

	resp, err := c.engine.fetcher.Get(ctx, link)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.fail(ctx, logger, rel, key, model.FailureFetch, 0, err)
		return nil
	}
	if err := resp.Err(); err != nil {
		c.fail(ctx, logger, rel, key, model.FailureFetch, resp.StatusCode, err)
		return nil
	}

	doc, err := document.Decode(resp.Body)
	if err != nil {
		c.fail(ctx, logger, rel, key, model.FailureDecode, resp.StatusCode, fmt.Errorf("decode %s: %w", rel, err))
		return nil
	}

	methods := model.ParseAllowHeader(resp.Header.Get("Allow"))
	snap := model.NewSnapshot(rel, key, resp.StatusCode, methods, doc)

	if err := c.engine.store.Put(ctx, rel, snap); err != nil {
		c.record(logger, model.Failure{
			Path:       rel,
			Kind:       model.FailureStore,
			StatusCode: resp.StatusCode,
			Message:    err.Error(),
			Cause:      err,
		})
	}

	c.mu.Lock()
	c.result.Snapshots[rel] = snap
	c.mu.Unlock()

	if hook := c.engine.visitHook; hook != nil {
		hook(snap)
	}

	return ExtractLinks(doc)
}

// fail records a fetch or decode failure and, when configured, stores an
// error snapshot for the path.
func (c *crawl) fail(ctx context.Context, logger *slog.Logger, rel, key string, kind model.FailureKind, status int, cause error) {
	c.record(logger, model.Failure{
		Path:       rel,
		Kind:       kind,
		StatusCode: status,
		Message:    cause.Error(),
		Cause:      cause,
	})

	if !c.engine.recordFailures {
		return
	}
	snap := model.NewErrorSnapshot(rel, key, status, cause)
	if err := c.engine.store.Put(ctx, rel, snap); err != nil {
		c.record(logger, model.Failure{
			Path:       rel,
			Kind:       model.FailureStore,
			StatusCode: status,
			Message:    err.Error(),
			Cause:      err,
		})
	}
}

func (c *crawl) record(logger *slog.Logger, f model.Failure) {
	logger.Warn("resource failed", slog.String("kind", string(f.Kind)), slog.Int("status", f.StatusCode), slog.String("error", f.Message))

	c.mu.Lock()
	c.result.Failures = append(c.result.Failures, f)
	c.mu.Unlock()
}
