package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ibnnafaa/nafaa/internal/cache"
	"github.com/ibnnafaa/nafaa/internal/fetch"
	"github.com/ibnnafaa/nafaa/internal/locator"
	"golang.org/x/time/rate"
)

// DefaultPacing is the delay between two catalog items.
const DefaultPacing = 300 * time.Millisecond

// ErrCanceled is returned by a run that was superseded or cancelled.
var ErrCanceled = errors.New("sync canceled")

// PartialError lists the items a finished run could not fetch.
type PartialError struct {
	Failed []locator.ItemID
	Errs   map[locator.ItemID]error
}

func (e *PartialError) Error() string {
	ids := make([]string, len(e.Failed))
	for i, id := range e.Failed {
		ids[i] = fmt.Sprint(int(id))
	}
	return fmt.Sprintf("%d items failed: %s", len(e.Failed), strings.Join(ids, ", "))
}

// Ensurer fills the store for one item. fetch.Fetcher satisfies it.
type Ensurer interface {
	EnsureCached(ctx context.Context, reciter string, item locator.ItemID, tier string) (fetch.Result, error)
}

// ProgressFunc receives the number of processed items after every item.
type ProgressFunc func(completed, total int)

// Progress is a snapshot of a run.
type Progress struct {
	Completed int
	Total     int
}

// Fraction returns the completed share in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// Report summarizes a run.
type Report struct {
	Progress
	Downloaded int
	Cached     int
	Failed     int
	Bytes      int64 // stored bytes after the run, when a store is set
	Took       time.Duration
}

// Config holds the controller's collaborators.
type Config struct {
	Fetcher Ensurer
	Locator locator.Locator
	Store   cache.Store // optional, for Report.Bytes
	Pacing  time.Duration
	Logger  *log.Logger
}

// Controller runs catalog syncs. Only the latest run is live; starting a
// new one cancels the previous.
type Controller struct {
	fetcher Ensurer
	locator locator.Locator
	store   cache.Store
	pacing  time.Duration
	logger  *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// NewController creates a controller. Negative pacing is treated as zero.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	pacing := cfg.Pacing
	if pacing < 0 {
		pacing = 0
	}
	return &Controller{
		fetcher: cfg.Fetcher,
		locator: cfg.Locator,
		store:   cfg.Store,
		pacing:  pacing,
		logger:  logger.WithPrefix("sync"),
	}
}

func (c *Controller) limiter() *rate.Limiter {
	if c.pacing == 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(c.pacing), 1)
}

// begin registers a new run and cancels the previous one.
func (c *Controller) begin(ctx context.Context) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.logger.Debug("Superseding running sync")
		c.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.gen++
	return runCtx, c.gen
}

func (c *Controller) end(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen == gen && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Cancel stops the running sync at the next item boundary.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Running reports whether a sync is in progress.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// SyncAll fetches every catalog item for reciter and tier in order. Item
// failures are collected into a *PartialError; a storage error aborts the
// run. The run stops with ErrCanceled when superseded, cancelled, or when
// ctx is done.
func (c *Controller) SyncAll(ctx context.Context, reciter, tier string, onProgress ProgressFunc) (Report, error) {
	runCtx, gen := c.begin(ctx)
	defer c.end(gen)

	items := c.locator.Items()
	limiter := c.limiter()
	start := time.Now()

	report := Report{Progress: Progress{Total: len(items)}}
	var partial PartialError

	c.logger.Info("Starting sync", "reciter", reciter, "quality", tier, "items", len(items))

	for _, item := range items {
		// Item boundary: an in-flight item always completes
		if err := limiter.Wait(runCtx); err != nil {
			return c.finish(ctx, report, start), canceled(ctx)
		}

		res, err := c.fetcher.EnsureCached(context.WithoutCancel(runCtx), reciter, item, tier)
		switch {
		case err == nil && res == fetch.Downloaded:
			report.Downloaded++
		case err == nil:
			report.Cached++
		case cache.IsStorageError(err):
			c.logger.Error("Sync aborted", "item", item, "err", err)
			return c.finish(ctx, report, start), fmt.Errorf("sync aborted at item %d: %w", item, err)
		default:
			c.logger.Warn("Item failed", "item", item, "err", err)
			report.Failed++
			partial.Failed = append(partial.Failed, item)
			if partial.Errs == nil {
				partial.Errs = make(map[locator.ItemID]error)
			}
			partial.Errs[item] = err
		}

		report.Completed++
		if onProgress != nil {
			onProgress(report.Completed, report.Total)
		}
	}

	report = c.finish(ctx, report, start)
	c.logger.Info("Sync finished",
		"downloaded", report.Downloaded,
		"cached", report.Cached,
		"failed", report.Failed,
		"took", report.Took.Round(time.Millisecond))

	if len(partial.Failed) > 0 {
		sort.Slice(partial.Failed, func(i, j int) bool { return partial.Failed[i] < partial.Failed[j] })
		return report, &partial
	}
	return report, nil
}

func (c *Controller) finish(ctx context.Context, report Report, start time.Time) Report {
	report.Took = time.Since(start)
	if c.store != nil {
		if stats, err := c.store.Stats(context.WithoutCancel(ctx)); err == nil {
			report.Bytes = stats.Bytes
		}
	}
	return report
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return ErrCanceled
}
