// Package refresh runs the periodic fetch, classify, validate, cache and notify cycle.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DeafMist/fire-radar/internal/models"
	"github.com/DeafMist/fire-radar/internal/notify"
	"github.com/DeafMist/fire-radar/internal/processing"
	"github.com/DeafMist/fire-radar/internal/sources"
	"github.com/DeafMist/fire-radar/internal/store"
	"github.com/DeafMist/fire-radar/internal/validate"
)

const (
	DefaultInterval      = 5 * time.Minute
	DefaultSourceTimeout = 20 * time.Second
)

// Ticker is the subset of time.Ticker the loop needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// Config tunes a Loop. Zero values fall back to the defaults.
type Config struct {
	Interval      time.Duration
	SourceTimeout time.Duration
	// NewTicker overrides the ticker factory, mostly for tests.
	NewTicker func(d time.Duration) Ticker
	Now       func() time.Time
}

// SourceError records one source failure within a cycle.
type SourceError struct {
	Source string `json:"source"`
	Err    string `json:"error"`
}

// CycleReport summarizes a refresh cycle.
type CycleReport struct {
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Fetched    int           `json:"fetched"`
	Valid      int           `json:"valid"`
	New        int           `json:"new"`
	Errors     []SourceError `json:"errors,omitempty"`
	Generation uint64        `json:"generation"`
	// Failed is set when the cycle aborted on a panic.
	Failed bool `json:"failed,omitempty"`
}

// Loop owns the refresh schedule. Only one cycle runs at a time.
type Loop struct {
	sources  []sources.Source
	store    *store.Store
	notifier notify.Notifier
	log      *slog.Logger
	cfg      Config

	running sync.Mutex
	last    atomic.Pointer[CycleReport]
}

func New(srcs []sources.Source, st *store.Store, n notify.Notifier, log *slog.Logger, cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = DefaultSourceTimeout
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = func(d time.Duration) Ticker { return timeTicker{t: time.NewTicker(d)} }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Loop{
		sources:  srcs,
		store:    st,
		notifier: n,
		log:      log.With("component", "refresh"),
		cfg:      cfg,
	}
}

// Run executes one cycle right away and then one per tick until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info("refresh loop started",
		slog.Int("sources", len(l.sources)),
		slog.Duration("interval", l.cfg.Interval),
	)

	l.tick(ctx)

	ticker := l.cfg.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("refresh loop stopped")
			return
		case <-ticker.C():
			// a tick landing while a cycle is still running is skipped by TryRunOnce
			go l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if _, ok := l.TryRunOnce(ctx); !ok {
		l.log.Warn("refresh cycle still running, tick skipped")
	}
}

// RunOnce runs a cycle synchronously, waiting for any in-flight cycle first.
func (l *Loop) RunOnce(ctx context.Context) CycleReport {
	l.running.Lock()
	defer l.running.Unlock()
	return l.cycle(ctx)
}

// TryRunOnce runs a cycle unless one is already in flight.
func (l *Loop) TryRunOnce(ctx context.Context) (CycleReport, bool) {
	if !l.running.TryLock() {
		return CycleReport{}, false
	}
	defer l.running.Unlock()
	return l.cycle(ctx), true
}

// LastReport returns the report of the latest finished cycle, or nil before the first one.
func (l *Loop) LastReport() *CycleReport {
	return l.last.Load()
}

func (l *Loop) cycle(ctx context.Context) (report CycleReport) {
	report.StartedAt = l.cfg.Now()

	defer func() {
		if r := recover(); r != nil {
			report.Failed = true
			l.log.Error("refresh cycle panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
		report.Duration = l.cfg.Now().Sub(report.StartedAt)
		saved := report
		l.last.Store(&saved)
	}()

	candidates, errs := l.fetchAll(ctx)
	report.Fetched = len(candidates)
	report.Errors = errs

	for i := range candidates {
		candidates[i].Category = processing.Classify(candidates[i].Title, candidates[i].Content)
	}

	valid := validate.Records(candidates, l.log)
	report.Valid = len(valid)

	previous := l.store.Last()
	fresh := make([]models.NewsRecord, 0, len(valid))
	for _, rec := range valid {
		if !previous.Contains(rec.ID) {
			fresh = append(fresh, rec)
		}
	}
	report.New = len(fresh)

	gen := l.store.Set(valid)
	report.Generation = gen.Version

	for _, rec := range fresh {
		l.notifier.Notify(ctx, rec)
	}

	l.log.Info("refresh cycle finished",
		slog.Int("fetched", report.Fetched),
		slog.Int("valid", report.Valid),
		slog.Int("new", report.New),
		slog.Int("source_errors", len(report.Errors)),
		slog.Uint64("generation", report.Generation),
	)
	return report
}

type fetchResult struct {
	records []models.NewsRecord
	err     error
}

// fetchAll queries every source concurrently and concatenates the results in registry order.
func (l *Loop) fetchAll(ctx context.Context) ([]models.NewsRecord, []SourceError) {
	results := make([]fetchResult, len(l.sources))

	var wg sync.WaitGroup
	for i, src := range l.sources {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			results[i] = l.fetchOne(ctx, src)
		}(i, src)
	}
	wg.Wait()

	var (
		out  []models.NewsRecord
		errs []SourceError
	)
	for i, res := range results {
		name := l.sources[i].Name()
		if res.err != nil {
			l.log.Warn("source failed", slog.String("source", name), slog.Any("err", res.err))
			errs = append(errs, SourceError{Source: name, Err: res.err.Error()})
			continue
		}
		l.log.Debug("source fetched", slog.String("source", name), slog.Int("records", len(res.records)))
		out = append(out, res.records...)
	}
	return out, errs
}

func (l *Loop) fetchOne(ctx context.Context, src sources.Source) (res fetchResult) {
	defer func() {
		if r := recover(); r != nil {
			res = fetchResult{err: fmt.Errorf("source %q panicked: %v", src.Name(), r)}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, l.cfg.SourceTimeout)
	defer cancel()

	records, err := src.Fetch(ctx)
	return fetchResult{records: records, err: err}
}
