// Package pipeline runs one collection cycle end to end: walk the source
// site, then merge the collected batch into the canonical dataset.
package pipeline

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cepsync/internal/browser"
	"github.com/sells-group/cepsync/internal/dataset"
	"github.com/sells-group/cepsync/internal/model"
	"github.com/sells-group/cepsync/internal/resilience"
	"github.com/sells-group/cepsync/internal/runlog"
	"github.com/sells-group/cepsync/internal/walker"
)

// ErrInvalidRequest is returned for requests that cannot start a run.
var ErrInvalidRequest = eris.New("pipeline: invalid request")

// Request selects a walk mode and its parameters.
type Request struct {
	Mode model.WalkMode

	// Range walk.
	Start string
	End   string

	// Locality walk. Letters lists the initial-letter index to visit; empty
	// means the form has no letter step.
	City    string
	Region  string
	Letters string

	MaxResults int
	// ExportPath, when set, receives the collected batch before merging.
	ExportPath string
}

func (r Request) params() map[string]string {
	p := map[string]string{"max_results": strconv.Itoa(r.MaxResults)}
	switch r.Mode {
	case model.ModeRange:
		p["start"], p["end"] = r.Start, r.End
	case model.ModeLocality:
		p["city"], p["region"] = r.City, r.Region
		if r.Letters != "" {
			p["letters"] = r.Letters
		}
	}
	if r.ExportPath != "" {
		p["export"] = r.ExportPath
	}
	return p
}

// Options tunes a Pipeline.
type Options struct {
	CodeFormat  walker.CodeFormat
	LockStale   time.Duration
	LockTimeout time.Duration
	// Retry governs opening the browser session. Only transient launch
	// failures are retried.
	Retry resilience.RetryConfig
}

// Pipeline wires the browser, walker, dataset and run log together.
type Pipeline struct {
	opener  browser.Opener
	walker  *walker.Walker
	dataset *dataset.FileStore
	runs    runlog.Store
	opts    Options
	log     *zap.Logger
}

// New creates a Pipeline. runs may be nil to skip run history.
func New(opener browser.Opener, w *walker.Walker, ds *dataset.FileStore, runs runlog.Store, opts Options) *Pipeline {
	if opts.CodeFormat == (walker.CodeFormat{}) {
		opts.CodeFormat = walker.DefaultCodeFormat()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 30 * time.Second
	}
	return &Pipeline{
		opener:  opener,
		walker:  w,
		dataset: ds,
		runs:    runs,
		opts:    opts,
		log:     zap.L().With(zap.String("component", "pipeline")),
	}
}

// Run executes one full cycle. The returned summary is never nil; on a
// fatal condition it carries the counters reached so far, a failed or
// cancelled status, and the dataset is left untouched.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.RunSummary, error) {
	started := time.Now()
	sum := newSummary(req.Mode, req.params(), started)
	log := p.log.With(zap.String("run_id", sum.RunID), zap.String("mode", string(req.Mode)))

	keys, err := p.keys(req)
	if err != nil {
		return p.abort(ctx, sum, started, err, false)
	}

	p.recordStart(ctx, sum)
	log.Info("pipeline: starting run", zap.Any("params", sum.Params))

	sess, err := resilience.DoVal(ctx, p.retryConfig(), p.opener.Open)
	if err != nil {
		return p.abort(ctx, sum, started, eris.Wrap(err, "pipeline: open session"), true)
	}

	res, err := p.walk(ctx, sess, keys, req.MaxResults)
	applyWalk(sum, res)
	if err != nil {
		return p.abort(ctx, sum, started, err, true)
	}

	if req.ExportPath != "" {
		if err := dataset.WriteBatch(req.ExportPath, res.Records); err != nil {
			return p.abort(ctx, sum, started, eris.Wrap(err, "pipeline: export batch"), true)
		}
		log.Info("pipeline: batch exported", zap.String("path", req.ExportPath), zap.Int("records", len(res.Records)))
	}

	mr, err := p.merge(ctx, res.Records)
	if err != nil {
		return p.abort(ctx, sum, started, err, true)
	}
	applyMerge(sum, mr)

	return p.complete(ctx, sum, started), nil
}

// MergeBatch merges a previously exported batch without touching the
// browser. Records are re-normalized first; invalid ones are rejected.
func (p *Pipeline) MergeBatch(ctx context.Context, source string, records []model.AddressRecord) (*model.RunSummary, error) {
	started := time.Now()
	sum := newSummary(model.ModeMerge, map[string]string{"batch": source}, started)
	p.recordStart(ctx, sum)

	batch, rejected := renormalize(records)
	sum.Processed = len(records)
	sum.Found = len(batch)
	sum.Rejected = rejected

	mr, err := p.merge(ctx, batch)
	if err != nil {
		return p.abort(ctx, sum, started, err, true)
	}
	applyMerge(sum, mr)
	return p.complete(ctx, sum, started), nil
}

func newSummary(mode model.WalkMode, params map[string]string, started time.Time) *model.RunSummary {
	return &model.RunSummary{
		RunID:      uuid.New().String(),
		Mode:       mode,
		Params:     params,
		NewRegions: []string{},
		Status:     model.RunStatusRunning,
		StartedAt:  started.UTC(),
	}
}

func (p *Pipeline) keys(req Request) (walker.KeySource, error) {
	if req.MaxResults < 0 {
		return nil, eris.Wrapf(ErrInvalidRequest, "max results %d must not be negative", req.MaxResults)
	}
	var (
		keys walker.KeySource
		err  error
	)
	switch req.Mode {
	case model.ModeRange:
		keys, err = walker.CodeRange(p.opts.CodeFormat, req.Start, req.End)
	case model.ModeLocality:
		keys, err = walker.LocalityKeys(req.City, req.Region, req.Letters)
	default:
		return nil, eris.Wrapf(ErrInvalidRequest, "unknown mode %q", req.Mode)
	}
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidRequest, "%v", err)
	}
	return keys, nil
}

func (p *Pipeline) retryConfig() resilience.RetryConfig {
	cfg := p.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("pipeline", "open browser session")
	}
	return cfg
}

// walk runs the walker and always closes the session.
func (p *Pipeline) walk(ctx context.Context, sess browser.Session, keys walker.KeySource, maxResults int) (*walker.Result, error) {
	defer func() {
		if err := sess.Close(); err != nil {
			p.log.Warn("pipeline: close session", zap.Error(err))
		}
	}()
	return p.walker.Walk(ctx, sess, keys, walker.Options{MaxResults: maxResults})
}

// merge performs the locked read-modify-write of the dataset.
func (p *Pipeline) merge(ctx context.Context, batch []model.AddressRecord) (dataset.MergeResult, error) {
	lock, err := dataset.AcquireLock(ctx, dataset.LockPath(p.dataset.Path()), p.opts.LockStale, p.opts.LockTimeout)
	if err != nil {
		return dataset.MergeResult{}, eris.Wrap(err, "pipeline: lock dataset")
	}
	defer func() {
		if err := lock.Release(); err != nil {
			p.log.Warn("pipeline: release dataset lock", zap.Error(err))
		}
	}()

	existing, err := p.dataset.Load(ctx)
	if err != nil {
		return dataset.MergeResult{}, eris.Wrap(err, "pipeline: load dataset")
	}

	mr := dataset.Merge(existing, batch)
	for _, code := range mr.MoreComplete {
		p.log.Debug("pipeline: duplicate discarded",
			zap.String("code", code),
			zap.Bool("more_complete", true),
		)
	}

	if mr.Added == 0 {
		if dataset.IsSorted(existing) {
			p.log.Info("pipeline: nothing new, dataset unchanged", zap.Int("duplicates", mr.Duplicates))
			return mr, nil
		}
		p.log.Warn("pipeline: dataset out of order, rewriting sorted", zap.Int("records", len(existing)))
	}
	if err := p.dataset.Save(ctx, mr.Records); err != nil {
		return dataset.MergeResult{}, eris.Wrap(err, "pipeline: save dataset")
	}
	return mr, nil
}

func applyWalk(sum *model.RunSummary, res *walker.Result) {
	if res == nil {
		return
	}
	sum.Processed = res.Processed
	sum.Found = res.Found
	sum.NotFound = res.NotFound
	sum.Failed = res.Failed
	sum.Rejected = res.Rejected
}

func applyMerge(sum *model.RunSummary, mr dataset.MergeResult) {
	sum.Added = mr.Added
	sum.Duplicates = mr.Duplicates
	if mr.NewRegions != nil {
		sum.NewRegions = mr.NewRegions
	}
}

func (p *Pipeline) complete(ctx context.Context, sum *model.RunSummary, started time.Time) *model.RunSummary {
	sum.Status = model.RunStatusComplete
	sum.Elapsed = time.Since(started)
	p.recordFinish(ctx, sum)
	p.log.Info("pipeline: run complete",
		zap.String("run_id", sum.RunID),
		zap.Int("processed", sum.Processed),
		zap.Int("found", sum.Found),
		zap.Int("added", sum.Added),
		zap.Int("duplicates", sum.Duplicates),
		zap.Strings("new_regions", sum.NewRegions),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum
}

// abort finalizes a run that ended on a fatal error. recorded tells whether
// the run was registered in the run log.
func (p *Pipeline) abort(ctx context.Context, sum *model.RunSummary, started time.Time, err error, recorded bool) (*model.RunSummary, error) {
	sum.Status = model.RunStatusFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		sum.Status = model.RunStatusCancelled
	}
	sum.Error = err.Error()
	sum.Elapsed = time.Since(started)
	if recorded {
		p.recordFinish(ctx, sum)
	}
	p.log.Error("pipeline: run aborted",
		zap.String("run_id", sum.RunID),
		zap.String("status", string(sum.Status)),
		zap.Int("processed", sum.Processed),
		zap.Int("found", sum.Found),
		zap.Error(err),
	)
	return sum, err
}

func (p *Pipeline) recordStart(ctx context.Context, sum *model.RunSummary) {
	if p.runs == nil {
		return
	}
	if err := p.runs.Start(ctx, sum); err != nil {
		p.log.Warn("pipeline: record run start", zap.String("run_id", sum.RunID), zap.Error(err))
	}
}

func (p *Pipeline) recordFinish(ctx context.Context, sum *model.RunSummary) {
	if p.runs == nil {
		return
	}
	// The run may have ended because ctx was cancelled.
	if err := p.runs.Finish(context.WithoutCancel(ctx), sum); err != nil {
		p.log.Warn("pipeline: record run finish", zap.String("run_id", sum.RunID), zap.Error(err))
	}
}
