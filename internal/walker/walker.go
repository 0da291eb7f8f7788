// Package walker enumerates query keys and drives a browser session over
// them one at a time, collecting normalized address records.
package walker

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cepsync/internal/browser"
	"github.com/sells-group/cepsync/internal/model"
	"github.com/sells-group/cepsync/internal/normalize"
)

// progressEvery controls how often an info-level progress line is logged.
const progressEvery = 50

// Options bounds a walk.
type Options struct {
	// MaxResults stops the walk once this many records were collected.
	// Zero means no cap.
	MaxResults int
}

// Result is the outcome of a walk: the collected batch plus counters.
type Result struct {
	Records   []model.AddressRecord
	Processed int
	Found     int
	NotFound  int
	Failed    int
	Rejected  int
	FailedBy  map[model.FailReason]int
}

func newResult() *Result {
	return &Result{FailedBy: make(map[model.FailReason]int)}
}

// Walker runs keys through a Session sequentially.
type Walker struct {
	pacer *Pacer
	log   *zap.Logger
}

// New creates a Walker that paces queries with p.
func New(p *Pacer) *Walker {
	if p == nil {
		p = NewPacer(0, 0)
	}
	return &Walker{
		pacer: p,
		log:   zap.L().With(zap.String("component", "walker")),
	}
}

// Walk processes keys in order until they run out, the cap is reached, ctx
// is cancelled or the session fails fatally. The returned Result is never nil
// and carries the counters accumulated so far even when err is non-nil.
func (w *Walker) Walk(ctx context.Context, s browser.Session, keys KeySource, opts Options) (*Result, error) {
	res := newResult()

	for first := true; ; first = false {
		if opts.MaxResults > 0 && res.Found >= opts.MaxResults {
			w.log.Info("max results reached", zap.Int("max_results", opts.MaxResults))
			break
		}
		key, ok := keys.Next()
		if !ok {
			break
		}

		if first {
			if err := ctx.Err(); err != nil {
				return res, eris.Wrap(err, "walker: cancelled")
			}
		} else if err := w.pacer.Wait(ctx); err != nil {
			return res, eris.Wrap(err, "walker: cancelled")
		}

		out, err := s.Extract(ctx, key)
		w.pacer.Done()
		if err != nil {
			return res, eris.Wrapf(err, "walker: extract %s", key)
		}
		res.Processed++
		w.record(res, key, out, opts.MaxResults)

		if res.Processed%progressEvery == 0 {
			w.log.Info("walk progress",
				zap.Int("processed", res.Processed),
				zap.Int("found", res.Found),
				zap.String("last_key", key.String()),
			)
		}
	}

	// A cancellation during the last extraction must not look like a
	// completed walk.
	if err := ctx.Err(); err != nil {
		return res, eris.Wrap(err, "walker: cancelled")
	}
	return res, nil
}

func (w *Walker) record(res *Result, key model.QueryKey, out model.ExtractionResult, maxResults int) {
	switch out.Outcome {
	case model.OutcomeFound:
		for _, row := range out.Rows {
			if maxResults > 0 && res.Found >= maxResults {
				w.log.Debug("truncating result table at cap", zap.String("key", key.String()))
				return
			}
			rec, err := normalize.Normalize(withKeyHints(row, key), key.Region())
			if err != nil {
				res.Rejected++
				w.log.Debug("row rejected", zap.String("key", key.String()), zap.Error(err))
				continue
			}
			res.Records = append(res.Records, rec)
			res.Found++
		}
	case model.OutcomeNotFound:
		res.NotFound++
		w.log.Debug("not found", zap.String("key", key.String()))
	default:
		res.Failed++
		res.FailedBy[out.Reason]++
		w.log.Warn("extraction failed",
			zap.String("key", key.String()),
			zap.String("reason", string(out.Reason)),
			zap.String("detail", out.Detail),
		)
	}
}

// withKeyHints fills a missing code from a code key. The row is copied.
func withKeyHints(row model.RawFields, key model.QueryKey) model.RawFields {
	if key.Kind() != model.KeyCode || row.Has(model.FieldCode) {
		return row
	}
	out := make(model.RawFields, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	out[model.FieldCode] = key.Code()
	return out
}
