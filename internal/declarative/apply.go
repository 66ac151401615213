package declarative

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sqlite-provider/internal/diag"
	"sqlite-provider/internal/provider"
	"sqlite-provider/internal/resource"
	"sqlite-provider/internal/state"
)

// DefaultParallelism bounds concurrent provider calls within one layer.
const DefaultParallelism = 4

// StateStore is the slice of the state store the apply engine writes to.
type StateStore interface {
	Put(ctx context.Context, rec state.Record) error
	Remove(ctx context.Context, kind, name string) error
}

var _ StateStore = (*state.Store)(nil)

// Applier executes a plan against a configured provider.
type Applier struct {
	Provider    provider.Lifecycle
	Store       StateStore
	Logger      *slog.Logger
	Parallelism int
	RunID       string // stamped on persisted records
}

// Phase is the half of an action a step performs.
type Phase string

// Apply phases.
const (
	PhaseDelete Phase = "delete"
	PhaseCreate Phase = "create"
)

// StepResult is the outcome of one provider call, or of a skipped one.
type StepResult struct {
	Action      Action
	Phase       Phase
	Status      resource.Status
	Skipped     bool
	Diagnostics diag.Diagnostics
	Duration    time.Duration
}

// Failed reports whether the step ran and produced an error diagnostic.
func (r StepResult) Failed() bool {
	return !r.Skipped && r.Diagnostics.HasError()
}

// ApplyResult collects step outcomes in execution order.
type ApplyResult struct {
	Steps     []StepResult
	Succeeded int
	Failed    int
	Skipped   int
}

// HasErrors reports whether any step failed or was skipped.
func (r *ApplyResult) HasErrors() bool {
	return r.Failed > 0 || r.Skipped > 0
}

// Apply runs every delete half by descending layer and then every create
// half by ascending layer. Steps within a layer run concurrently, bounded by
// Parallelism. A create is skipped when its own delete half or a
// dependency failed earlier in the run. State is persisted per step, so a
// partially failed apply can be retried.
func (a *Applier) Apply(ctx context.Context, plan *Plan) *ApplyResult {
	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	res := &ApplyResult{}
	failed := map[string]bool{}

	for layer := MaxLayer; layer >= 0; layer-- {
		var steps []Action
		for _, act := range plan.Actions {
			if act.ResourceKind.Layer() == layer && (act.Operation == OpDelete || act.Operation == OpReplace) {
				steps = append(steps, act)
			}
		}
		a.runLayer(ctx, logger, PhaseDelete, steps, failed, res)
	}

	for layer := 0; layer <= MaxLayer; layer++ {
		var steps []Action
		for _, act := range plan.Actions {
			if act.ResourceKind.Layer() == layer && (act.Operation == OpCreate || act.Operation == OpReplace) {
				steps = append(steps, act)
			}
		}
		a.runLayer(ctx, logger, PhaseCreate, steps, failed, res)
	}

	return res
}

func (a *Applier) runLayer(ctx context.Context, logger *slog.Logger, phase Phase, steps []Action, failed map[string]bool, res *ApplyResult) {
	if len(steps) == 0 {
		return
	}
	limit := a.Parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}

	results := make([]StepResult, len(steps))
	var mu sync.Mutex // guards failed during the layer

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit) // bounded parallelism

	for i := range steps {
		act := steps[i]
		if phase == PhaseCreate {
			mu.Lock()
			blocker := a.blockedBy(act, failed)
			mu.Unlock()
			if blocker != "" {
				r := StepResult{Action: act, Phase: phase, Skipped: true}
				r.Diagnostics.Warnf("skipped "+act.Key(), "dependency %s failed earlier in this run", blocker)
				logger.Warn("step skipped", "resource", act.Key(), "blocked_by", blocker)
				results[i] = r
				continue
			}
		}
		g.Go(func() error {
			r := a.runStep(gctx, logger, phase, act)
			if r.Failed() {
				mu.Lock()
				failed[act.matchKey()] = true
				mu.Unlock()
			}
			results[i] = r
			return nil // don't fail the rest of the layer
		})
	}
	_ = g.Wait()

	for _, r := range results {
		switch {
		case r.Skipped:
			res.Skipped++
		case r.Failed():
			res.Failed++
		default:
			res.Succeeded++
		}
		res.Steps = append(res.Steps, r)
	}
}

// blockedBy returns the failed resource that prevents act's create half,
// or "".
func (a *Applier) blockedBy(act Action, failed map[string]bool) string {
	if failed[act.matchKey()] {
		return act.Key()
	}
	if dep := act.DependsOn(); dep != "" && failed[dep] {
		return dep
	}
	return ""
}

func (a *Applier) runStep(ctx context.Context, logger *slog.Logger, phase Phase, act Action) StepResult {
	start := time.Now()
	kind := act.ResourceKind.String()
	r := StepResult{Action: act, Phase: phase}

	var resp resource.Response
	switch phase {
	case PhaseDelete:
		resp = a.Provider.Delete(ctx, kind, act.ID, act.Actual)
	case PhaseCreate:
		resp = a.Provider.Create(ctx, kind, act.Desired)
	}
	r.Status = resp.Status
	r.Diagnostics = resp.Diagnostics

	if !resp.Diagnostics.HasError() {
		var err error
		switch phase {
		case PhaseDelete:
			err = a.Store.Remove(ctx, kind, act.ResourceName)
		case PhaseCreate:
			err = a.Store.Put(ctx, state.Record{
				Kind:       kind,
				Name:       act.ResourceName,
				ID:         resp.ID,
				Attributes: resp.State,
				Status:     resp.Status,
				RunID:      a.RunID,
			})
		}
		if err != nil {
			r.Diagnostics.AddError("persist state of "+act.Key(), err)
		}
	}

	r.Duration = time.Since(start)
	if r.Failed() {
		logger.Warn("step failed", "resource", act.Key(), "phase", phase, "diagnostics", r.Diagnostics.String())
	} else {
		logger.Info("step succeeded", "resource", act.Key(), "phase", phase, "duration", r.Duration)
	}
	return r
}
