package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"sqlite-provider/internal/attr"
	"sqlite-provider/internal/declarative"
	"sqlite-provider/internal/diag"
	"sqlite-provider/internal/provider"
	"sqlite-provider/internal/state"
)

const defaultConfigDir = "./sqlite-config"

// configFlags are the flags shared by commands that read YAML configuration.
type configFlags struct {
	configDir          string
	allowUnknownFields bool
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configDir, "config-dir", defaultConfigDir, "Path to configuration directory")
	cmd.Flags().BoolVar(&f.allowUnknownFields, "allow-unknown-fields", false, "Allow unknown YAML fields in declarative config")
}

func (f *configFlags) load() (*declarative.DesiredState, error) {
	desired, err := declarative.LoadDirectoryWithOptions(f.configDir, declarative.LoadOptions{
		AllowUnknownFields: f.allowUnknownFields,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return desired, nil
}

// loadValid loads and validates the configuration, listing every
// validation error on w.
func (f *configFlags) loadValid(w io.Writer) (*declarative.DesiredState, error) {
	desired, err := f.load()
	if err != nil {
		return nil, err
	}
	if errs := declarative.Validate(desired); len(errs) > 0 {
		fmt.Fprintf(w, "Configuration has %d validation error(s):\n", len(errs))
		for _, ve := range errs {
			fmt.Fprintf(w, "  - %s\n", ve.Error())
		}
		return nil, &exitError{code: 1, err: fmt.Errorf("configuration has %d validation error(s)", len(errs))}
	}
	return desired, nil
}

// loadProviderOnly reads the configuration for its Provider document alone.
// A missing directory yields an empty state.
func (f *configFlags) loadProviderOnly() (*declarative.DesiredState, error) {
	desired, err := f.load()
	if errors.Is(err, fs.ErrNotExist) {
		return &declarative.DesiredState{}, nil
	}
	return desired, err
}

func openState(ctx context.Context, g *globals) (*state.Store, error) {
	store, err := state.Open(ctx, g.statePath)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	return store, nil
}

// configureProvider builds a provider and runs Configure with the Provider
// document, if any.
func configureProvider(ctx context.Context, g *globals, desired *declarative.DesiredState, w io.Writer) (*provider.Provider, error) {
	p := provider.New(provider.WithLogger(g.logger), provider.WithEnvLookup(g.cfg.LookupEnv))
	cfg := attr.Map{}
	if desired.Provider != nil {
		cfg = desired.Provider.Attributes()
	}
	diags := p.Configure(ctx, cfg)
	printDiagnostics(w, diags)
	if diags.HasError() {
		_ = p.Close()
		return nil, fmt.Errorf("configure provider: %w", diags.Err())
	}
	return p, nil
}

func printDiagnostics(w io.Writer, diags diag.Diagnostics) {
	for _, d := range diags {
		fmt.Fprintf(w, "  %s\n", d.String())
	}
}

// applyOptions controls executePlan.
type applyOptions struct {
	command     string
	autoApprove bool
	noColor     bool
	parallelism int
}

// executePlan prints plan, asks for confirmation and applies it, recording
// a run in the state store.
func executePlan(cmd *cobra.Command, g *globals, store *state.Store, desired *declarative.DesiredState, plan *declarative.Plan, opts applyOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	jsonOut := getOutputFormat(cmd) == "json"

	if !jsonOut {
		declarative.FormatText(out, plan, opts.noColor)
	}
	if len(plan.Errors) > 0 {
		return fmt.Errorf("plan has %d error(s)", len(plan.Errors))
	}
	if len(plan.Actions) == 0 {
		if jsonOut {
			return printJSON(out, applyReport{Steps: []stepReport{}})
		}
		return nil
	}

	if !opts.autoApprove {
		ok, err := confirm(cmd, fmt.Sprintf("Do you want to %s these changes?", opts.command))
		if err != nil {
			return err
		}
		if !ok {
			_, _ = fmt.Fprintf(out, "%s cancelled.\n", opts.command)
			return nil
		}
	}

	p, err := configureProvider(ctx, g, desired, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer p.Close() //nolint:errcheck

	runID, err := store.BeginRun(ctx, opts.command)
	if err != nil {
		return err
	}
	applier := &declarative.Applier{
		Provider:    p,
		Store:       store,
		Logger:      g.logger.With("run_id", runID),
		Parallelism: opts.parallelism,
		RunID:       runID,
	}
	res := applier.Apply(ctx, plan)
	if err := store.FinishRun(ctx, runID, res.Succeeded, res.Failed+res.Skipped); err != nil {
		g.logger.Warn("record run outcome", "run_id", runID, "error", err)
	}

	report := newApplyReport(runID, res)
	if jsonOut {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		printApplyText(out, report)
	}

	if res.HasErrors() {
		return &exitError{code: 1, err: fmt.Errorf("%s finished with %d failed and %d skipped step(s)", opts.command, res.Failed, res.Skipped)}
	}
	return nil
}

type stepReport struct {
	Phase       string           `json:"phase"`
	Resource    string           `json:"resource"`
	Status      string           `json:"status"`
	Result      string           `json:"result"`
	DurationMS  int64            `json:"duration_ms"`
	Diagnostics diag.Diagnostics `json:"diagnostics,omitempty"`
}

type applyReport struct {
	RunID     string       `json:"run_id,omitempty"`
	Steps     []stepReport `json:"steps"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
}

func newApplyReport(runID string, res *declarative.ApplyResult) applyReport {
	r := applyReport{
		RunID:     runID,
		Steps:     make([]stepReport, 0, len(res.Steps)),
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Skipped:   res.Skipped,
	}
	for _, s := range res.Steps {
		result := "succeeded"
		switch {
		case s.Skipped:
			result = "skipped"
		case s.Failed():
			result = "failed"
		}
		r.Steps = append(r.Steps, stepReport{
			Phase:       string(s.Phase),
			Resource:    s.Action.Key(),
			Status:      s.Status.String(),
			Result:      result,
			DurationMS:  s.Duration.Milliseconds(),
			Diagnostics: s.Diagnostics,
		})
	}
	return r
}

func printApplyText(w io.Writer, r applyReport) {
	_, _ = fmt.Fprintln(w)
	for _, s := range r.Steps {
		_, _ = fmt.Fprintf(w, "  %s %s ... %s", s.Phase, s.Resource, s.Result)
		if s.Result == "succeeded" {
			_, _ = fmt.Fprintf(w, " (%s)", time.Duration(s.DurationMS)*time.Millisecond)
		}
		_, _ = fmt.Fprintln(w)
		if s.Result != "succeeded" {
			printDiagnostics(w, s.Diagnostics)
		}
	}
	_, _ = fmt.Fprintf(w, "\nApply complete: %d succeeded, %d failed, %d skipped.\n", r.Succeeded, r.Failed, r.Skipped)
}
