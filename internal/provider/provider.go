// Package provider exposes the SQLite resource kinds to a host through the
// configure, create, read and delete lifecycle.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sort"
	"sync"

	"sqlite-provider/internal/attr"
	"sqlite-provider/internal/config"
	"sqlite-provider/internal/db"
	"sqlite-provider/internal/diag"
	"sqlite-provider/internal/domain"
	"sqlite-provider/internal/resource"
)

// Lifecycle is the protocol a host drives. Every failure is reported as
// diagnostics; no call panics or returns a bare error.
type Lifecycle interface {
	Configure(ctx context.Context, cfg attr.Map) diag.Diagnostics
	Create(ctx context.Context, kind string, attrs attr.Map) resource.Response
	Read(ctx context.Context, kind, id string, state attr.Map) resource.Response
	Delete(ctx context.Context, kind, id string, state attr.Map) resource.Response
}

// Provider binds the resource controllers to a single database handle.
type Provider struct {
	logger      *slog.Logger
	lookupEnv   func(string) (string, bool)
	controllers map[string]resource.Controller

	mu        sync.RWMutex
	handle    *db.Handle
	configErr error
}

var _ Lifecycle = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithController registers c, replacing any controller of the same kind.
func WithController(c resource.Controller) Option {
	return func(p *Provider) { p.controllers[c.Kind()] = c }
}

// WithEnvLookup replaces os.LookupEnv when resolving environment fallbacks.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(p *Provider) { p.lookupEnv = fn }
}

// New returns a provider with the table and index kinds registered.
func New(opts ...Option) *Provider {
	p := &Provider{
		logger:    slog.New(slog.DiscardHandler),
		lookupEnv: os.LookupEnv,
		controllers: map[string]resource.Controller{
			resource.KindTable: resource.NewTable(),
			resource.KindIndex: resource.NewIndex(),
		},
		configErr: domain.ErrConfig("provider not configured"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schema describes the provider configuration block.
func (p *Provider) Schema() resource.Schema {
	return resource.Schema{
		Description: "SQLite database connection.",
		Attributes: map[string]*resource.Attribute{
			"path": {
				Type:        attr.KindString,
				Description: "Path to the SQLite database file. Defaults to $" + config.EnvDatabasePath + ".",
			},
		},
	}
}

// ResourceKinds returns the registered kinds in sorted order.
func (p *Provider) ResourceKinds() []string {
	kinds := make([]string, 0, len(p.controllers))
	for k := range p.controllers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Controller returns the controller for kind.
func (p *Provider) Controller(kind string) (resource.Controller, bool) {
	c, ok := p.controllers[kind]
	return c, ok
}

// ResourceSchema returns the attribute schema of kind.
func (p *Provider) ResourceSchema(kind string) (resource.Schema, error) {
	c, ok := p.controllers[kind]
	if !ok {
		return resource.Schema{}, p.unknownKind(kind)
	}
	return c.Schema(), nil
}

// Configure opens the database named by cfg["path"], falling back to the
// SQLITE_PROVIDER_PATH environment variable. A previous handle is closed
// first. On failure the provider stays unconfigured and later calls report
// the configuration error.
func (p *Provider) Configure(ctx context.Context, cfg attr.Map) diag.Diagnostics {
	p.mu.Lock()
	defer p.mu.Unlock()

	var diags diag.Diagnostics
	if p.handle != nil {
		if err := p.handle.Close(); err != nil {
			diags.Warnf("close previous database", "%v", err)
		}
		p.handle = nil
	}

	path, err := p.resolvePath(cfg)
	if err != nil {
		p.configErr = domain.ErrConfig("provider not configured: %v", err)
		diags.AddError("invalid provider configuration", err)
		return diags
	}

	h, err := db.Open(ctx, path, p.logger)
	if err != nil {
		p.configErr = domain.ErrConfig("provider not configured: %v", err)
		diags.AddError(fmt.Sprintf("open database %q", path), err)
		return diags
	}

	p.handle = h
	p.configErr = nil
	p.logger.Info("provider configured", "path", path)
	return diags
}

func (p *Provider) resolvePath(cfg attr.Map) (string, error) {
	if d := p.Schema().Validate(cfg); d.HasError() {
		return "", domain.ErrConfig("%v", d.Err())
	}
	path, err := cfg.OptionalString("path")
	if err != nil {
		return "", domain.ErrConfig("%v", err)
	}
	if path != nil && *path != "" {
		return *path, nil
	}
	if v, ok := p.lookupEnv(config.EnvDatabasePath); ok && v != "" {
		return v, nil
	}
	return "", domain.ErrConfig("path is required: set it in the provider configuration or $%s", config.EnvDatabasePath)
}

// Create implements Lifecycle.
func (p *Provider) Create(ctx context.Context, kind string, attrs attr.Map) resource.Response {
	return p.dispatch(kind, "create", func(c resource.Controller, h *db.Handle) resource.Response {
		return c.Create(ctx, h, attrs)
	})
}

// Read implements Lifecycle.
func (p *Provider) Read(ctx context.Context, kind, id string, state attr.Map) resource.Response {
	return p.dispatch(kind, "read", func(c resource.Controller, h *db.Handle) resource.Response {
		return c.Read(ctx, h, id, state)
	})
}

// Delete implements Lifecycle.
func (p *Provider) Delete(ctx context.Context, kind, id string, state attr.Map) resource.Response {
	return p.dispatch(kind, "delete", func(c resource.Controller, h *db.Handle) resource.Response {
		return c.Delete(ctx, h, id, state)
	})
}

func (p *Provider) dispatch(kind, op string, fn func(resource.Controller, *db.Handle) resource.Response) (resp resource.Response) {
	c, ok := p.controllers[kind]
	if !ok {
		resp.Diagnostics.AddError(op+" resource", p.unknownKind(kind))
		return resp
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.handle == nil {
		resp.Diagnostics.AddError(op+" "+kind, p.configErr)
		return resp
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("controller panic", "kind", kind, "op", op, "panic", r, "stack", string(debug.Stack()))
			resp = resource.Response{}
			resp.Diagnostics.Errorf(op+" "+kind, "internal error: %v", r)
		}
	}()

	resp = fn(c, p.handle)
	if resp.Diagnostics.HasError() {
		p.logger.Warn("resource operation failed", "kind", kind, "op", op, "diagnostics", resp.Diagnostics.String())
	} else {
		p.logger.Debug("resource operation succeeded", "kind", kind, "op", op, "id", resp.ID, "status", resp.Status)
	}
	return resp
}

func (p *Provider) unknownKind(kind string) error {
	return domain.ErrValidation("unknown resource kind %q (supported: %v)", kind, p.ResourceKinds())
}

// Close releases the database handle. The provider must be configured again
// before further use.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return nil
	}
	err := p.handle.Close()
	p.handle = nil
	p.configErr = domain.ErrConfig("provider closed")
	return err
}
