package workflow

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/model/rule"
)

// compiled is one validated, immutable definition snapshot.
type compiled struct {
	config   *Config
	registry *phase.Registry
	rules    *rule.Engine
}

// Holder owns the active workflow definition. Reload re-validates the
// source file and swaps the snapshot atomically; a failed reload leaves
// the previous definition in place. Components that captured an earlier
// snapshot keep it until they are rebuilt.
type Holder struct {
	fs   afero.Fs
	path string

	current atomic.Pointer[compiled]
}

// NewHolder loads, validates and compiles the definition at path
func NewHolder(fs afero.Fs, path string) (*Holder, error) {
	h := &Holder{fs: fs, path: path}
	snap, err := h.compile()
	if err != nil {
		return nil, err
	}
	h.current.Store(snap)
	return h, nil
}

// NewDefaultHolder wraps the built-in definition. Reload is a no-op
// re-validation of the compiled-in tables.
func NewDefaultHolder() (*Holder, error) {
	engine, err := rule.NewEngine(rule.DefaultRules())
	if err != nil {
		return nil, err
	}
	h := &Holder{}
	h.current.Store(&compiled{
		config:   Default(),
		registry: phase.DefaultRegistry(),
		rules:    engine,
	})
	return h, nil
}

// Snapshot returns the active registry and rule engine
func (h *Holder) Snapshot() (*phase.Registry, *rule.Engine) {
	c := h.current.Load()
	return c.registry, c.rules
}

// Config returns the active definition
func (h *Holder) Config() *Config {
	return h.current.Load().config
}

// Reload re-reads the definition from its source. On any load or
// validation error the active snapshot is untouched.
func (h *Holder) Reload() error {
	if h.fs == nil {
		return nil
	}
	snap, err := h.compile()
	if err != nil {
		return fmt.Errorf("workflow: reload: %w", err)
	}
	h.current.Store(snap)
	return nil
}

func (h *Holder) compile() (*compiled, error) {
	cfg, err := Load(h.fs, h.path)
	if err != nil {
		return nil, err
	}
	registry, err := cfg.BuildRegistry()
	if err != nil {
		return nil, err
	}
	rules, err := cfg.BuildRules()
	if err != nil {
		return nil, err
	}
	engine, err := rule.NewEngine(rules)
	if err != nil {
		return nil, err
	}
	return &compiled{config: cfg, registry: registry, rules: engine}, nil
}
