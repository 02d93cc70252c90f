package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/hostconform/hostconform/pkg/observe"
)

// Package is the Rego package all prune policies live in. Modules loaded
// into the engine must declare it; they merge into a single ruleset.
const Package = "hostconform.prune"

const pruneQuery = "data." + Package + ".allow"
const reasonQuery = "data." + Package + ".reason"

// Engine evaluates Rego prune policies. It implements reconcile.Pruner: a
// Remove step for an extra observed item is only planned when the loaded
// policies allow it. With nothing but the builtin policy loaded every
// removal is denied.
type Engine struct {
	mu       sync.RWMutex
	modules  map[string]string
	prepared *rego.PreparedEvalQuery
	reason   *rego.PreparedEvalQuery
	logger   zerolog.Logger
}

// NewEngine creates a prune policy engine with the builtin default-deny
// policy loaded.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		modules: make(map[string]string),
		logger:  logger.With().Str("component", "prune-policy").Logger(),
	}
	if err := e.LoadModule("builtin.rego", builtinPolicy); err != nil {
		return nil, fmt.Errorf("loading builtin prune policy: %w", err)
	}
	return e, nil
}

// LoadModule adds a Rego module to the engine. The module must parse and
// must declare the prune package.
func (e *Engine) LoadModule(name, source string) error {
	module, err := ast.ParseModule(name, source)
	if err != nil {
		return fmt.Errorf("parsing policy %s: %w", name, err)
	}
	if pkg := strings.TrimPrefix(module.Package.Path.String(), "data."); pkg != Package {
		return fmt.Errorf("policy %s declares package %s, want %s", name, pkg, Package)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.modules[name] = source
	e.prepared = nil
	e.reason = nil
	e.logger.Debug().Str("policy", name).Msg("Prune policy loaded")
	return nil
}

// LoadDir loads every *.rego file in a directory.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading policy dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".rego" {
			continue
		}
		source, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading policy %s: %w", entry.Name(), err)
		}
		if err := e.LoadModule(entry.Name(), string(source)); err != nil {
			return err
		}
	}
	return nil
}

// AllowPrune evaluates the loaded policies against one extra observed item.
func (e *Engine) AllowPrune(ctx context.Context, item observe.Item) (bool, string, error) {
	input := map[string]interface{}{
		"domain": item.Domain.String(),
		"id":     item.ID,
		"key":    item.Key(),
		"attrs":  item.Attrs,
	}

	allowQ, reasonQ, err := e.queries(ctx)
	if err != nil {
		return false, "", err
	}

	results, err := allowQ.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, "", fmt.Errorf("prune policy evaluation: %w", err)
	}
	allowed := false
	if len(results) > 0 && len(results[0].Expressions) > 0 {
		allowed, _ = results[0].Expressions[0].Value.(bool)
	}
	if !allowed {
		return false, "denied by prune policy", nil
	}

	reason := "allowed by prune policy"
	if rs, err := reasonQ.Eval(ctx, rego.EvalInput(input)); err == nil &&
		len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if s, ok := rs[0].Expressions[0].Value.(string); ok && s != "" {
			reason = s
		}
	}

	e.logger.Info().Str("key", item.Key()).Str("reason", reason).Msg("Prune authorized by policy")
	return true, reason, nil
}

// queries compiles the loaded modules into prepared queries, reusing the
// previous compilation until a new module is loaded.
func (e *Engine) queries(ctx context.Context) (rego.PreparedEvalQuery, rego.PreparedEvalQuery, error) {
	e.mu.RLock()
	if e.prepared != nil && e.reason != nil {
		allow, reason := *e.prepared, *e.reason
		e.mu.RUnlock()
		return allow, reason, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.prepared != nil && e.reason != nil {
		return *e.prepared, *e.reason, nil
	}

	allow, err := e.prepare(ctx, pruneQuery)
	if err != nil {
		return rego.PreparedEvalQuery{}, rego.PreparedEvalQuery{}, err
	}
	reason, err := e.prepare(ctx, reasonQuery)
	if err != nil {
		return rego.PreparedEvalQuery{}, rego.PreparedEvalQuery{}, err
	}
	e.prepared, e.reason = &allow, &reason
	return allow, reason, nil
}

func (e *Engine) prepare(ctx context.Context, query string) (rego.PreparedEvalQuery, error) {
	opts := []func(*rego.Rego){rego.Query(query)}
	for name, source := range e.modules {
		opts = append(opts, rego.Module(name, source))
	}
	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("compiling prune policies: %w", err)
	}
	return prepared, nil
}
