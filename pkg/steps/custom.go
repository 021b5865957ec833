package steps

import (
	"context"
	"fmt"
	"sync"

	"github.com/petrijr/appinstall/pkg/api"
	"github.com/petrijr/appinstall/pkg/config"
)

const CustomInstallationStepName = "custom-installation"

// ScriptFunc implements a custom installation script.
type ScriptFunc func(ctx context.Context, cfg *config.AppConfig, ec api.ExecutionContext) (any, error)

// ScriptRegistry maps script names referenced by the configuration to their
// implementations.
type ScriptRegistry struct {
	mu      sync.RWMutex
	scripts map[string]ScriptFunc
}

// NewScriptRegistry creates an empty registry.
func NewScriptRegistry() *ScriptRegistry {
	return &ScriptRegistry{scripts: make(map[string]ScriptFunc)}
}

// Register adds a script. Names must be unique.
func (r *ScriptRegistry) Register(name string, fn ScriptFunc) error {
	if name == "" {
		return fmt.Errorf("script name is required")
	}
	if fn == nil {
		return fmt.Errorf("script %q has nil function", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.scripts[name]; exists {
		return fmt.Errorf("script already registered: %s", name)
	}
	r.scripts[name] = fn
	return nil
}

// Lookup returns the script registered under name.
func (r *ScriptRegistry) Lookup(name string) (ScriptFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.scripts[name]
	return fn, ok
}

// CustomInstallationStep runs the application's custom installation scripts
// in configuration order. Its result maps each step name to the script output.
var CustomInstallationStep = api.DefineLeafStep(api.LeafStepOptions{
	Name: CustomInstallationStepName,
	Meta: api.StepMeta{
		Label:       "Custom installation steps",
		Description: "Runs the application's custom installation scripts",
	},
	When: func(cfg *config.AppConfig) bool { return cfg.HasCustomInstallationSteps() },
	Run:  runCustomInstallation,
})

func runCustomInstallation(ctx context.Context, cfg *config.AppConfig, ec api.ExecutionContext) (any, error) {
	registry, ok := ScriptRegistryKey.Get(ec)
	if !ok {
		return nil, api.NewValidationError("no script registry available for custom installation steps")
	}

	// Resolve every script before running any of them.
	custom := cfg.Installation.CustomSteps
	fns := make([]ScriptFunc, len(custom))
	for i, cs := range custom {
		fn, ok := registry.Lookup(cs.Script)
		if !ok {
			return nil, api.NewValidationError("custom installation step %q references unknown script %q", cs.Name, cs.Script)
		}
		fns[i] = fn
	}

	results := make(map[string]any, len(custom))
	for i, cs := range custom {
		ec.Log().InfoContext(ctx, "running custom installation script", "step", cs.Name, "script", cs.Script)
		out, err := fns[i](ctx, cfg, ec)
		if err != nil {
			return nil, fmt.Errorf("custom installation step %q: %w", cs.Name, err)
		}
		results[cs.Name] = out
	}
	return results, nil
}
