package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/petrijr/appinstall/pkg/config"
)

// ErrDuplicateStepName is returned when two siblings share a name.
var ErrDuplicateStepName = errors.New("duplicate step name")

// StepKind discriminates the two step variants.
type StepKind string

const (
	StepKindLeaf   StepKind = "leaf"
	StepKindBranch StepKind = "branch"
)

// StepMeta is display-only information about a step.
type StepMeta struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// WhenFunc decides whether a step participates for the given configuration.
type WhenFunc func(cfg *config.AppConfig) bool

// RunFunc performs the work of a leaf step. The returned value must be
// JSON-serializable and is stored in its generic JSON form (see
// NormalizeResult); a nil value contributes nothing to the run data.
type RunFunc func(ctx context.Context, cfg *config.AppConfig, ec ExecutionContext) (any, error)

// ContextFunc derives the context fields a branch contributes to its
// descendants. ec is the context inherited from the parent.
type ContextFunc func(cfg *config.AppConfig, ec ExecutionContext) ([]ContextBinding, error)

// Step is either a *LeafStep or a *BranchStep.
type Step interface {
	Name() string
	Meta() StepMeta
	Kind() StepKind
	// Enabled evaluates the step guard. Steps without a guard always run.
	Enabled(cfg *config.AppConfig) bool

	sealed()
}

type stepBase struct {
	name string
	meta StepMeta
	when WhenFunc
}

func (s *stepBase) Name() string   { return s.name }
func (s *stepBase) Meta() StepMeta { return s.meta }

func (s *stepBase) Enabled(cfg *config.AppConfig) bool {
	return s.when == nil || s.when(cfg)
}

func (s *stepBase) sealed() {}

// LeafStep runs a function.
type LeafStep struct {
	stepBase
	run RunFunc
}

func (*LeafStep) Kind() StepKind { return StepKindLeaf }

// Run invokes the leaf function.
func (l *LeafStep) Run(ctx context.Context, cfg *config.AppConfig, ec ExecutionContext) (any, error) {
	if l.run == nil {
		return nil, nil
	}
	return l.run(ctx, cfg, ec)
}

// BranchStep groups child steps and may contribute context to them.
type BranchStep struct {
	stepBase
	context  ContextFunc
	children []Step
}

func (*BranchStep) Kind() StepKind { return StepKindBranch }

// Children returns a copy of the child list.
func (b *BranchStep) Children() []Step {
	out := make([]Step, len(b.children))
	copy(out, b.children)
	return out
}

// Child returns the direct child with the given name.
func (b *BranchStep) Child(name string) (Step, bool) {
	for _, c := range b.children {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// DeriveContext merges the bindings produced by the branch's ContextFunc into
// a copy of parent. Branches without a ContextFunc return parent unchanged.
func (b *BranchStep) DeriveContext(cfg *config.AppConfig, parent ExecutionContext) (ExecutionContext, error) {
	if b.context == nil {
		return parent, nil
	}
	bindings, err := b.context(cfg, parent)
	if err != nil {
		return parent, err
	}
	return parent.With(bindings...), nil
}

// LeafStepOptions configures DefineLeafStep.
type LeafStepOptions struct {
	Name string
	Meta StepMeta
	When WhenFunc
	Run  RunFunc
}

// BranchStepOptions configures DefineBranchStep.
type BranchStepOptions struct {
	Name     string
	Meta     StepMeta
	When     WhenFunc
	Context  ContextFunc
	Children []Step
}

// DefineLeafStep builds a leaf step. The run function is stored as-is.
func DefineLeafStep(opts LeafStepOptions) *LeafStep {
	return &LeafStep{
		stepBase: stepBase{name: opts.Name, meta: opts.Meta, when: opts.When},
		run:      opts.Run,
	}
}

// DefineBranchStep builds a branch step. Children may be empty, but their
// names must be non-empty and unique.
func DefineBranchStep(opts BranchStepOptions) (*BranchStep, error) {
	seen := make(map[string]struct{}, len(opts.Children))
	for i, c := range opts.Children {
		if c == nil {
			return nil, fmt.Errorf("branch %q: child %d is nil", opts.Name, i)
		}
		if c.Name() == "" {
			return nil, fmt.Errorf("branch %q: child %d has an empty name", opts.Name, i)
		}
		if _, dup := seen[c.Name()]; dup {
			return nil, fmt.Errorf("branch %q: %w: %s", opts.Name, ErrDuplicateStepName, c.Name())
		}
		seen[c.Name()] = struct{}{}
	}

	children := make([]Step, len(opts.Children))
	copy(children, opts.Children)

	return &BranchStep{
		stepBase: stepBase{name: opts.Name, meta: opts.Meta, when: opts.When},
		context:  opts.Context,
		children: children,
	}, nil
}

// MustDefineBranchStep is like DefineBranchStep but panics on error.
// Useful for package-level step declarations.
func MustDefineBranchStep(opts BranchStepOptions) *BranchStep {
	b, err := DefineBranchStep(opts)
	if err != nil {
		panic(err)
	}
	return b
}

// WithChildren returns a new branch with extra appended after the existing
// children. The receiver is not modified.
func (b *BranchStep) WithChildren(extra ...Step) (*BranchStep, error) {
	children := make([]Step, 0, len(b.children)+len(extra))
	children = append(children, b.children...)
	children = append(children, extra...)
	return DefineBranchStep(BranchStepOptions{
		Name:     b.name,
		Meta:     b.meta,
		When:     b.when,
		Context:  b.context,
		Children: children,
	})
}

// IsLeafStep reports whether s is a leaf.
func IsLeafStep(s Step) bool {
	_, ok := s.(*LeafStep)
	return ok
}

// IsBranchStep reports whether s is a branch.
func IsBranchStep(s Step) bool {
	_, ok := s.(*BranchStep)
	return ok
}
