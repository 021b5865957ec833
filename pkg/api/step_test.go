package api

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/appinstall/pkg/config"
)

func noop(context.Context, *config.AppConfig, ExecutionContext) (any, error) { return nil, nil }

func TestDefineLeafStep(t *testing.T) {
	l := DefineLeafStep(LeafStepOptions{
		Name: "leaf",
		Meta: StepMeta{Label: "Leaf"},
		Run: func(context.Context, *config.AppConfig, ExecutionContext) (any, error) {
			return "done", nil
		},
	})

	assert.Equal(t, "leaf", l.Name())
	assert.Equal(t, "Leaf", l.Meta().Label)
	assert.Equal(t, StepKindLeaf, l.Kind())
	assert.True(t, IsLeafStep(l))
	assert.False(t, IsBranchStep(l))
	assert.True(t, l.Enabled(nil), "a step without guard is always enabled")

	out, err := l.Run(context.Background(), nil, ExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestDefineBranchStep_RejectsDuplicateNames(t *testing.T) {
	_, err := DefineBranchStep(BranchStepOptions{
		Name: "root",
		Children: []Step{
			DefineLeafStep(LeafStepOptions{Name: "a", Run: noop}),
			DefineLeafStep(LeafStepOptions{Name: "a", Run: noop}),
		},
	})
	assert.ErrorIs(t, err, ErrDuplicateStepName)
}

func TestDefineBranchStep_RejectsInvalidChildren(t *testing.T) {
	_, err := DefineBranchStep(BranchStepOptions{Name: "root", Children: []Step{nil}})
	assert.Error(t, err)

	_, err = DefineBranchStep(BranchStepOptions{
		Name:     "root",
		Children: []Step{DefineLeafStep(LeafStepOptions{Run: noop})},
	})
	assert.Error(t, err)

	assert.Panics(t, func() {
		MustDefineBranchStep(BranchStepOptions{Name: "root", Children: []Step{nil}})
	})
}

func TestBranchStep_IsImmutable(t *testing.T) {
	a := DefineLeafStep(LeafStepOptions{Name: "a", Run: noop})
	b := DefineLeafStep(LeafStepOptions{Name: "b", Run: noop})

	input := []Step{a}
	root := MustDefineBranchStep(BranchStepOptions{Name: "root", Children: input})
	input[0] = b
	assert.Same(t, a, root.Children()[0])

	children := root.Children()
	children[0] = b
	assert.Same(t, a, root.Children()[0])

	extended, err := root.WithChildren(b)
	require.NoError(t, err)
	assert.Len(t, root.Children(), 1)
	assert.Len(t, extended.Children(), 2)
	assert.Equal(t, "root", extended.Name())

	_, err = root.WithChildren(DefineLeafStep(LeafStepOptions{Name: "a", Run: noop}))
	assert.ErrorIs(t, err, ErrDuplicateStepName)

	got, ok := extended.Child("b")
	assert.True(t, ok)
	assert.Same(t, b, got)
	_, ok = extended.Child("missing")
	assert.False(t, ok)
}

func TestBranchStep_DeriveContext(t *testing.T) {
	key := NewContextKey[int]("answer")
	parent := NewExecutionContext(AppData{ProjectID: "p"}, nil, nil)

	plain := MustDefineBranchStep(BranchStepOptions{Name: "plain"})
	same, err := plain.DeriveContext(nil, parent)
	require.NoError(t, err)
	_, ok := key.Get(same)
	assert.False(t, ok)

	binding := MustDefineBranchStep(BranchStepOptions{
		Name: "binding",
		Context: func(_ *config.AppConfig, ec ExecutionContext) ([]ContextBinding, error) {
			return []ContextBinding{key.Bind(42)}, nil
		},
	})
	derived, err := binding.DeriveContext(nil, parent)
	require.NoError(t, err)
	v, err := key.MustGet(derived)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, "p", derived.App.ProjectID)

	_, ok = key.Get(parent)
	assert.False(t, ok, "the parent context is not modified")

	failing := MustDefineBranchStep(BranchStepOptions{
		Name: "failing",
		Context: func(*config.AppConfig, ExecutionContext) ([]ContextBinding, error) {
			return nil, errors.New("no client")
		},
	})
	_, err = failing.DeriveContext(nil, parent)
	assert.EqualError(t, err, "no client")
}

func TestContextKey_TypeMismatch(t *testing.T) {
	asString := NewContextKey[string]("shared")
	asInt := NewContextKey[int]("shared")

	ec := ExecutionContext{}.With(asString.Bind("text"))
	_, ok := asInt.Get(ec)
	assert.False(t, ok)

	_, err := asInt.MustGet(ec)
	assert.ErrorContains(t, err, `"shared"`)
}

func TestNewExecutionContext_DefaultsLogger(t *testing.T) {
	ec := NewExecutionContext(AppData{}, nil, nil)
	assert.NotNil(t, ec.Logger)
	assert.NotNil(t, ExecutionContext{}.Log())
}
