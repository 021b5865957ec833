package appinstall

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/appinstall/internal/engine"
	"github.com/petrijr/appinstall/internal/persistence"
	"github.com/petrijr/appinstall/pkg/api"
	"github.com/petrijr/appinstall/pkg/config"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Step               = api.Step
	LeafStep           = api.LeafStep
	BranchStep         = api.BranchStep
	StepMeta           = api.StepMeta
	ExecutionContext   = api.ExecutionContext
	AppData            = api.AppData
	InstallationPlan   = api.InstallationPlan
	InstallationState  = api.InstallationState
	InstallationError  = api.InstallationError
	InstallationStatus = api.InstallationStatus
	StepStatus         = api.StepStatus
	StepEvent          = api.StepEvent
	Hooks              = api.Hooks
	HookFuncs          = api.HookFuncs
	StateStore         = api.StateStore
	StoreOption        = persistence.Option
)

var (
	DefineLeafStep       = api.DefineLeafStep
	DefineBranchStep     = api.DefineBranchStep
	NewExecutionContext  = api.NewExecutionContext
	NewCompositeHooks    = api.NewCompositeHooks
	NewLoggingHooks      = api.NewLoggingHooks
	NewPersistingHooks   = api.NewPersistingHooks
	NewInstallationError = api.NewInstallationError
)

const (
	StatusPending    = api.InstallationPending
	StatusInProgress = api.InstallationInProgress
	StatusSucceeded  = api.InstallationSucceeded
	StatusFailed     = api.InstallationFailed
)

// Store options.

var (
	WithTTL       = persistence.WithTTL
	WithKeyPrefix = persistence.WithKeyPrefix
	WithLogger    = persistence.WithLogger
)

// State store constructors.
// These wrap the internal/persistence package so external callers
// never need to import internal packages.

// NewInMemoryStateStore returns a non-durable StateStore, best for tests and
// single-process tools.
func NewInMemoryStateStore(opts ...StoreOption) StateStore {
	return persistence.NewStateStore(persistence.NewInMemoryKV(), opts...)
}

// NewRedisStateStore returns a StateStore that keeps states in Redis with a
// native key expiry.
func NewRedisStateStore(client *redis.Client, opts ...StoreOption) StateStore {
	return persistence.NewStateStore(persistence.NewRedisKV(client), opts...)
}

// NewSQLiteStateStore returns a StateStore backed by a SQLite database.
func NewSQLiteStateStore(db *sql.DB, opts ...StoreOption) (StateStore, error) {
	kv, err := persistence.NewSQLiteKV(db)
	if err != nil {
		return nil, err
	}
	return persistence.NewStateStore(kv, opts...), nil
}

// NewPostgresStateStore returns a StateStore backed by PostgreSQL.
func NewPostgresStateStore(db *sql.DB, opts ...StoreOption) (StateStore, error) {
	kv, err := persistence.NewPostgresKV(db)
	if err != nil {
		return nil, err
	}
	return persistence.NewStateStore(kv, opts...), nil
}

// NewMongoStateStore returns a StateStore backed by a MongoDB collection
// with a TTL index.
func NewMongoStateStore(ctx context.Context, db *mongo.Database, opts ...StoreOption) (StateStore, error) {
	kv, err := persistence.NewMongoKV(ctx, db, "")
	if err != nil {
		return nil, err
	}
	return persistence.NewStateStore(kv, opts...), nil
}

// RunOptions configures RunInstallation.
type RunOptions struct {
	// InstallationContext is the base execution context. Bind a
	// steps.ClientFactory under steps.ClientFactoryKey when the built-in
	// eventing or webhooks steps will run.
	InstallationContext ExecutionContext
	Config              *config.AppConfig
	// Plan must have been created from Config and ExtraSteps.
	Plan       *InstallationPlan
	ExtraSteps []Step
	Hooks      Hooks
}

// RunInstallation executes a plan and returns its terminal state.
//
// A failing step does not make RunInstallation return an error: the returned
// state has StatusFailed and describes the failure. Errors are returned for
// plan mismatches and for failing hooks.
func RunInstallation(ctx context.Context, opts RunOptions) (*InstallationState, error) {
	if opts.Plan == nil {
		return nil, errors.New("appinstall: plan is required")
	}
	if opts.Config == nil {
		return nil, errors.New("appinstall: config is required")
	}

	root, err := CreateRootInstallationStep(opts.ExtraSteps...)
	if err != nil {
		return nil, err
	}

	exec := engine.NewExecutor(engine.Config{Hooks: opts.Hooks})
	return exec.Execute(ctx, root, opts.Plan, opts.Config, opts.InstallationContext)
}

// Installer bundles a StateStore, hooks and extra steps for callers that
// plan, run and poll installations from separate requests.
type Installer struct {
	Store      StateStore
	Hooks      Hooks
	ExtraSteps []Step
}

// Plan creates a plan for cfg and stores its pending state.
func (i *Installer) Plan(ctx context.Context, cfg *config.AppConfig) (*InstallationPlan, error) {
	plan, err := CreateInstallationPlan(cfg, i.ExtraSteps...)
	if err != nil {
		return nil, err
	}
	if err := i.Store.Save(ctx, api.NewPendingState(plan)); err != nil {
		return nil, fmt.Errorf("save pending installation %s: %w", plan.ID, err)
	}
	return plan, nil
}

// Run executes plan, checkpointing every transition to the store.
func (i *Installer) Run(ctx context.Context, ec ExecutionContext, cfg *config.AppConfig, plan *InstallationPlan) (*InstallationState, error) {
	return RunInstallation(ctx, RunOptions{
		InstallationContext: ec,
		Config:              cfg,
		Plan:                plan,
		ExtraSteps:          i.ExtraSteps,
		Hooks:               NewCompositeHooks(NewPersistingHooks(i.Store), i.Hooks),
	})
}

// Status returns the stored state of an installation, or nil if unknown.
func (i *Installer) Status(ctx context.Context, id string) (*InstallationState, error) {
	return i.Store.Get(ctx, id)
}
