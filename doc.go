// Package appinstall runs application installations as trees of steps.
//
// An installation configures an application in its workspace: it creates
// event providers and registrations, subscribes webhooks and runs the
// application's own installation scripts. Each of these is a step; steps form
// a tree rooted at the "installation" branch.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Step (leaf or branch)
//  2. Plan
//  3. RunInstallation
//  4. Hooks
//  5. StateStore
//
// # Steps
//
// A leaf step does work and may return a result; a branch groups children
// and may extend the ExecutionContext seen by them. Any step may carry a
// guard that decides, from the AppConfig, whether it takes part in a run.
// The built-in steps live in pkg/steps. Applications add their own with
// DefineLeafStep and DefineBranchStep and pass them as extra steps; they run
// after the built-in ones.
//
// # Plans
//
// CreateInstallationPlan evaluates the guards against a configuration and
// returns the tree of steps that will run. A plan can be inspected or
// rendered before anything is executed.
//
// # Running
//
// RunInstallation executes a plan depth-first, one step at a time. Results of
// leaf steps are collected in InstallationState.Data under their full path,
// e.g. data["installation"]["eventing"]["commerce"]. The first failing step
// stops the run; the returned state is then failed and carries an
// InstallationError naming the step. RunInstallation itself only returns an
// error for invalid input or when a hook fails.
//
// # Hooks
//
// Hooks observe every installation and step transition. LoggingHooks,
// PersistingHooks and BasicMetrics are provided; pkg/telemetry adds
// Prometheus metrics and OpenTelemetry tracing. NewCompositeHooks combines
// several of them.
//
// # State stores
//
// A StateStore keeps installation states by id so they can be polled while
// and after a run executes. Backends:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Postgres
//   - Redis
//   - MongoDB
//
// States expire after three hours unless WithTTL says otherwise. Installer
// ties a store to the plan / run / status cycle.
package appinstall
