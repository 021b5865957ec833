// Package api contains the core building blocks of the installation engine.
// It provides the primitives for declaring step trees, the records produced
// while executing them, and the hooks used to observe a run.
//
// Most users interact with the higher-level appinstall package, which
// re-exports selected types and helpers from this package. The api package is
// intended for custom steps, custom hooks and contributors extending the
// engine itself.
//
// # Steps
//
// A step is either a leaf or a branch:
//
//   - A LeafStep performs work through its run function and may return a
//     result. Results are stored in the installation data at the step's path.
//   - A BranchStep groups child steps and may contribute typed values to the
//     ExecutionContext seen by its descendants.
//
// Either kind may carry a guard (When) deciding, from the application
// configuration, whether it takes part in an installation. Steps are
// immutable once defined; BranchStep.WithChildren returns an extended copy.
//
// # Execution context
//
// ExecutionContext carries the application identity, a logger and raw
// parameters. Branches extend it with ContextKey bindings:
//
//	var clientKey = api.NewContextKey[*Client]("client")
//
//	branch := api.MustDefineBranchStep(api.BranchStepOptions{
//		Name: "remote",
//		Context: func(cfg *config.AppConfig, ec api.ExecutionContext) ([]api.ContextBinding, error) {
//			return []api.ContextBinding{clientKey.Bind(NewClient(ec.Params))}, nil
//		},
//		Children: children,
//	})
//
// A leaf below that branch reads the client with clientKey.MustGet(ec).
//
// # Plans and states
//
// NewPlan turns a step tree and a configuration into an InstallationPlan, a
// StepStatus tree of the steps that will run. Executing a plan produces an
// InstallationState which moves from pending through in-progress to either
// succeeded or failed.
//
// # Hooks
//
// Hooks receives a callback at each lifecycle transition together with a
// snapshot of the state. LoggingHooks, PersistingHooks and BasicMetrics are
// ready-made implementations; NewCompositeHooks combines several of them.
package api
