package appinstall

import (
	"sync"
	"time"

	"github.com/petrijr/appinstall/pkg/api"
	"github.com/petrijr/appinstall/pkg/config"
	"github.com/petrijr/appinstall/pkg/steps"
)

// RootStepName is the name of the root installation branch.
const RootStepName = "installation"

var builtinRoot = sync.OnceValue(func() *api.BranchStep {
	return api.MustDefineBranchStep(api.BranchStepOptions{
		Name: RootStepName,
		Meta: api.StepMeta{
			Label:       "Installation",
			Description: "Configures the application in its workspace",
		},
		Children: steps.BuiltinSteps(),
	})
})

// CreateRootInstallationStep returns the root installation branch: the
// built-in eventing, webhooks and custom installation steps followed by
// extra.
//
// Without extra steps the shared built-in root is returned. With extra steps
// a new branch is built; the shared root is never modified. Extra steps whose
// names collide with a built-in step are rejected with api.ErrDuplicateStepName.
//
//	root, err := appinstall.CreateRootInstallationStep(
//	    api.DefineLeafStep(api.LeafStepOptions{
//	        Name: "seed-catalog",
//	        Meta: api.StepMeta{Label: "Seed catalog"},
//	        Run:  seedCatalog,
//	    }),
//	)
func CreateRootInstallationStep(extra ...api.Step) (*api.BranchStep, error) {
	root := builtinRoot()
	if len(extra) == 0 {
		return root, nil
	}
	return root.WithChildren(extra...)
}

// CreateInstallationPlan builds the root step for extra and returns the plan
// a run against cfg would follow. The plan can be rendered as a dry run
// before being passed to RunInstallation.
func CreateInstallationPlan(cfg *config.AppConfig, extra ...api.Step) (*api.InstallationPlan, error) {
	root, err := CreateRootInstallationStep(extra...)
	if err != nil {
		return nil, err
	}
	return api.NewPlan(root, cfg, time.Now().UTC()), nil
}
