package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/appinstall/pkg/config"
)

// NewPlan builds the plan for root under cfg: steps whose guard rejects cfg
// are left out together with their subtrees, and every remaining node is
// pending.
func NewPlan(root Step, cfg *config.AppConfig, now time.Time) *InstallationPlan {
	return &InstallationPlan{
		ID:        uuid.NewString(),
		Step:      planStatus(root, cfg, nil),
		CreatedAt: now,
	}
}

func planStatus(step Step, cfg *config.AppConfig, parent []string) *StepStatus {
	node := newStatusNode(step, parent, StepPending, uuid.NewString())
	if b, ok := step.(*BranchStep); ok {
		for _, c := range b.children {
			if !c.Enabled(cfg) {
				continue
			}
			node.Children = append(node.Children, planStatus(c, cfg, node.Path))
		}
	}
	return node
}

// RunStatus derives the status tree for executing root against plan. Node ids
// are taken from the plan; steps the plan left out (rejected by their guard)
// are included as skipped. It fails with ErrPlanMismatch when the plan holds
// a step root does not.
func RunStatus(root Step, plan *InstallationPlan) (*StepStatus, error) {
	if plan == nil || plan.Step == nil {
		return nil, fmt.Errorf("%w: plan is empty", ErrPlanMismatch)
	}
	if plan.Step.Name != root.Name() {
		return nil, fmt.Errorf("%w: plan root %q, tree root %q", ErrPlanMismatch, plan.Step.Name, root.Name())
	}
	return runStatus(root, plan.Step, nil)
}

func runStatus(step Step, planned *StepStatus, parent []string) (*StepStatus, error) {
	if planned == nil {
		node := skippedStatus(step, parent)
		return node, nil
	}

	node := newStatusNode(step, parent, StepPending, planned.ID)
	b, ok := step.(*BranchStep)
	if !ok {
		if len(planned.Children) > 0 {
			return nil, fmt.Errorf("%w: %s is a leaf but the plan has children", ErrPlanMismatch, node.PathString())
		}
		return node, nil
	}

	for _, pc := range planned.Children {
		if _, ok := b.Child(pc.Name); !ok {
			return nil, fmt.Errorf("%w: unknown step %s.%s", ErrPlanMismatch, node.PathString(), pc.Name)
		}
	}
	for _, c := range b.children {
		child, err := runStatus(c, planned.Child(c.Name()), node.Path)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func skippedStatus(step Step, parent []string) *StepStatus {
	node := newStatusNode(step, parent, StepSkipped, uuid.NewString())
	if b, ok := step.(*BranchStep); ok {
		for _, c := range b.children {
			node.Children = append(node.Children, skippedStatus(c, node.Path))
		}
	}
	return node
}

func newStatusNode(step Step, parent []string, status StepState, id string) *StepStatus {
	path := make([]string, 0, len(parent)+1)
	path = append(path, parent...)
	path = append(path, step.Name())
	return &StepStatus{
		ID:     id,
		Name:   step.Name(),
		Path:   path,
		Status: status,
		Meta:   step.Meta(),
		IsLeaf: IsLeafStep(step),
	}
}
