package api

import (
	"slices"
	"strings"
)

// StepState is the execution status of a single step.
type StepState string

const (
	StepPending    StepState = "pending"
	StepInProgress StepState = "in-progress"
	StepSucceeded  StepState = "succeeded"
	StepFailed     StepState = "failed"
	StepSkipped    StepState = "skipped"
)

// StepStatus is the observable shadow of a step in the tree being executed.
type StepStatus struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Path     []string      `json:"path"`
	Status   StepState     `json:"status"`
	Meta     StepMeta      `json:"meta"`
	IsLeaf   bool          `json:"isLeaf"`
	Children []*StepStatus `json:"children,omitempty"`
}

// PathString returns the path joined with dots.
func (s *StepStatus) PathString() string {
	return strings.Join(s.Path, ".")
}

// Child returns the direct child with the given name.
func (s *StepStatus) Child(name string) *StepStatus {
	for _, c := range s.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Find returns the node at path, where path includes the receiver's own name.
func (s *StepStatus) Find(path []string) *StepStatus {
	if s == nil || len(path) == 0 || path[0] != s.Name {
		return nil
	}
	node := s
	for _, name := range path[1:] {
		node = node.Child(name)
		if node == nil {
			return nil
		}
	}
	return node
}

// Walk calls fn for every node depth-first, parents before children.
func (s *StepStatus) Walk(fn func(*StepStatus)) {
	if s == nil {
		return
	}
	fn(s)
	for _, c := range s.Children {
		c.Walk(fn)
	}
}

// SetSubtree sets the status of the node and all its descendants.
func (s *StepStatus) SetSubtree(status StepState) {
	s.Walk(func(n *StepStatus) { n.Status = status })
}

// Clone returns a deep copy.
func (s *StepStatus) Clone() *StepStatus {
	if s == nil {
		return nil
	}
	out := *s
	out.Path = slices.Clone(s.Path)
	if s.Children != nil {
		out.Children = make([]*StepStatus, len(s.Children))
		for i, c := range s.Children {
			out.Children[i] = c.Clone()
		}
	}
	return &out
}
