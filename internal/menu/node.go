// Package menu holds the immutable menu catalog and navigation operations.
package menu

import "strings"

// ActionKind selects what entering a node does.
type ActionKind string

const (
	ActionSubmenu ActionKind = "submenu"
	ActionContent ActionKind = "content"
	ActionFlow    ActionKind = "flow"
	ActionCommand ActionKind = "command"
)

// Action is the node's effect.
type Action struct {
	Kind   ActionKind `yaml:"kind"`
	Target string     `yaml:"target"`
}

// Name returns the target before any ':' argument.
func (a Action) Name() string {
	name, _, _ := strings.Cut(a.Target, ":")
	return name
}

// Arg returns the target's ':' argument, if any.
func (a Action) Arg() string {
	_, arg, _ := strings.Cut(a.Target, ":")
	return arg
}

// Node is one catalog entry.
type Node struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
	Children    []string `yaml:"children"`
	Guards      []string `yaml:"guards"`
	Action      Action   `yaml:"action"`

	parent string
	order  int
}

// Parent returns the parent id, "" for the root.
func (n *Node) Parent() string { return n.parent }

// IsSubmenu reports whether entering the node keeps it as navigation context.
func (n *Node) IsSubmenu() bool { return n.Action.Kind == ActionSubmenu }
