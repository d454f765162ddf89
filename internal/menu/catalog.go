package menu

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrUnknownNode is returned for ids that are not in the catalog.
var ErrUnknownNode = errors.New("menu: unknown node")

type catalogFile struct {
	Root  string  `yaml:"root"`
	Nodes []*Node `yaml:"nodes"`
}

// Catalog is the immutable menu forest. It is built once and shared by pointer.
type Catalog struct {
	root  string
	nodes map[string]*Node
	order []*Node
}

// LoadDefault parses the embedded catalog.
func LoadDefault(guards *GuardRegistry) (*Catalog, error) {
	return Parse(defaultCatalog, guards)
}

// MustLoadDefault is LoadDefault for process start and tests.
func MustLoadDefault(guards *GuardRegistry) *Catalog {
	c, err := LoadDefault(guards)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes and validates a YAML catalog. Guard names must exist in guards.
func Parse(data []byte, guards *GuardRegistry) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("menu: decode catalog: %w", err)
	}
	if file.Root == "" {
		return nil, errors.New("menu: catalog root is not set")
	}

	c := &Catalog{
		root:  file.Root,
		nodes: make(map[string]*Node, len(file.Nodes)),
		order: make([]*Node, 0, len(file.Nodes)),
	}

	for i, n := range file.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("menu: node #%d has no id", i)
		}
		if _, dup := c.nodes[n.ID]; dup {
			return nil, fmt.Errorf("menu: duplicate node id %q", n.ID)
		}
		if n.Title == "" {
			return nil, fmt.Errorf("menu: node %q has no title", n.ID)
		}
		n.order = i
		c.nodes[n.ID] = n
		c.order = append(c.order, n)
	}

	if err := c.validate(guards); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate(guards *GuardRegistry) error {
	root, ok := c.nodes[c.root]
	if !ok {
		return fmt.Errorf("menu: root %q is not defined", c.root)
	}
	if !root.IsSubmenu() {
		return fmt.Errorf("menu: root %q must be a submenu", c.root)
	}

	for _, n := range c.order {
		switch n.Action.Kind {
		case ActionSubmenu:
			if len(n.Children) == 0 {
				return fmt.Errorf("menu: submenu %q has no children", n.ID)
			}
		case ActionContent, ActionFlow, ActionCommand:
			if n.Action.Target == "" {
				return fmt.Errorf("menu: node %q has no action target", n.ID)
			}
			if len(n.Children) > 0 {
				return fmt.Errorf("menu: leaf %q must not have children", n.ID)
			}
		default:
			return fmt.Errorf("menu: node %q has unknown action kind %q", n.ID, n.Action.Kind)
		}

		for _, g := range n.Guards {
			if guards != nil && !guards.Has(g) {
				return fmt.Errorf("menu: node %q uses unknown guard %q", n.ID, g)
			}
		}

		for _, childID := range n.Children {
			child, ok := c.nodes[childID]
			if !ok {
				return fmt.Errorf("menu: node %q references missing child %q", n.ID, childID)
			}
			if childID == c.root {
				return fmt.Errorf("menu: root %q cannot be a child of %q", c.root, n.ID)
			}
			if child.parent != "" {
				return fmt.Errorf("menu: node %q has two parents (%q, %q)", childID, child.parent, n.ID)
			}
			child.parent = n.ID
		}
	}

	// Single root: everything else must hang below it.
	for _, n := range c.order {
		if n.ID != c.root && n.parent == "" {
			return fmt.Errorf("menu: node %q is not reachable from root", n.ID)
		}
	}
	return nil
}

// Root returns the root id.
func (c *Catalog) Root() string { return c.root }

// Get returns the node for id.
func (c *Catalog) Get(id string) (*Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

// Has reports whether id exists.
func (c *Catalog) Has(id string) bool {
	_, ok := c.nodes[id]
	return ok
}

// Children returns the child nodes of id in display order.
func (c *Catalog) Children(id string) []*Node {
	n, ok := c.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, childID := range n.Children {
		out = append(out, c.nodes[childID])
	}
	return out
}

// PathTo returns the ids from the root down to id.
func (c *Catalog) PathTo(id string) []string {
	var path []string
	for cur := id; cur != ""; {
		n, ok := c.nodes[cur]
		if !ok {
			return nil
		}
		path = append(path, cur)
		cur = n.parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Nodes returns every node in registration order.
func (c *Catalog) Nodes() []*Node {
	return append([]*Node(nil), c.order...)
}

// Len returns the number of nodes.
func (c *Catalog) Len() int { return len(c.order) }
