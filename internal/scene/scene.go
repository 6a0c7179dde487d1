// Package scene provides the minimal scene graph the point cloud loader attaches
// octants, meshes and debug wireframes to.
package scene

import (
	"sync"
)

// Kind identifies a component type.
type Kind int

// Component kinds.
const (
	KindOctant Kind = iota
	KindMesh
	KindWireframe
)

func (k Kind) String() string {
	switch k {
	case KindOctant:
		return "octant"
	case KindMesh:
		return "mesh"
	case KindWireframe:
		return "wireframe"
	default:
		return "unknown"
	}
}

// Component is anything attached to a node. Kind must return a constant per
// type and be callable on the type's zero value, including a nil pointer.
type Component interface {
	Kind() Kind
}

// KindOf returns the kind tag of component type T.
func KindOf[T Component]() Kind {
	var zero T
	return zero.Kind()
}

// Node is a scene graph node. Its component list and children are guarded by
// the node's own lock, so renderers may read while the loader mutates.
type Node struct {
	Name string

	mu         sync.RWMutex
	parent     *Node
	children   []*Node
	components []Component
}

// NewNode creates a node with the given components.
func NewNode(name string, components ...Component) *Node {
	return &Node{
		Name:       name,
		components: components,
	}
}

// AddChild appends child and sets its parent.
func (n *Node) AddChild(child *Node) {
	child.mu.Lock()
	child.parent = n
	child.mu.Unlock()

	n.mu.Lock()
	n.children = append(n.children, child)
	n.mu.Unlock()
}

// Parent returns the parent node, nil for a root.
func (n *Node) Parent() *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent
}

// Children returns a snapshot of the children.
func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Node(nil), n.children...)
}

// Add attaches components.
func (n *Node) Add(components ...Component) {
	n.mu.Lock()
	n.components = append(n.components, components...)
	n.mu.Unlock()
}

// Components returns a snapshot of all components of kind k in attach order.
func (n *Node) Components(k Kind) []Component {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var out []Component
	for _, c := range n.components {
		if c.Kind() == k {
			out = append(out, c)
		}
	}
	return out
}

// Has reports whether a component of kind k is attached.
func (n *Node) Has(k Kind) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, c := range n.components {
		if c.Kind() == k {
			return true
		}
	}
	return false
}

// Remove detaches all components of kind k and returns them.
func (n *Node) Remove(k Kind) []Component {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.removeLocked(k)
}

func (n *Node) removeLocked(k Kind) []Component {
	var removed []Component
	kept := n.components[:0]
	for _, c := range n.components {
		if c.Kind() == k {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(n.components); i++ {
		n.components[i] = nil
	}
	n.components = kept
	return removed
}

// Replace detaches all components of kind k and attaches components instead.
// It returns the detached components.
func (n *Node) Replace(k Kind, components ...Component) []Component {
	n.mu.Lock()
	defer n.mu.Unlock()

	removed := n.removeLocked(k)
	n.components = append(n.components, components...)
	return removed
}

// Walk visits n and its descendants depth first. Returning false from fn skips
// the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}

// Get returns the first component of type T. Components are filtered by
// kind tag before the type assertion.
func Get[T Component](n *Node) (T, bool) {
	var zero T
	k := KindOf[T]()
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, c := range n.components {
		if c.Kind() != k {
			continue
		}
		if t, ok := c.(T); ok {
			return t, true
		}
	}
	return zero, false
}

// All returns every component of type T.
func All[T Component](n *Node) []T {
	k := KindOf[T]()
	n.mu.RLock()
	defer n.mu.RUnlock()

	var out []T
	for _, c := range n.components {
		if c.Kind() != k {
			continue
		}
		if t, ok := c.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
