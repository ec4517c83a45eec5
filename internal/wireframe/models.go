// Package wireframe models structured UI layouts: a wireframe is an ordered
// forest of components, each exclusively owned by its parent. Component
// edits are versioned through an append-only per-component log with
// undo/redo layered on top.
package wireframe

// Position is a pixel offset on the canvas.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Dimensions is a pixel size.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Component is one tree node of a wireframe. Children are exclusively owned
// by the parent; no shared ownership, no cycles.
type Component struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"` // sidebar/header/footer/grid/card/container/content
	Position   *Position      `json:"position,omitempty"`
	Dimensions *Dimensions    `json:"dimensions,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Children   []*Component   `json:"children,omitempty"`
}

// Clone returns a full deep copy of the component subtree.
func (c *Component) Clone() *Component {
	if c == nil {
		return nil
	}
	cp := &Component{ID: c.ID, Type: c.Type}
	if c.Position != nil {
		p := *c.Position
		cp.Position = &p
	}
	if c.Dimensions != nil {
		d := *c.Dimensions
		cp.Dimensions = &d
	}
	if c.Properties != nil {
		cp.Properties = make(map[string]any, len(c.Properties))
		for k, v := range c.Properties {
			cp.Properties[k] = v
		}
	}
	for _, child := range c.Children {
		cp.Children = append(cp.Children, child.Clone())
	}
	return cp
}

// Metadata describes the wireframe canvas and lifecycle.
type Metadata struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Wireframe is a structured-layout context attached to one session.
type Wireframe struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"sessionId"`
	Description string       `json:"description"`
	Components  []*Component `json:"components"`
	Metadata    Metadata     `json:"metadata"`
}

// FindComponent locates a component by id anywhere in the forest.
func FindComponent(roots []*Component, id string) *Component {
	for _, c := range roots {
		if c.ID == id {
			return c
		}
		if found := FindComponent(c.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// ReplaceComponent swaps the component with state.ID for state, preserving
// tree position. Returns false if the id is not present.
func ReplaceComponent(roots []*Component, state *Component) bool {
	for i, c := range roots {
		if c.ID == state.ID {
			roots[i] = state
			return true
		}
		if replaceChild(c, state) {
			return true
		}
	}
	return false
}

func replaceChild(parent *Component, state *Component) bool {
	for i, c := range parent.Children {
		if c.ID == state.ID {
			parent.Children[i] = state
			return true
		}
		if replaceChild(c, state) {
			return true
		}
	}
	return false
}

// Walk visits every component in the forest depth-first.
func Walk(roots []*Component, fn func(*Component)) {
	for _, c := range roots {
		fn(c)
		Walk(c.Children, fn)
	}
}
