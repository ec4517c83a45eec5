package wireframe

import (
	"strings"

	"github.com/google/uuid"
)

const (
	headerHeight  = 64
	footerHeight  = 48
	sidebarWidth  = 240
	defaultGutter = 16
)

// BuildLayout derives the initial component tree from a free-text layout
// description. It is a pure function: the same description and canvas size
// always produce the same structure (component ids aside).
func BuildLayout(description string, width, height int) []*Component {
	desc := strings.ToLower(description)

	var roots []*Component
	top := 0
	bottom := height
	left := 0

	if strings.Contains(desc, "header") || strings.Contains(desc, "nav") {
		roots = append(roots, &Component{
			ID:         uuid.NewString(),
			Type:       "header",
			Position:   &Position{X: 0, Y: 0},
			Dimensions: &Dimensions{Width: width, Height: headerHeight},
		})
		top = headerHeight
	}
	if strings.Contains(desc, "footer") {
		roots = append(roots, &Component{
			ID:         uuid.NewString(),
			Type:       "footer",
			Position:   &Position{X: 0, Y: height - footerHeight},
			Dimensions: &Dimensions{Width: width, Height: footerHeight},
		})
		bottom = height - footerHeight
	}
	if strings.Contains(desc, "sidebar") || strings.Contains(desc, "side nav") {
		roots = append(roots, &Component{
			ID:         uuid.NewString(),
			Type:       "sidebar",
			Position:   &Position{X: 0, Y: top},
			Dimensions: &Dimensions{Width: sidebarWidth, Height: bottom - top},
		})
		left = sidebarWidth
	}

	content := &Component{
		ID:         uuid.NewString(),
		Type:       "container",
		Position:   &Position{X: left, Y: top},
		Dimensions: &Dimensions{Width: width - left, Height: bottom - top},
		Properties: map[string]any{"spacing": defaultGutter},
	}

	if cols := gridColumns(desc); cols > 0 {
		grid := &Component{
			ID:         uuid.NewString(),
			Type:       "grid",
			Properties: map[string]any{"columns": cols, "spacing": defaultGutter},
		}
		for i := 0; i < cols; i++ {
			grid.Children = append(grid.Children, &Component{
				ID:   uuid.NewString(),
				Type: "card",
			})
		}
		content.Children = append(content.Children, grid)
	} else {
		content.Children = append(content.Children, &Component{
			ID:   uuid.NewString(),
			Type: "content",
		})
	}

	return append(roots, content)
}

// gridColumns returns the column count implied by the description, 0 when
// no grid is asked for.
func gridColumns(desc string) int {
	if !strings.Contains(desc, "grid") && !strings.Contains(desc, "card") {
		return 0
	}
	for word, n := range map[string]int{
		"two": 2, "three": 3, "four": 4,
		"2": 2, "3": 3, "4": 4,
	} {
		if strings.Contains(desc, word+" column") || strings.Contains(desc, word+"-column") {
			return n
		}
	}
	return 3
}
