package models

type PlaceholderType string

const (
	PlaceholderTitle    PlaceholderType = "TITLE"
	PlaceholderSubtitle PlaceholderType = "SUBTITLE"
	PlaceholderBody     PlaceholderType = "BODY"
	PlaceholderObject   PlaceholderType = "OBJECT"
	PlaceholderPicture  PlaceholderType = "PICTURE"
	PlaceholderChart    PlaceholderType = "CHART"
	PlaceholderTable    PlaceholderType = "TABLE"
	PlaceholderNotes    PlaceholderType = "NOTES"
)

// Accepts reports whether a placeholder of type p can hold content that requires type want.
// OBJECT placeholders double as body text regions.
func (p PlaceholderType) Accepts(want PlaceholderType) bool {
	if p == want {
		return true
	}
	return want == PlaceholderBody && p == PlaceholderObject
}

// Point and Size are expressed in EMU.
type Point struct {
	X int64 `json:"x" yaml:"x"`
	Y int64 `json:"y" yaml:"y"`
}

type Size struct {
	CX int64 `json:"cx" yaml:"cx"`
	CY int64 `json:"cy" yaml:"cy"`
}

type Placeholder struct {
	Type     PlaceholderType `json:"type" yaml:"type"`
	Index    int             `json:"index" yaml:"index"`
	Name     string          `json:"name,omitempty" yaml:"name"`
	Position Point           `json:"position" yaml:"position"`
	Size     Size            `json:"size" yaml:"size"`
}

// Box returns the placeholder geometry as a rectangle.
func (p Placeholder) Box() Rect {
	return Rect{X: p.Position.X, Y: p.Position.Y, CX: p.Size.CX, CY: p.Size.CY}
}

type TemplateLayout struct {
	LayoutID     int           `json:"layout_id" yaml:"layout_id"`
	Name         string        `json:"name" yaml:"name"`
	Placeholders []Placeholder `json:"placeholders" yaml:"placeholders"`
}

// Types returns the set of placeholder types declared by the layout.
func (l TemplateLayout) Types() map[PlaceholderType]bool {
	set := make(map[PlaceholderType]bool, len(l.Placeholders))
	for _, ph := range l.Placeholders {
		set[ph.Type] = true
	}
	return set
}

// Has reports whether some placeholder of the layout accepts content of type want.
func (l TemplateLayout) Has(want PlaceholderType) bool {
	for _, ph := range l.Placeholders {
		if ph.Type.Accepts(want) {
			return true
		}
	}
	return false
}

// TextRegions counts BODY and OBJECT placeholders.
func (l TemplateLayout) TextRegions() int {
	n := 0
	for _, ph := range l.Placeholders {
		if ph.Type.Accepts(PlaceholderBody) {
			n++
		}
	}
	return n
}

// Template is the read-only set of layouts of one template file.
type Template struct {
	Path        string           `json:"path" yaml:"-"`
	SlideWidth  int64            `json:"slide_width" yaml:"slide_width"`
	SlideHeight int64            `json:"slide_height" yaml:"slide_height"`
	Layouts     []TemplateLayout `json:"layouts" yaml:"layouts"`
}

// MaxTextRegions is the largest number of text regions offered by any layout.
func (t *Template) MaxTextRegions() int {
	max := 0
	for _, l := range t.Layouts {
		if n := l.TextRegions(); n > max {
			max = n
		}
	}
	return max
}

// Layout looks a layout up by id.
func (t *Template) Layout(id int) (TemplateLayout, bool) {
	for _, l := range t.Layouts {
		if l.LayoutID == id {
			return l, true
		}
	}
	return TemplateLayout{}, false
}

// Rect is an axis aligned box in EMU.
type Rect struct {
	X  int64 `json:"x"`
	Y  int64 `json:"y"`
	CX int64 `json:"cx"`
	CY int64 `json:"cy"`
}
