package layout

import (
	"fmt"
	"strings"

	"deckgen/internal/models"

	"github.com/rs/zerolog/log"
)

// State is the assignment progress of one slide.
type State int

const (
	Unassigned State = iota
	LayoutChosen
	Mapped
	Validated
)

func (s State) String() string {
	switch s {
	case Unassigned:
		return "UNASSIGNED"
	case LayoutChosen:
		return "LAYOUT_CHOSEN"
	case Mapped:
		return "MAPPED"
	case Validated:
		return "VALIDATED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// font presets in points
const (
	FontDeckTitle = 44
	FontSubtitle  = 32
	FontTitle     = 28
	FontBody      = 20
)

// Assigner maps slide content onto template placeholders.
type Assigner struct {
	tmpl          *models.Template
	defaultLayout int
}

func NewAssigner(tmpl *models.Template, defaultLayout int) *Assigner {
	if _, ok := tmpl.Layout(defaultLayout); !ok && len(tmpl.Layouts) > 0 {
		log.Warn().Int("layout", defaultLayout).Msg("Default layout missing, using the first layout")
		defaultLayout = tmpl.Layouts[0].LayoutID
	}
	return &Assigner{tmpl: tmpl, defaultLayout: defaultLayout}
}

// content is the placeable shape of a slide
type content struct {
	title    string
	subtitle string
	bullets  []string
	image    string
	imageDim models.Dimension
	notes    string
	deck     bool
}

func contentOf(slide models.SlideSpec) content {
	c := content{
		title:    strings.TrimSpace(slide.Title),
		subtitle: strings.TrimSpace(slide.Subtitle),
		notes:    strings.TrimSpace(slide.SpeakerNotes),
		deck:     slide.Index == 0,
	}
	for _, b := range slide.Bullets {
		if b = strings.TrimSpace(b); b != "" {
			c.bullets = append(c.bullets, b)
		}
	}
	if slide.HasImage() {
		c.image = slide.ImagePaths[0]
		c.imageDim = slide.ImageSize()
	}
	return c
}

// required lists the placeholder types the content needs, least critical last
func (c content) required() []models.PlaceholderType {
	var req []models.PlaceholderType
	if c.title != "" {
		req = append(req, models.PlaceholderTitle)
	}
	if c.subtitle != "" {
		req = append(req, models.PlaceholderSubtitle)
	}
	if len(c.bullets) > 0 {
		req = append(req, models.PlaceholderBody)
	}
	if c.image != "" {
		req = append(req, models.PlaceholderPicture)
	}
	return req
}

// degrade drops the least critical element still present: image, subtitle, bullets, then title
func (c *content) degrade() (string, bool) {
	switch {
	case c.image != "":
		c.image = ""
		return models.ContentImage, true
	case c.subtitle != "":
		c.subtitle = ""
		return models.ContentSubtitle, true
	case len(c.bullets) > 0:
		c.bullets = nil
		return models.ContentBullets, true
	case c.title != "":
		c.title = ""
		return models.ContentTitle, true
	}
	return "", false
}

// assignment walks one slide through the state machine
type assignment struct {
	slideIndex int
	state      State
	content    content
	layout     models.TemplateLayout
	mapping    models.PlacementMapping
	dropped    []string
}

func (a *assignment) transition(to State) {
	log.Debug().Int("slide", a.slideIndex).Str("from", a.state.String()).Str("to", to.String()).Int("layout", a.layout.LayoutID).Msg("Layout state")
	a.state = to
}

// Assign chooses a layout for the slide and maps every content element to one placeholder.
// Content that no layout can hold is dropped, never failing the slide.
func (a *Assigner) Assign(slide models.SlideSpec) (models.PlacementMapping, error) {
	if len(a.tmpl.Layouts) == 0 {
		return models.PlacementMapping{}, fmt.Errorf("%w: template has no layouts", ErrUnsupportedTemplate)
	}
	st := &assignment{slideIndex: slide.Index, state: Unassigned, content: contentOf(slide)}

	a.choose(st)
	st.mapping = a.mapTo(st, st.layout)
	st.transition(Mapped)

	if err := a.validate(st.mapping, st.content); err != nil {
		log.Warn().Err(err).Int("slide", slide.Index).Int("layout", st.layout.LayoutID).Msg("Mapping rejected, rerouting to default layout")
		a.reroute(st)
	}
	st.transition(Validated)

	st.mapping.Dropped = st.dropped
	return st.mapping, nil
}

// AssignAll assigns every slide, keeping slide order.
func (a *Assigner) AssignAll(slides []models.SlideSpec) ([]models.PlacementMapping, error) {
	mappings := make([]models.PlacementMapping, 0, len(slides))
	for _, s := range slides {
		m, err := a.Assign(s)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// choose picks the smallest layout covering the required types, degrading content until one does
func (a *Assigner) choose(st *assignment) {
	for {
		if l, ok := a.smallestCovering(st.content.required()); ok {
			st.layout = l
			st.transition(LayoutChosen)
			return
		}
		dropped, ok := st.content.degrade()
		if !ok {
			// an empty requirement set is covered by any layout
			st.layout = a.tmpl.Layouts[0]
			st.transition(LayoutChosen)
			return
		}
		log.Warn().Int("slide", st.slideIndex).Str("content", dropped).Msg("No layout can hold content, dropping it")
		st.dropped = append(st.dropped, dropped)
	}
}

func (a *Assigner) smallestCovering(req []models.PlaceholderType) (models.TemplateLayout, bool) {
	var best models.TemplateLayout
	found := false
	for _, l := range a.tmpl.Layouts {
		if !covers(l, req) {
			continue
		}
		// strict comparison keeps the first declared layout on ties
		if !found || len(l.Placeholders) < len(best.Placeholders) {
			best, found = l, true
		}
	}
	return best, found
}

func covers(l models.TemplateLayout, req []models.PlaceholderType) bool {
	for _, t := range req {
		if !l.Has(t) {
			return false
		}
	}
	return true
}

// mapTo binds content to placeholders of l in declaration order, each placeholder used once.
// Elements without a free placeholder are left out of the mapping.
func (a *Assigner) mapTo(st *assignment, l models.TemplateLayout) models.PlacementMapping {
	m := models.PlacementMapping{SlideIndex: st.slideIndex, LayoutID: l.LayoutID, LayoutName: l.Name, Entries: []models.MappingEntry{}}
	used := map[int]bool{}
	take := func(want models.PlaceholderType) (models.Placeholder, bool) {
		for _, ph := range l.Placeholders {
			if !used[ph.Index] && ph.Type.Accepts(want) {
				used[ph.Index] = true
				return ph, true
			}
		}
		return models.Placeholder{}, false
	}
	textEntry := func(contentType, value string, items []string, want models.PlaceholderType, font int) {
		ph, ok := take(want)
		if !ok {
			return
		}
		box, _ := ClipToSlide(ph.Box(), a.tmpl.SlideWidth, a.tmpl.SlideHeight)
		m.Entries = append(m.Entries, models.MappingEntry{
			ContentType:      contentType,
			Value:            value,
			Items:            items,
			PlaceholderType:  ph.Type,
			PlaceholderIndex: ph.Index,
			Box:              &box,
			FontSize:         font,
		})
	}

	c := st.content
	if c.title != "" {
		font := FontTitle
		if c.deck {
			font = FontDeckTitle
		}
		textEntry(models.ContentTitle, c.title, nil, models.PlaceholderTitle, font)
	}
	if c.subtitle != "" {
		textEntry(models.ContentSubtitle, c.subtitle, nil, models.PlaceholderSubtitle, FontSubtitle)
	}
	if len(c.bullets) > 0 {
		textEntry(models.ContentBullets, strings.Join(c.bullets, "\n"), c.bullets, models.PlaceholderBody, FontBody)
	}
	if c.image != "" {
		if ph, ok := take(models.PlaceholderPicture); ok {
			entry := models.MappingEntry{
				ContentType:      models.ContentImage,
				Value:            c.image,
				PlaceholderType:  ph.Type,
				PlaceholderIndex: ph.Index,
			}
			// an empty clip leaves Box nil and fails validation
			if clipped, ok := ClipToSlide(ph.Box(), a.tmpl.SlideWidth, a.tmpl.SlideHeight); ok {
				box := ContainFit(clipped, c.imageDim)
				entry.Box = &box
			}
			m.Entries = append(m.Entries, entry)
		}
	}
	if c.notes != "" {
		entry := models.MappingEntry{
			ContentType:      models.ContentSpeakerNotes,
			Value:            c.notes,
			PlaceholderType:  models.PlaceholderNotes,
			PlaceholderIndex: models.NotesPageIndex,
		}
		if ph, ok := take(models.PlaceholderNotes); ok {
			entry.PlaceholderIndex = ph.Index
		}
		m.Entries = append(m.Entries, entry)
	}
	return m
}

// validate checks the mapping invariants against the chosen layout
func (a *Assigner) validate(m models.PlacementMapping, c content) error {
	l, ok := a.tmpl.Layout(m.LayoutID)
	if !ok {
		return fmt.Errorf("layout %d not found", m.LayoutID)
	}

	var problems []string
	seen := map[int]bool{}
	for _, e := range m.Entries {
		if seen[e.PlaceholderIndex] {
			problems = append(problems, fmt.Sprintf("placeholder %d used twice", e.PlaceholderIndex))
		}
		seen[e.PlaceholderIndex] = true
		if e.PlaceholderIndex != models.NotesPageIndex && !l.Types()[e.PlaceholderType] {
			problems = append(problems, fmt.Sprintf("placeholder type %s not in layout", e.PlaceholderType))
		}
		if e.ContentType == models.ContentImage && (e.Box == nil || !within(*e.Box, a.tmpl.SlideWidth, a.tmpl.SlideHeight)) {
			problems = append(problems, "image box outside slide bounds")
		}
	}

	for _, contentType := range []string{models.ContentTitle, models.ContentSubtitle, models.ContentBullets, models.ContentImage} {
		if _, ok := m.Entry(contentType); present(c, contentType) && !ok {
			problems = append(problems, contentType+" has no placeholder")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid mapping: %s", strings.Join(problems, "; "))
	}
	return nil
}

// reroute maps the content onto the default layout, dropping whatever it cannot hold
func (a *Assigner) reroute(st *assignment) {
	l, _ := a.tmpl.Layout(a.defaultLayout)
	st.layout = l
	st.transition(LayoutChosen)

	m := a.mapTo(st, l)
	st.transition(Mapped)

	kept := m.Entries[:0]
	for _, e := range m.Entries {
		if e.ContentType == models.ContentImage && (e.Box == nil || !within(*e.Box, a.tmpl.SlideWidth, a.tmpl.SlideHeight)) {
			continue
		}
		kept = append(kept, e)
	}
	m.Entries = kept

	for _, contentType := range []string{models.ContentTitle, models.ContentSubtitle, models.ContentBullets, models.ContentImage} {
		if present(st.content, contentType) {
			if _, ok := m.Entry(contentType); !ok {
				log.Warn().Int("slide", st.slideIndex).Str("content", contentType).Int("layout", l.LayoutID).Msg("Default layout cannot hold content, dropping it")
				st.dropped = append(st.dropped, contentType)
			}
		}
	}
	st.mapping = m
}

func present(c content, contentType string) bool {
	switch contentType {
	case models.ContentTitle:
		return c.title != ""
	case models.ContentSubtitle:
		return c.subtitle != ""
	case models.ContentBullets:
		return len(c.bullets) > 0
	case models.ContentImage:
		return c.image != ""
	}
	return false
}
