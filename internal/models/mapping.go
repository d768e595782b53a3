package models

const (
	ContentTitle        = "title"
	ContentSubtitle     = "subtitle"
	ContentBullets      = "bullets"
	ContentImage        = "image_path"
	ContentSpeakerNotes = "speaker_notes"
)

// NotesPageIndex is the placeholder index used for speaker notes written to the notes page.
const NotesPageIndex = -1

// MappingEntry binds one content element to one placeholder of the chosen layout.
type MappingEntry struct {
	ContentType      string          `json:"content_type"`
	Value            string          `json:"value,omitempty"`
	Items            []string        `json:"items,omitempty"`
	PlaceholderType  PlaceholderType `json:"placeholder_type"`
	PlaceholderIndex int             `json:"placeholder_index"`
	Box              *Rect           `json:"box,omitempty"`
	FontSize         int             `json:"font_size,omitempty"`
}

// PlacementMapping is the renderer input for one slide.
type PlacementMapping struct {
	SlideIndex int            `json:"slide_index"`
	LayoutID   int            `json:"layout_id"`
	LayoutName string         `json:"layout_name"`
	Entries    []MappingEntry `json:"entries"`
	Dropped    []string       `json:"dropped,omitempty"`
}

// Entry returns the first entry of the given content type.
func (m PlacementMapping) Entry(contentType string) (MappingEntry, bool) {
	for _, e := range m.Entries {
		if e.ContentType == contentType {
			return e, true
		}
	}
	return MappingEntry{}, false
}
