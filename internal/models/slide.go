package models

// SlideSpec is the generated content of one slide.
type SlideSpec struct {
	Index           int         `json:"index"`
	Title           string      `json:"title"`
	Subtitle        string      `json:"subtitle,omitempty"`
	Bullets         []string    `json:"bullets"`
	SpeakerNotes    string      `json:"speaker_notes"`
	ImageCaptions   []string    `json:"image_captions"`
	ImagePaths      []string    `json:"image_paths"`
	ImageDimensions []Dimension `json:"image_dimensions"`
	Placeholder     bool        `json:"placeholder,omitempty"`
}

type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// HasImage reports whether the slide carries a resolved image.
func (s SlideSpec) HasImage() bool {
	return len(s.ImagePaths) > 0
}

// ImageSize returns the dimensions of the first image, zero when unknown.
func (s SlideSpec) ImageSize() Dimension {
	if len(s.ImageDimensions) == 0 {
		return Dimension{}
	}
	return s.ImageDimensions[0]
}

type Metadata struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

// SlideContent is the slide_content checkpoint payload.
type SlideContent struct {
	Metadata Metadata    `json:"metadata"`
	Slides   []SlideSpec `json:"slides"`
}

// ImageRecord is one entry of the image similarity index.
type ImageRecord struct {
	Filename  string    `json:"filename"`
	Embedding []float32 `json:"embedding"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
}
