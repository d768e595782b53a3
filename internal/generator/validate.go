package generator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"deckgen/internal/models"
)

// ErrValidation marks generated output that does not satisfy the slide schema.
var ErrValidation = errors.New("slide validation failed")

// ValidationError lists every problem found in one slide.
type ValidationError struct {
	Slide    int
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("slide %d: %s", e.Slide, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

var imagesPrefixRe = regexp.MustCompile(models.ImagesPrefixRegex)

// ValidateSlide checks the structural contract of a generated slide.
func ValidateSlide(s models.SlideSpec, candidates []string, maxBullets int) error {
	var problems []string
	if strings.TrimSpace(s.Title) == "" {
		problems = append(problems, "title is empty")
	}
	if len(s.Bullets) > maxBullets {
		problems = append(problems, fmt.Sprintf("%d bullets exceed the bound of %d", len(s.Bullets), maxBullets))
	}
	for i, b := range s.Bullets {
		if strings.TrimSpace(b) == "" {
			problems = append(problems, fmt.Sprintf("bullet %d is empty", i))
		}
	}
	if len(s.ImagePaths) > 1 {
		problems = append(problems, fmt.Sprintf("%d images, at most one allowed", len(s.ImagePaths)))
	}
	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c] = true
	}
	for _, p := range s.ImagePaths {
		if !allowed[p] {
			problems = append(problems, fmt.Sprintf("image %q is not a candidate", p))
		}
	}
	if len(s.ImageDimensions) > len(s.ImagePaths) {
		problems = append(problems, "more image dimensions than images")
	}

	if len(problems) > 0 {
		return &ValidationError{Slide: s.Index, Problems: problems}
	}
	return nil
}

// canonicalImage maps a model supplied path onto the candidate it names, if any.
// Paths are compared with any leading images/ directory removed.
func canonicalImage(path string, candidates []string) (string, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", false
	}
	stripped := imagesPrefixRe.ReplaceAllString(path, "")
	for _, c := range candidates {
		if c == path || imagesPrefixRe.ReplaceAllString(c, "") == stripped {
			return c, true
		}
	}
	return "", false
}
