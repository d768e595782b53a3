package layout

import (
	"archive/zip"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"deckgen/internal/models"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedTemplate is returned for template files that cannot be read as layouts.
var ErrUnsupportedTemplate = errors.New("unsupported template")

const (
	defaultSlideWidth  = 9144000
	defaultSlideHeight = 6858000
)

var layoutNameRe = regexp.MustCompile(`^ppt/slideLayouts/slideLayout(\d+)\.xml$`)

// LoadTemplate reads the layouts of a .pptx/.potx file or of a YAML/JSON template descriptor.
func LoadTemplate(templatePath string) (*models.Template, error) {
	var (
		tmpl *models.Template
		err  error
	)
	switch strings.ToLower(filepath.Ext(templatePath)) {
	case ".pptx", ".potx":
		tmpl, err = loadPPTX(templatePath)
	case ".yaml", ".yml":
		tmpl, err = loadDescriptor(templatePath, yaml.Unmarshal)
	case ".json":
		tmpl, err = loadDescriptor(templatePath, json.Unmarshal)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTemplate, templatePath)
	}
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", templatePath, err)
	}
	tmpl.Path = templatePath
	if err := checkTemplate(tmpl); err != nil {
		return nil, err
	}

	log.Debug().Str("template", templatePath).Int("layouts", len(tmpl.Layouts)).Msg("Loaded template")
	return tmpl, nil
}

func loadDescriptor(descriptorPath string, unmarshal func([]byte, interface{}) error) (*models.Template, error) {
	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		return nil, err
	}
	var tmpl models.Template
	if err := unmarshal(data, &tmpl); err != nil {
		return nil, err
	}
	for i := range tmpl.Layouts {
		for j := range tmpl.Layouts[i].Placeholders {
			ph := &tmpl.Layouts[i].Placeholders[j]
			ph.Type = models.PlaceholderType(strings.ToUpper(string(ph.Type)))
		}
	}
	return &tmpl, nil
}

func checkTemplate(tmpl *models.Template) error {
	if len(tmpl.Layouts) == 0 {
		return fmt.Errorf("%w: %s has no layouts", ErrUnsupportedTemplate, tmpl.Path)
	}
	if tmpl.SlideWidth <= 0 || tmpl.SlideHeight <= 0 {
		tmpl.SlideWidth, tmpl.SlideHeight = defaultSlideWidth, defaultSlideHeight
	}
	for _, l := range tmpl.Layouts {
		for _, ph := range l.Placeholders {
			if ph.Index < 0 {
				return fmt.Errorf("%w: layout %d has negative placeholder index %d", ErrUnsupportedTemplate, l.LayoutID, ph.Index)
			}
			switch ph.Type {
			case models.PlaceholderTitle, models.PlaceholderSubtitle, models.PlaceholderBody, models.PlaceholderObject,
				models.PlaceholderPicture, models.PlaceholderChart, models.PlaceholderTable, models.PlaceholderNotes:
			default:
				return fmt.Errorf("%w: layout %d has placeholder type %q", ErrUnsupportedTemplate, l.LayoutID, ph.Type)
			}
		}
	}
	return nil
}

// OOXML parts, matched on local names

type xmlPresentation struct {
	SldSz struct {
		CX int64 `xml:"cx,attr"`
		CY int64 `xml:"cy,attr"`
	} `xml:"sldSz"`
}

type xmlSlideMaster struct {
	CSld       xmlCSld `xml:"cSld"`
	LayoutRefs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldLayoutIdLst>sldLayoutId"`
}

type xmlSlideLayout struct {
	CSld xmlCSld `xml:"cSld"`
}

type xmlCSld struct {
	Name   string `xml:"name,attr"`
	SpTree struct {
		Children []xmlShape `xml:",any"`
	} `xml:"spTree"`
}

type xmlShape struct {
	XMLName xml.Name
	NvSpPr  *xmlNonVisual `xml:"nvSpPr"`
	NvPicPr *xmlNonVisual `xml:"nvPicPr"`
	SpPr    struct {
		Xfrm *struct {
			Off struct {
				X int64 `xml:"x,attr"`
				Y int64 `xml:"y,attr"`
			} `xml:"off"`
			Ext struct {
				CX int64 `xml:"cx,attr"`
				CY int64 `xml:"cy,attr"`
			} `xml:"ext"`
		} `xml:"xfrm"`
	} `xml:"spPr"`
}

type xmlNonVisual struct {
	CNvPr struct {
		Name string `xml:"name,attr"`
	} `xml:"cNvPr"`
	NvPr struct {
		Ph *struct {
			Type string `xml:"type,attr"`
			Idx  string `xml:"idx,attr"`
		} `xml:"ph"`
	} `xml:"nvPr"`
}

type xmlRelationships struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// rawPlaceholder is a placeholder as declared, before master inheritance
type rawPlaceholder struct {
	ooxmlType string
	idx       int
	name      string
	box       *models.Rect
}

func loadPPTX(templatePath string) (*models.Template, error) {
	zr, err := zip.OpenReader(templatePath)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	tmpl := &models.Template{}
	var pres xmlPresentation
	if err := readXML(files, "ppt/presentation.xml", &pres); err == nil {
		tmpl.SlideWidth, tmpl.SlideHeight = pres.SldSz.CX, pres.SldSz.CY
	}

	var master xmlSlideMaster
	var masterPhs []rawPlaceholder
	if err := readXML(files, "ppt/slideMasters/slideMaster1.xml", &master); err == nil {
		masterPhs = placeholders(master.CSld)
	}

	for id, part := range layoutParts(files, master) {
		var doc xmlSlideLayout
		if err := readXML(files, part, &doc); err != nil {
			return nil, fmt.Errorf("read %s: %w", part, err)
		}
		layout := models.TemplateLayout{LayoutID: id, Name: doc.CSld.Name, Placeholders: []models.Placeholder{}}
		for _, raw := range placeholders(doc.CSld) {
			phType, ok := placeholderType(raw.ooxmlType)
			if !ok {
				continue
			}
			box := raw.box
			if box == nil {
				box = inherit(raw, masterPhs)
			}
			if box == nil {
				log.Warn().Str("layout", layout.Name).Str("placeholder", raw.name).Msg("Placeholder without geometry, skipping")
				continue
			}
			layout.Placeholders = append(layout.Placeholders, models.Placeholder{
				Type:     phType,
				Index:    raw.idx,
				Name:     raw.name,
				Position: models.Point{X: box.X, Y: box.Y},
				Size:     models.Size{CX: box.CX, CY: box.CY},
			})
		}
		tmpl.Layouts = append(tmpl.Layouts, layout)
	}
	return tmpl, nil
}

// layoutParts lists layout parts in master order, or numerically when the master cannot be followed
func layoutParts(files map[string]*zip.File, master xmlSlideMaster) []string {
	var rels xmlRelationships
	if len(master.LayoutRefs) > 0 && readXML(files, "ppt/slideMasters/_rels/slideMaster1.xml.rels", &rels) == nil {
		targets := make(map[string]string, len(rels.Relationships))
		for _, r := range rels.Relationships {
			targets[r.ID] = path.Clean(path.Join("ppt/slideMasters", r.Target))
		}
		var parts []string
		for _, ref := range master.LayoutRefs {
			if t, ok := targets[ref.RID]; ok && files[t] != nil {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}

	type numbered struct {
		n    int
		name string
	}
	var found []numbered
	for name := range files {
		if m := layoutNameRe.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			found = append(found, numbered{n: n, name: name})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	parts := make([]string, len(found))
	for i, f := range found {
		parts[i] = f.name
	}
	return parts
}

func placeholders(cSld xmlCSld) []rawPlaceholder {
	var out []rawPlaceholder
	for _, shape := range cSld.SpTree.Children {
		nv := shape.NvSpPr
		if nv == nil {
			nv = shape.NvPicPr
		}
		if nv == nil || nv.NvPr.Ph == nil {
			continue
		}
		raw := rawPlaceholder{ooxmlType: nv.NvPr.Ph.Type, name: nv.CNvPr.Name}
		if nv.NvPr.Ph.Idx != "" {
			raw.idx, _ = strconv.Atoi(nv.NvPr.Ph.Idx)
		}
		if x := shape.SpPr.Xfrm; x != nil && x.Ext.CX > 0 && x.Ext.CY > 0 {
			raw.box = &models.Rect{X: x.Off.X, Y: x.Off.Y, CX: x.Ext.CX, CY: x.Ext.CY}
		}
		out = append(out, raw)
	}
	return out
}

// inherit finds master geometry by idx, then by title/body kind
func inherit(raw rawPlaceholder, master []rawPlaceholder) *models.Rect {
	kind := masterKind(raw.ooxmlType)
	var byKind *models.Rect
	for _, m := range master {
		if m.box == nil {
			continue
		}
		if raw.idx != 0 && m.idx == raw.idx && masterKind(m.ooxmlType) == kind {
			return m.box
		}
		if byKind == nil && masterKind(m.ooxmlType) == kind {
			byKind = m.box
		}
	}
	return byKind
}

func masterKind(ooxmlType string) string {
	switch ooxmlType {
	case "title", "ctrTitle":
		return "title"
	case "dt", "ftr", "sldNum", "hdr", "sldImg":
		return ooxmlType
	default:
		return "body"
	}
}

func placeholderType(ooxmlType string) (models.PlaceholderType, bool) {
	switch ooxmlType {
	case "title", "ctrTitle":
		return models.PlaceholderTitle, true
	case "subTitle":
		return models.PlaceholderSubtitle, true
	case "body":
		return models.PlaceholderBody, true
	case "obj", "":
		return models.PlaceholderObject, true
	case "pic":
		return models.PlaceholderPicture, true
	case "chart":
		return models.PlaceholderChart, true
	case "tbl":
		return models.PlaceholderTable, true
	default:
		return "", false
	}
}

func readXML(files map[string]*zip.File, name string, v interface{}) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("%s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return xml.Unmarshal(data, v)
}
