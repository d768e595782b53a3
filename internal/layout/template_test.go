package layout

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"deckgen/internal/models"
)

const pmlNS = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

var pptxParts = map[string]string{
	"ppt/presentation.xml": `<?xml version="1.0" encoding="UTF-8"?>
<p:presentation ` + pmlNS + `><p:sldSz cx="12192000" cy="6858000"/></p:presentation>`,

	"ppt/slideMasters/slideMaster1.xml": `<?xml version="1.0" encoding="UTF-8"?>
<p:sldMaster ` + pmlNS + `>
  <p:cSld><p:spTree>
    <p:sp>
      <p:nvSpPr><p:cNvPr id="2" name="Title Placeholder 1"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>
      <p:spPr><a:xfrm><a:off x="838200" y="365125"/><a:ext cx="10515600" cy="1325563"/></a:xfrm></p:spPr>
    </p:sp>
    <p:sp>
      <p:nvSpPr><p:cNvPr id="3" name="Text Placeholder 2"/><p:cNvSpPr/><p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr>
      <p:spPr><a:xfrm><a:off x="838200" y="1825625"/><a:ext cx="10515600" cy="4351338"/></a:xfrm></p:spPr>
    </p:sp>
  </p:spTree></p:cSld>
  <p:sldLayoutIdLst>
    <p:sldLayoutId id="2147483649" r:id="rId2"/>
    <p:sldLayoutId id="2147483650" r:id="rId1"/>
  </p:sldLayoutIdLst>
</p:sldMaster>`,

	"ppt/slideMasters/_rels/slideMaster1.xml.rels": `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout2.xml"/>
</Relationships>`,

	// content layout, geometry inherited from the master
	"ppt/slideLayouts/slideLayout1.xml": `<?xml version="1.0" encoding="UTF-8"?>
<p:sldLayout ` + pmlNS + `>
  <p:cSld name="Title and Content"><p:spTree>
    <p:sp><p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr><p:spPr/></p:sp>
    <p:sp><p:nvSpPr><p:cNvPr id="3" name="Content Placeholder 2"/><p:cNvSpPr/><p:nvPr><p:ph idx="1"/></p:nvPr></p:nvSpPr><p:spPr/></p:sp>
    <p:sp><p:nvSpPr><p:cNvPr id="4" name="Date Placeholder 3"/><p:cNvSpPr/><p:nvPr><p:ph type="dt" sz="half" idx="10"/></p:nvPr></p:nvSpPr><p:spPr/></p:sp>
  </p:spTree></p:cSld>
</p:sldLayout>`,

	"ppt/slideLayouts/slideLayout2.xml": `<?xml version="1.0" encoding="UTF-8"?>
<p:sldLayout ` + pmlNS + `>
  <p:cSld name="Picture with Caption"><p:spTree>
    <p:sp>
      <p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr/><p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>
      <p:spPr><a:xfrm><a:off x="839788" y="457200"/><a:ext cx="3932237" cy="1600200"/></a:xfrm></p:spPr>
    </p:sp>
    <p:sp>
      <p:nvSpPr><p:cNvPr id="3" name="Picture Placeholder 2"/><p:cNvSpPr/><p:nvPr><p:ph type="pic" idx="1"/></p:nvPr></p:nvSpPr>
      <p:spPr><a:xfrm><a:off x="5183188" y="987425"/><a:ext cx="6172200" cy="4873625"/></a:xfrm></p:spPr>
    </p:sp>
    <p:sp>
      <p:nvSpPr><p:cNvPr id="4" name="Text Placeholder 3"/><p:cNvSpPr/><p:nvPr><p:ph type="body" sz="half" idx="2"/></p:nvPr></p:nvSpPr>
      <p:spPr><a:xfrm><a:off x="839788" y="2057400"/><a:ext cx="3932237" cy="3811588"/></a:xfrm></p:spPr>
    </p:sp>
  </p:spTree></p:cSld>
</p:sldLayout>`,
}

func writePPTX(t *testing.T, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.pptx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTemplatePPTX(t *testing.T) {
	tmpl, err := LoadTemplate(writePPTX(t, pptxParts))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tmpl.SlideWidth != 12192000 || tmpl.SlideHeight != 6858000 {
		t.Fatalf("unexpected slide size %dx%d", tmpl.SlideWidth, tmpl.SlideHeight)
	}
	if len(tmpl.Layouts) != 2 {
		t.Fatalf("expected 2 layouts, got %d", len(tmpl.Layouts))
	}

	// master order lists layout 2 first
	pic := tmpl.Layouts[0]
	if pic.Name != "Picture with Caption" || pic.LayoutID != 0 {
		t.Fatalf("unexpected first layout %#v", pic)
	}
	if !pic.Types()[models.PlaceholderPicture] || pic.TextRegions() != 1 {
		t.Fatalf("unexpected picture layout placeholders %#v", pic.Placeholders)
	}

	content := tmpl.Layouts[1]
	if content.Name != "Title and Content" || content.LayoutID != 1 {
		t.Fatalf("unexpected second layout %#v", content)
	}
	if len(content.Placeholders) != 2 {
		t.Fatalf("date placeholder should be skipped, got %#v", content.Placeholders)
	}
	title, body := content.Placeholders[0], content.Placeholders[1]
	if title.Type != models.PlaceholderTitle || title.Box() != (models.Rect{X: 838200, Y: 365125, CX: 10515600, CY: 1325563}) {
		t.Fatalf("title geometry not inherited: %#v", title)
	}
	if body.Type != models.PlaceholderObject || body.Index != 1 || body.Size.CY != 4351338 {
		t.Fatalf("content placeholder not inherited: %#v", body)
	}
	if tmpl.MaxTextRegions() != 1 {
		t.Fatalf("expected one text region, got %d", tmpl.MaxTextRegions())
	}
}

func TestLoadTemplatePPTXNumericFallback(t *testing.T) {
	parts := map[string]string{}
	for k, v := range pptxParts {
		if k != "ppt/slideMasters/_rels/slideMaster1.xml.rels" && k != "ppt/presentation.xml" {
			parts[k] = v
		}
	}
	tmpl, err := LoadTemplate(writePPTX(t, parts))
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Layouts[0].Name != "Title and Content" {
		t.Fatalf("expected numeric layout order, got %q first", tmpl.Layouts[0].Name)
	}
	if tmpl.SlideWidth != defaultSlideWidth || tmpl.SlideHeight != defaultSlideHeight {
		t.Fatalf("expected default slide size, got %dx%d", tmpl.SlideWidth, tmpl.SlideHeight)
	}
}

func TestLoadTemplateDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.yaml")
	descriptor := `slide_width: 9144000
slide_height: 6858000
layouts:
  - layout_id: 4
    name: Title Only
    placeholders:
      - {type: title, index: 0, position: {x: 0, y: 0}, size: {cx: 9144000, cy: 1000000}}
  - layout_id: 7
    name: Two Content
    placeholders:
      - {type: title, index: 0, position: {x: 0, y: 0}, size: {cx: 9144000, cy: 1000000}}
      - {type: object, index: 1, position: {x: 0, y: 1000000}, size: {cx: 4500000, cy: 5000000}}
      - {type: object, index: 2, position: {x: 4600000, y: 1000000}, size: {cx: 4500000, cy: 5000000}}
`
	if err := os.WriteFile(path, []byte(descriptor), 0644); err != nil {
		t.Fatal(err)
	}

	tmpl, err := LoadTemplate(path)
	if err != nil {
		t.Fatal(err)
	}
	l, ok := tmpl.Layout(7)
	if !ok || l.Placeholders[1].Type != models.PlaceholderObject {
		t.Fatalf("unexpected layout %#v", l)
	}
	if tmpl.MaxTextRegions() != 2 {
		t.Fatalf("expected two text regions, got %d", tmpl.MaxTextRegions())
	}
}

func TestLoadTemplateRejects(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"deck.key":      "",
		"empty.yaml":    "layouts: []\n",
		"unknown.yaml":  "layouts:\n  - layout_id: 0\n    placeholders:\n      - {type: media, index: 0}\n",
		"negative.json": `{"layouts":[{"layout_id":0,"placeholders":[{"type":"TITLE","index":-2}]}]}`,
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadTemplate(path); !errors.Is(err, ErrUnsupportedTemplate) {
			t.Errorf("%s: expected ErrUnsupportedTemplate, got %v", name, err)
		}
	}
}
