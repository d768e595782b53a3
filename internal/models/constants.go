package models

const (
	SentenceSeparator  = ". "
	TableCellSeparator = " | "
	ImagesPrefixRegex  = `^(\./)?images[\\/]`

	PlaceholderSlideBullet = "Content generation failed"
	PlaceholderSlideNotes  = "Error in content generation"
	DefaultDeckTitle       = "Presentation"
	DefaultDeckSubtitle    = "Generated Presentation"
)

// checkpoint stages
const (
	StageDocumentParsed   = "document_parsed"
	StagePresentationData = "presentation_data"
	StageSlideContent     = "slide_content"
	StageGeneratedLayouts = "generated_layouts"
)

const (
	SummarizerSystemPrompt = "You are a professional presentation writer who condenses document sections into slide-ready summaries. Answer with raw JSON only."
	MetadataSystemPrompt   = "You are a presentation expert who creates clear and engaging titles. Answer with raw JSON only."
	OutlineSystemPrompt    = "You are a slide-outline assistant. Answer with raw JSON only."
	SlideSystemPrompt      = "You are a presentation expert who creates detailed, informative slide content. Answer with raw JSON only."
)

var (
	SummaryPromptTemplate = `Summarize the following document section for a slide deck.
%s
<section>
%s
</section>

Return a JSON object with this structure:
{
  "detailed_summary": "a concise paragraph of at most 120 words",
  "key_points": ["3 to 5 short key points"],
  "visualizations": ["1-sentence captions of images or charts that would support the section"],
  "document_queries": ["questions whose exact answers should be looked up in the document"]
}
Use double quotes, no trailing commas, no markdown.
`

	PreviousSectionTemplate = `For continuity, here is the previous section:
<previous>
%s
</previous>
`

	MetadataPromptTemplate = `Analyze these section summaries and create a concise but descriptive title and subtitle for the presentation.
The title should capture the main theme, and the subtitle should provide additional context.

Summaries:
%s

Return a JSON object with this structure:
{"title": "Main title of the presentation", "subtitle": "Supporting subtitle that provides context"}
`

	OutlinePromptTemplate = `Given the presentation title and the numbered section summaries, plan the content slides.

Title: %s

Summaries:
%s

Return a JSON object with this structure:
{
  "sections": [
    {"heading": "section heading", "source_units": [0], "num_content_slides": 1, "key_points": ["3 to 5 key points"]}
  ]
}
source_units lists the summary numbers the section draws from. The sum of num_content_slides must be between %d and %d.
Use no extra keys.
`

	SlidePromptTemplate = `You are creating slide %d of %d.
The presentation title is: %s
The presentation subtitle is: %s

%s
Slide heading: %s
Key points:
%s

Source material:
%s

Available image paths (use only these, or none):
%s

Create a slide with:
1. A clear, concise title
2. At most %d bullet points
3. Detailed speaker notes
4. At most one image path from the available list
5. One 1-sentence image caption, useful for image search, if an image would help explain the slide

Return a JSON object with this structure:
{
  "title": "Title of the slide",
  "bullets": ["bullet point 1", "bullet point 2"],
  "speaker_notes": "Detailed speaker notes for this slide",
  "image_captions": ["caption"],
  "image_paths": []
}
`
)
