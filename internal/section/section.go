// Package section extracts the heading breadcrumb and neighbouring content
// around an element, one entry per open heading level.
package section

import (
	"strings"

	"github.com/dgallion1/tablegest/internal/richtext"
)

// ContentHierarchy is one open section around the target. Level 0 holds the
// content before the first heading and has an empty heading; level N is
// opened by the N-th configured heading tag.
type ContentHierarchy struct {
	Level         int                 `json:"level"`
	Heading       richtext.RichText   `json:"heading"`
	ContentBefore []richtext.RichText `json:"content_before"`
	ContentAfter  []richtext.RichText `json:"content_after"`
}

func (h ContentHierarchy) Clone() ContentHierarchy {
	return ContentHierarchy{
		Level:         h.Level,
		Heading:       h.Heading.Clone(),
		ContentBefore: cloneAll(h.ContentBefore),
		ContentAfter:  cloneAll(h.ContentAfter),
	}
}

func cloneAll(in []richtext.RichText) []richtext.RichText {
	if in == nil {
		return nil
	}
	out := make([]richtext.RichText, len(in))
	for i, rt := range in {
		out[i] = rt.Clone()
	}
	return out
}

type Options struct {
	// HeadingTags are ordered from the outermost level down.
	HeadingTags []string
	// Text controls which tags survive inside each block.
	Text richtext.Options
}

// DefaultOptions uses h1-h6 as levels 1-6 and keeps only inline formatting
// inside blocks.
func DefaultOptions() Options {
	return Options{
		HeadingTags: []string{"h1", "h2", "h3", "h4", "h5", "h6"},
		Text: richtext.Options{
			DiscardTags: richtext.TagSet("script", "style", "noscript", "table"),
			OnlyInline:  true,
		},
	}
}

type Extractor struct {
	opts Options
	// headings maps a heading tag to its level, starting at 1.
	headings map[string]int
}

func NewExtractor(opts Options) *Extractor {
	if len(opts.HeadingTags) == 0 {
		opts.HeadingTags = DefaultOptions().HeadingTags
	}
	headings := make(map[string]int, len(opts.HeadingTags))
	for i, tag := range opts.HeadingTags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if _, ok := headings[tag]; !ok {
			headings[tag] = i + 1
		}
	}
	return &Extractor{opts: opts, headings: headings}
}

// headingLevel is the heading level of a flattened block, or 0 for content.
func (e *Extractor) headingLevel(b richtext.RichText) int {
	return e.headings[b.Root().Tag]
}
