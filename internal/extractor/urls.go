package extractor

import (
	"net/url"

	"github.com/dgallion1/tablegest/internal/richtext"
	"github.com/dgallion1/tablegest/internal/section"
)

var linkAttrs = []string{"href", "src"}

type urlConverter struct {
	base *url.URL
}

// resolve makes ref absolute against the document URL. Absolute and
// unparsable references are returned as given.
func (c urlConverter) resolve(ref string) string {
	if ref == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

// richText rewrites href/src attributes in place. When a link's whole text is
// its raw href, the text is rewritten too.
func (c urlConverter) richText(rt *richtext.RichText) {
	if rt.Elements == nil {
		return
	}
	for id := range rt.Elements.Len() {
		el := rt.Elements.Node(id)
		for _, key := range linkAttrs {
			raw, ok := el.Attrs[key]
			if !ok {
				continue
			}
			abs := c.resolve(raw)
			if abs == raw {
				continue
			}
			el.Attrs[key] = abs
			if key == "href" && len(rt.Elements.ChildIDs(id)) == 0 && rt.Text[el.Start:el.End] == raw {
				rt.ReplaceRange(el.Start, el.End, abs)
			}
		}
	}
}

func (c urlConverter) context(ctx []section.ContentHierarchy) {
	for i := range ctx {
		c.richText(&ctx[i].Heading)
		for j := range ctx[i].ContentBefore {
			c.richText(&ctx[i].ContentBefore[j])
		}
		for j := range ctx[i].ContentAfter {
			c.richText(&ctx[i].ContentAfter[j])
		}
	}
}
