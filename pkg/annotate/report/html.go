package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/classify"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/ingest"
)

const pageTitle = "Shared annotations"

const highlightScript = `
function highlight(ev) {
  const id = ev.target.dataset.id;
  const start = Number.parseInt(ev.target.dataset.start, 10);
  const end = Number.parseInt(ev.target.dataset.end, 10);
  for (const span of document.querySelectorAll("#entry-" + CSS.escape(id) + " p span")) {
    const idx = Number.parseInt(span.dataset.idx, 10);
    if (idx >= start && idx <= end) {
      span.classList.add("highlight");
    }
  }
}

function unhighlight(ev) {
  for (const span of document.querySelectorAll("#entry-" + CSS.escape(ev.target.dataset.id) + " span.highlight")) {
    span.classList.remove("highlight");
  }
}

document.addEventListener("DOMContentLoaded", () => {
  for (const span of document.querySelectorAll("li span")) {
    span.addEventListener("mouseenter", highlight);
    span.addEventListener("mouseleave", unhighlight);
  }
});
`

const highlightStyle = `
.highlight {
  background: #ffff00;
}
`

// Entry is one reconciled annotation listed under its document.
type Entry struct {
	DocumentID ingest.DocumentID
	Start      int
	End        int
	Text       string
	Label      string
}

// Entries lists the annotations of one document that carry a label: agreed
// annotations with their shared label, then adjudicated divergent ones with
// their final label. The result is stably sorted by anchor start.
func Entries(outcomes []classify.Outcome) []Entry {
	var agreed, adjudicated []Entry
	for _, out := range outcomes {
		label, ok := out.Label()
		if !ok {
			continue
		}
		anchor := out.Annotation.AnchorContribution()
		e := Entry{
			DocumentID: out.Annotation.DocumentID,
			Start:      anchor.Start,
			End:        anchor.End,
			Text:       anchor.Text,
			Label:      label,
		}
		if out.Class == classify.NonDivergent {
			agreed = append(agreed, e)
		} else {
			adjudicated = append(adjudicated, e)
		}
	}
	entries := append(agreed, adjudicated...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Start < entries[j].Start
	})
	return entries
}

// WriteHTML renders every document's request text one character per span,
// followed by the list of its labelled annotations.
func WriteHTML(w io.Writer, docs []ingest.Document, byDocument map[ingest.DocumentID][]classify.Outcome) error {
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	page := element(atom.Html)
	root.AppendChild(page)

	head := element(atom.Head)
	title := element(atom.Title)
	title.AppendChild(text(pageTitle))
	script := element(atom.Script)
	script.AppendChild(text(highlightScript))
	style := element(atom.Style)
	style.AppendChild(text(highlightStyle))
	appendLines(head, title, script, style)
	page.AppendChild(head)

	body := element(atom.Body)
	h1 := element(atom.H1)
	h1.AppendChild(text(pageTitle))
	children := []*html.Node{h1}
	for _, doc := range docs {
		children = append(children, section(doc, Entries(byDocument[doc.ID])))
	}
	appendLines(body, children...)
	page.AppendChild(body)

	if err := html.Render(w, root); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

func section(doc ingest.Document, entries []Entry) *html.Node {
	id := string(doc.ID)
	sec := element(atom.Section, attr("id", "entry-"+id))

	h2 := element(atom.H2)
	h2.AppendChild(text(id))

	p := element(atom.P)
	idx := 0
	for _, r := range doc.Request() {
		idx++
		ch := element(atom.Span, attr("data-idx", strconv.Itoa(idx)))
		ch.AppendChild(text(string(r)))
		p.AppendChild(ch)
	}
	if len(entries) == 0 {
		appendLines(sec, h2, p)
		return sec
	}

	ol := element(atom.Ol)
	items := make([]*html.Node, 0, len(entries))
	for _, e := range entries {
		span := element(atom.Span,
			attr("data-id", string(e.DocumentID)),
			attr("data-start", strconv.Itoa(e.Start)),
			attr("data-end", strconv.Itoa(e.End)),
		)
		span.AppendChild(text(e.Label + ": " + e.Text))
		li := element(atom.Li)
		li.AppendChild(span)
		items = append(items, li)
	}
	appendLines(ol, items...)
	appendLines(sec, h2, p, ol)
	return sec
}

// appendLines appends children to parent, each on its own line.
func appendLines(parent *html.Node, children ...*html.Node) {
	for _, c := range children {
		parent.AppendChild(text("\n"))
		parent.AppendChild(c)
	}
	parent.AppendChild(text("\n"))
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a, Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}
