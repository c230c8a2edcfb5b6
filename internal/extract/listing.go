package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"press_archive/internal/models"
	"press_archive/internal/naming"
)

// ListingSelectors locate the press-release stream and the fields of each entry.
type ListingSelectors struct {
	Container  string `yaml:"container"`
	Entry      string `yaml:"entry"`
	Headline   string `yaml:"headline"`
	Link       string `yaml:"link"`
	MetaAnchor string `yaml:"meta_anchor"`
}

// DefaultListingSelectors match the Yahoo Finance press-release stream markup.
func DefaultListingSelectors() ListingSelectors {
	return ListingSelectors{
		Container:  `div#summaryPressStream-0-Stream`,
		Entry:      `li[class~="js-stream-content"][class~="Pos(r)"]`,
		Headline:   `h3[class~="Mb(5px)"]`,
		Link:       `a[href]`,
		MetaAnchor: `div[class~="C(#959595)"][class~="Fz(11px)"]`,
	}
}

// Candidate is one listing entry, either extracted or rejected.
type Candidate struct {
	Index int
	Entry models.ArticleEntry
	Err   error
}

type Listing struct {
	sel    ListingSelectors
	origin string
}

func NewListing(sel ListingSelectors, origin string) *Listing {
	return &Listing{sel: sel, origin: origin}
}

// Entries returns every entry of the stream in document order. A missing
// stream container is an error for the whole document; a malformed entry is
// reported on its own Candidate.
func (l *Listing) Entries(doc *goquery.Document) ([]Candidate, error) {
	stream := doc.Find(l.sel.Container).First()
	if stream.Length() == 0 {
		return nil, fmt.Errorf("%w: stream container %s", models.ErrShapeMismatch, l.sel.Container)
	}

	nodes := stream.Find(l.sel.Entry)
	out := make([]Candidate, 0, nodes.Length())
	nodes.Each(func(i int, node *goquery.Selection) {
		entry, err := l.Entry(node)
		out = append(out, Candidate{Index: i, Entry: entry, Err: err})
	})

	return out, nil
}

// Entry extracts headline, absolute link, source and date from one stream node.
func (l *Listing) Entry(node *goquery.Selection) (models.ArticleEntry, error) {
	var entry models.ArticleEntry

	headline := node.Find(l.sel.Headline).First()
	if headline.Length() == 0 {
		return entry, fmt.Errorf("%w: headline", models.ErrShapeMismatch)
	}
	entry.Title = text(headline)

	href, ok := node.Find(l.sel.Link).First().Attr("href")
	if !ok {
		return entry, fmt.Errorf("%w: link", models.ErrShapeMismatch)
	}
	link, err := naming.ResolveLink(l.origin, href)
	if err != nil {
		return entry, err
	}
	entry.Link = link

	anchor := node.Find(l.sel.MetaAnchor).First()
	if anchor.Length() == 0 {
		return entry, fmt.Errorf("%w: source/date anchor", models.ErrShapeMismatch)
	}

	spans := spansAfter(anchor, 2)
	if len(spans) < 2 {
		return entry, fmt.Errorf("%w: source/date spans", models.ErrShapeMismatch)
	}
	entry.Source = text(spans[0])
	entry.Date = text(spans[1])

	return entry, nil
}

// spansAfter collects up to n span elements that follow the start of anchor
// in document order: its own descendants first, then its following siblings.
func spansAfter(anchor *goquery.Selection, n int) []*goquery.Selection {
	var out []*goquery.Selection

	collect := func(s *goquery.Selection) bool {
		s.EachWithBreak(func(_ int, span *goquery.Selection) bool {
			out = append(out, span)
			return len(out) < n
		})
		return len(out) < n
	}

	if !collect(anchor.Find("span")) {
		return out
	}

	anchor.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
		if goquery.NodeName(sib) == "span" {
			out = append(out, sib)
			if len(out) >= n {
				return false
			}
		}
		return collect(sib.Find("span"))
	})

	return out
}
