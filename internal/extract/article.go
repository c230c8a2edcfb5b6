package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"press_archive/internal/models"
)

// ArticleSelectors locate the canonical headline and publish time on an article page.
type ArticleSelectors struct {
	Headline string `yaml:"headline"`
	Time     string `yaml:"time"`
	TimeAttr string `yaml:"time_attr"`
}

func DefaultArticleSelectors() ArticleSelectors {
	return ArticleSelectors{
		Headline: `h1[data-test-locator="headline"]`,
		Time:     `time`,
		TimeAttr: `datetime`,
	}
}

// Headline returns the text of the first headline element.
func Headline(doc *goquery.Document, sel ArticleSelectors) (string, error) {
	h := doc.Find(sel.Headline).First()
	if h.Length() == 0 {
		return "", fmt.Errorf("%w: headline %s", models.ErrShapeMismatch, sel.Headline)
	}
	return text(h), nil
}

// Timestamp returns the machine-readable attribute of the first time element,
// never its display text.
func Timestamp(doc *goquery.Document, sel ArticleSelectors) (string, error) {
	t := doc.Find(sel.Time).First()
	if t.Length() == 0 {
		return "", fmt.Errorf("%w: time element %s", models.ErrShapeMismatch, sel.Time)
	}

	v, ok := t.Attr(sel.TimeAttr)
	if !ok {
		return "", fmt.Errorf("%w: %s has no %s attribute", models.ErrShapeMismatch, sel.Time, sel.TimeAttr)
	}
	return v, nil
}
