package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reBlockOpen  = regexp.MustCompile(`<(div|p|br|li|td|tr|h[1-6])(\s[^>]*)?/?>`)
	reBlockClose = regexp.MustCompile(`</(div|p|li|td|tr|h[1-6])>`)
)

type ReadableArticle struct {
	Title   string
	Text    string
	Excerpt string
}

// Readable runs readability over an archived page and flattens the main
// content to single-spaced text.
func Readable(raw []byte, pageURL *url.URL) (*ReadableArticle, error) {
	article, err := readability.FromReader(utf8Reader(raw), pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(spaceBlocks(article.Content))))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, figure, aside").Remove()

	return &ReadableArticle{
		Title:   article.Title,
		Text:    normalizeText(doc.Text()),
		Excerpt: article.Excerpt,
	}, nil
}

// spaceBlocks pads block-level tags so adjacent blocks do not run together in Text().
func spaceBlocks(html string) string {
	html = reBlockOpen.ReplaceAllString(html, " $0")
	return reBlockClose.ReplaceAllString(html, "$0 ")
}

func normalizeText(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
