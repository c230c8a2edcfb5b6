// Package extract turns saved HTML into the typed values the archiver and
// validator need. All document navigation goes through goquery.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"press_archive/internal/models"
)

// Open reads a saved HTML document from disk and parses it.
func Open(path string) (*goquery.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInputUnreadable, err)
	}

	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrInputUnreadable, path, err)
	}

	return doc, nil
}

// Parse decodes raw to UTF-8 and builds a document tree. The encoding comes
// from a BOM or <meta charset>; undeclared input that is valid UTF-8 is kept as is.
func Parse(raw []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(utf8Reader(raw))
}

func utf8Reader(raw []byte) io.Reader {
	enc, name, certain := charset.DetermineEncoding(raw, "text/html")
	if name == "utf-8" || (!certain && name == "windows-1252" && utf8.Valid(raw)) {
		return bytes.NewReader(raw)
	}
	return enc.NewDecoder().Reader(bytes.NewReader(raw))
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
