package app

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"press_archive/internal/dataset"
	"press_archive/internal/extract"
	"press_archive/internal/models"
	"press_archive/internal/naming"
)

// ListArchive returns every archived article under base, i.e. files at
// {base}/{ticker}/{name}.{ext}, sorted. This is the list Validator reads.
func ListArchive(base, ext string) ([]string, error) {
	ext = "." + strings.TrimPrefix(ext, ".")
	if ext == "." {
		ext = "." + naming.DefaultExt
	}

	var paths []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		depth := len(strings.Split(filepath.ToSlash(rel), "/"))

		if d.IsDir() {
			if rel != "." && (depth > 1 || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		if depth == 2 && filepath.Ext(p) == ext && !strings.HasPrefix(d.Name(), ".") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInputUnreadable, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// WriteList stores paths one per line, the format ReadList expects.
func WriteList(path string, paths []string) error {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return dataset.WriteFile(path, []byte(b.String()))
}

// Report is what inspect prints for one archived file. Field errors are kept
// as text so a partially readable file still reports everything it can.
type Report struct {
	Path          string
	ID            string
	IDErr         string
	Title         string
	TitleErr      string
	Date          string
	DateErr       string
	ReadableTitle string
	Excerpt       string
	TextLength    int
}

// Inspect runs the validator extraction and readability over one file
// without failing on missing fields.
func Inspect(path string, sel extract.ArticleSelectors, ext string) (*Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInputUnreadable, err)
	}

	r := &Report{Path: path}

	if id, err := naming.IDFromPath(path, ext); err != nil {
		r.IDErr = err.Error()
	} else {
		r.ID = id
	}

	doc, err := extract.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInputUnreadable, err)
	}

	if title, err := extract.Headline(doc, sel); err != nil {
		r.TitleErr = err.Error()
	} else {
		r.Title = title
	}

	if ts, err := extract.Timestamp(doc, sel); err != nil {
		r.DateErr = err.Error()
	} else {
		r.Date = ts
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	article, err := extract.Readable(raw, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)})
	if err == nil {
		r.ReadableTitle = article.Title
		r.Excerpt = article.Excerpt
		r.TextLength = len(article.Text)
	}

	return r, nil
}
