package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"press_archive/internal/extract"
	"press_archive/internal/logger"
	"press_archive/internal/models"
	"press_archive/internal/naming"
)

// ReadList loads a line-delimited file list. Blank lines are ignored and
// surrounding whitespace is trimmed. An unreadable list is fatal for the stage.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInputUnreadable, err)
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInputUnreadable, err)
	}

	return paths, nil
}

// Validator re-reads archived articles and recovers their canonical headline
// and machine-readable timestamp. Identity comes from the file path only.
type Validator struct {
	sel extract.ArticleSelectors
	ext string
	log logger.Logger
}

func NewValidator(sel extract.ArticleSelectors, ext string, log logger.Logger) *Validator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Validator{sel: sel, ext: ext, log: log}
}

// Run validates paths in input order. A file that cannot be identified,
// opened or fully extracted is skipped; cancellation stops the loop early and
// returns the rows gathered so far.
func (v *Validator) Run(ctx context.Context, paths []string) (*models.ValidationResult, error) {
	res := &models.ValidationResult{}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		row, err := v.Validate(p)
		if err != nil {
			res.Skips = append(res.Skips, models.Skip{Item: p, Err: err})
			v.log.Warn("Skipped file", logger.String("path", p), logger.Error(err))
			continue
		}

		res.Rows = append(res.Rows, row)
	}

	v.log.Info("Validation finished",
		logger.Int("rows", len(res.Rows)),
		logger.Int("skipped", len(res.Skips)),
	)

	return res, nil
}

// Validate extracts one row from the archived file at p.
func (v *Validator) Validate(p string) (models.ValidationRow, error) {
	id, err := naming.IDFromPath(p, v.ext)
	if err != nil {
		return models.ValidationRow{}, err
	}

	doc, err := extract.Open(p)
	if err != nil {
		return models.ValidationRow{}, err
	}

	title, err := extract.Headline(doc, v.sel)
	if err != nil {
		return models.ValidationRow{}, err
	}

	ts, err := extract.Timestamp(doc, v.sel)
	if err != nil {
		return models.ValidationRow{}, err
	}

	return models.ValidationRow{ID: id, Title: title, Date: ts}, nil
}
