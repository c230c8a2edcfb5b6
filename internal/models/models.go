package models

import (
	"errors"
	"fmt"
)

var (
	ErrInputUnreadable = errors.New("input unreadable")
	ErrShapeMismatch   = errors.New("expected element missing")
	ErrFetchFailed     = errors.New("fetch failed")
	ErrWriteFailed     = errors.New("write failed")
	ErrBadPath         = errors.New("path does not match archive layout")
)

var (
	ArchiveHeader    = []string{"ID", "Ticker", "Title", "Site", "Source", "Date", "File Path"}
	ValidationHeader = []string{"ID", "Title", "Date"}
)

// ArticleEntry is one press release found in a listing document.
type ArticleEntry struct {
	Title  string
	Link   string
	Source string
	Date   string
}

type ArchiveRow struct {
	ID       string `bson:"_id"`
	Ticker   string `bson:"ticker"`
	Title    string `bson:"title"`
	Site     string `bson:"site"`
	Source   string `bson:"source"`
	Date     string `bson:"date"`
	FilePath string `bson:"file_path"`
}

// Record returns the row in ArchiveHeader column order.
func (r ArchiveRow) Record() []string {
	return []string{r.ID, r.Ticker, r.Title, r.Site, r.Source, r.Date, r.FilePath}
}

type ValidationRow struct {
	ID    string `bson:"_id"`
	Title string `bson:"title"`
	Date  string `bson:"date"`
}

// Record returns the row in ValidationHeader column order.
func (r ValidationRow) Record() []string {
	return []string{r.ID, r.Title, r.Date}
}

// Skip records an item that was dropped from a dataset and why.
type Skip struct {
	Ticker string
	Item   string
	Err    error
}

func (s Skip) Error() string {
	if s.Ticker == "" {
		return fmt.Sprintf("%s: %v", s.Item, s.Err)
	}
	return fmt.Sprintf("%s %s: %v", s.Ticker, s.Item, s.Err)
}

func (s Skip) Unwrap() error {
	return s.Err
}

type ArchiveResult struct {
	Rows  []ArchiveRow
	Skips []Skip
}

type ValidationResult struct {
	Rows  []ValidationRow
	Skips []Skip
}

// Records converts rows to CSV records, preserving order.
func (r *ArchiveResult) Records() [][]string {
	out := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row.Record())
	}
	return out
}

func (r *ValidationResult) Records() [][]string {
	out := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row.Record())
	}
	return out
}
