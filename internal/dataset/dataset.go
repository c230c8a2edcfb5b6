// Package dataset serializes a stage's rows to a comma-separated file and
// owns the atomic file replacement both stages use.
package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Write replaces the file at path with header followed by rows. The file is
// built next to its destination and renamed into place, so readers never see
// a truncated dataset.
func Write(path string, header []string, rows [][]string) error {
	for i, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("row %d has %d fields, header has %d", i, len(row), len(header))
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	return replace(path, func(bw *bufio.Writer) error {
		w := csv.NewWriter(bw)
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := w.WriteAll(rows); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		return nil
	})
}

// WriteFile stores data at path through the same temp-and-rename step as
// Write. The parent directory must exist.
func WriteFile(path string, data []byte) error {
	return replace(path, func(bw *bufio.Writer) error {
		_, err := bw.Write(data)
		return err
	})
}

func replace(path string, fill func(*bufio.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}

// Read loads a dataset written by Write, header first.
func Read(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return csv.NewReader(bufio.NewReader(f)).ReadAll()
}
