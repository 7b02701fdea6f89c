package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fogcast/cron-runner/pkg/models"
	"github.com/fogcast/cron-runner/pkg/utils"
)

// RunDirLayout names the per-run directory after the UTC tick time.
const RunDirLayout = "2006-01-02T15-04-05Z"

// CSVSink stores one CSV file per model below a per-run directory.
type CSVSink struct {
	root string
}

func NewCSVSink(root string) *CSVSink {
	return &CSVSink{root: root}
}

// Root returns the data directory
func (s *CSVSink) Root() string {
	return s.root
}

// RunDirectory returns the directory for a run at t without creating it.
func (s *CSVSink) RunDirectory(t time.Time) string {
	return filepath.Join(s.root, t.UTC().Format(RunDirLayout))
}

// CreateRunDirectory creates the run directory for t.
func (s *CSVSink) CreateRunDirectory(t time.Time) (string, error) {
	dir := s.RunDirectory(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory %s: %w", dir, err)
	}
	return dir, nil
}

// RemoveRunDirectory deletes a run directory and everything in it. Removing a missing directory is not an error.
func (s *CSVSink) RemoveRunDirectory(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory %s: %w", dir, err)
	}
	return nil
}

// WriteTable writes table to <dir>/<model>.csv and returns the file path.
func (s *CSVSink) WriteTable(dir string, table *models.ForecastTable) (string, error) {
	path := filepath.Join(dir, utils.SafeFileName(table.Model)+".csv")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := EncodeTable(f, table); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, f.Close()
}

// EncodeTable writes the header (date + fields) and one line per row. Missing values become empty cells.
func EncodeTable(w io.Writer, table *models.ForecastTable) error {
	cw := csv.NewWriter(w)

	header := append([]string{models.DateColumn}, table.Fields...)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for _, row := range table.Rows {
		record[0] = row.Date.UTC().Format(models.DateLayout)
		for i, v := range row.Values {
			if math.IsNaN(v) {
				record[i+1] = ""
			} else {
				record[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadTable loads a CSV written by WriteTable. The model name is taken from the file name.
func ReadTable(path string) (*models.ForecastTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	model := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	table, err := DecodeTable(f, model)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return table, nil
}

// DecodeTable parses CSV content into a forecast table.
func DecodeTable(r io.Reader, model string) (*models.ForecastTable, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}
	if len(header) == 0 || header[0] != models.DateColumn {
		return nil, fmt.Errorf("first column must be %q", models.DateColumn)
	}

	table := &models.ForecastTable{Model: model, Fields: append([]string(nil), header[1:]...)}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		date, err := time.Parse(models.DateLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", record[0], err)
		}

		values := make([]float64, len(table.Fields))
		for i := range values {
			cell := strings.TrimSpace(record[i+1])
			if cell == "" {
				values[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q in column %s: %w", cell, table.Fields[i], err)
			}
			values[i] = v
		}
		table.Rows = append(table.Rows, models.ForecastRow{Date: date.UTC(), Values: values})
	}
	return table, nil
}

// ParseRunDirectory returns the run time encoded in a run directory name.
func ParseRunDirectory(name string) (time.Time, error) {
	return time.ParseInLocation(RunDirLayout, name, time.UTC)
}

// RunDirectories lists the run directory names below the data directory, oldest first.
func (s *CSVSink) RunDirectories() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
