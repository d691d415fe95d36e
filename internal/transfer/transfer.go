// Package transfer reads and writes record collections as files for
// backup and import.
package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jobsheet/jobsheet/internal/record"
)

// DefaultFileName is the export file name used when none is given.
const DefaultFileName = "job_applications.json"

var (
	// ErrInvalidFormat means the payload parsed but is not a sequence of
	// records with a company and a position each.
	ErrInvalidFormat = errors.New("invalid import format")

	// ErrParse means the payload could not be parsed at all.
	ErrParse = errors.New("failed to parse import")
)

// UserMessage returns the text shown for an import error.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidFormat):
		return "Invalid JSON file format."
	case errors.Is(err, ErrParse):
		return "Error parsing JSON file."
	case err != nil:
		return err.Error()
	}
	return ""
}

// Format is a file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension, defaulting to JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or yaml)", name)
	}
}

// entry mirrors the record file shape. Company and position are pointers
// so a missing field can be told apart from an empty one.
type entry struct {
	ID       int64   `json:"id" yaml:"id"`
	Company  *string `json:"company" yaml:"company"`
	Position *string `json:"position" yaml:"position"`
	Date     string  `json:"date" yaml:"date"`
	Status   string  `json:"status" yaml:"status"`
	Source   string  `json:"source" yaml:"source"`
	Notes    string  `json:"notes" yaml:"notes"`
	Salary   string  `json:"salary" yaml:"salary"`
}

// Decode reads a collection. Every element must have a non-empty company
// and position.
func Decode(r io.Reader, format Format) ([]record.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read import: %w", err)
	}

	var raw interface{}
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if _, ok := raw.([]interface{}); !ok {
		return nil, ErrInvalidFormat
	}

	var entries []entry
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &entries)
	default:
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	records := make([]record.Record, 0, len(entries))
	for _, e := range entries {
		if e.Company == nil || strings.TrimSpace(*e.Company) == "" ||
			e.Position == nil || strings.TrimSpace(*e.Position) == "" {
			return nil, ErrInvalidFormat
		}
		records = append(records, record.Record{
			ID:       e.ID,
			Company:  *e.Company,
			Position: *e.Position,
			Date:     e.Date,
			Status:   record.Status(e.Status),
			Source:   e.Source,
			Notes:    e.Notes,
			Salary:   e.Salary,
		})
	}
	return records, nil
}

// Encode writes records. JSON is indented by two spaces.
func Encode(w io.Writer, records []record.Record, format Format) error {
	if records == nil {
		records = []record.Record{}
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}

// ReadFile decodes the file at path, choosing the format by extension.
func ReadFile(path string) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(bytes.NewReader(data), FormatFor(path))
}

// WriteFile encodes records to path, choosing the format by extension.
// The file is written to a temporary name first and renamed into place.
func WriteFile(path string, records []record.Record) error {
	var buf bytes.Buffer
	if err := Encode(&buf, records, FormatFor(path)); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}
