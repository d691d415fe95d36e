// Package remote talks to the spreadsheet backend that mirrors the local
// record collection. It performs exactly two operations: read the whole
// configured range, and overwrite the whole configured range.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jobsheet/jobsheet/internal/record"
)

// DefaultRange covers the seven record columns plus one spare.
const DefaultRange = "Applications!A:H"

// Config addresses the remote range.
type Config struct {
	SpreadsheetID string `json:"spreadsheetId"`
	Range         string `json:"range"`
	APIKey        string `json:"apiKey,omitempty"`
}

// WithDefaults fills in the default range.
func (c Config) WithDefaults() Config {
	c.SpreadsheetID = strings.TrimSpace(c.SpreadsheetID)
	if strings.TrimSpace(c.Range) == "" {
		c.Range = DefaultRange
	}
	return c
}

// Merge returns c with every non-empty field of override applied.
func (c Config) Merge(override Config) Config {
	if override.SpreadsheetID != "" {
		c.SpreadsheetID = override.SpreadsheetID
	}
	if override.Range != "" {
		c.Range = override.Range
	}
	if override.APIKey != "" {
		c.APIKey = override.APIKey
	}
	return c
}

// IsZero reports whether no spreadsheet is configured.
func (c Config) IsZero() bool {
	return strings.TrimSpace(c.SpreadsheetID) == ""
}

// Credentials authenticate a remote call. Either a bearer token or an API
// key is enough.
type Credentials struct {
	Token  string
	APIKey string
}

// Empty reports whether no usable credential is present.
func (c Credentials) Empty() bool {
	return c.Token == "" && c.APIKey == ""
}

// Adapter is the remote tabular backend.
//
// Presence of a spreadsheet id and credentials is the caller's concern;
// adapters do not check it.
type Adapter interface {
	// ReadAll returns the raw row matrix of the configured range,
	// header row included.
	ReadAll(ctx context.Context, cfg Config, creds Credentials) ([][]string, error)

	// OverwriteAll replaces the configured range with the header row
	// followed by one row per record.
	OverwriteAll(ctx context.Context, cfg Config, creds Credentials, records []record.Record) error
}

// ErrUnavailable is matched by every *Error via errors.Is.
var ErrUnavailable = errors.New("remote unavailable")

// Kind classifies a remote failure.
type Kind int

const (
	// KindStatus is any non-2xx status without a more specific kind.
	KindStatus Kind = iota
	// KindForbidden is HTTP 403: bad credentials or quota exceeded.
	KindForbidden
	// KindNotFound is HTTP 404: unknown or inaccessible spreadsheet.
	KindNotFound
	// KindTransport is a failure before any HTTP status was received,
	// including timeouts.
	KindTransport
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a failed remote call.
type Error struct {
	Op         string // "read" or "overwrite"
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindForbidden:
		msg = "API key invalid or quota exceeded"
	case KindNotFound:
		msg = "Spreadsheet not found or not publicly accessible"
	case KindStatus:
		msg = fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	default:
		msg = "network error"
		if e.Err != nil {
			msg = e.Err.Error()
		}
	}
	if e.Op != "" {
		return e.Op + " failed: " + msg
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrUnavailable.
func (e *Error) Is(target error) bool {
	return target == ErrUnavailable
}

// StatusError builds the Error for a non-2xx response.
func StatusError(op string, code int, cause error) *Error {
	kind := KindStatus
	switch code {
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusNotFound:
		kind = KindNotFound
	}
	return &Error{Op: op, Kind: kind, StatusCode: code, Err: cause}
}

// KindOf returns the kind of a remote error and whether err is one.
func KindOf(err error) (Kind, bool) {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind, true
	}
	return 0, false
}

// tailRange returns the part of the A1 range rng below its first n rows,
// such as "Applications!A4:H" for "Applications!A:H" and n = 3. It returns
// "" when rng is bounded and holds no more than n rows. Named ranges and
// other forms without a column span are an error.
func tailRange(rng string, n int) (string, error) {
	sheet, cells := "", rng
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		sheet, cells = rng[:i+1], rng[i+1:]
	}
	from, to, ok := strings.Cut(cells, ":")
	if !ok {
		return "", fmt.Errorf("range %q has no column span", rng)
	}
	fromCol, fromRow, ok := splitCell(from)
	if !ok {
		return "", fmt.Errorf("range %q: bad start cell %q", rng, from)
	}
	toCol, toRow, ok := splitCell(to)
	if !ok {
		return "", fmt.Errorf("range %q: bad end cell %q", rng, to)
	}

	if fromRow == 0 {
		fromRow = 1
	}
	start := fromRow + n
	end := toCol
	if toRow > 0 {
		if start > toRow {
			return "", nil
		}
		end += strconv.Itoa(toRow)
	}
	return fmt.Sprintf("%s%s%d:%s", sheet, fromCol, start, end), nil
}

// splitCell splits "AB12" into "AB" and 12. The row is 0 when absent.
func splitCell(cell string) (col string, row int, ok bool) {
	i := 0
	for i < len(cell) && (cell[i] >= 'A' && cell[i] <= 'Z' || cell[i] >= 'a' && cell[i] <= 'z') {
		i++
	}
	if i == 0 {
		return "", 0, false
	}
	if i == len(cell) {
		return cell[:i], 0, true
	}
	row, err := strconv.Atoi(cell[i:])
	if err != nil || row < 1 {
		return "", 0, false
	}
	return cell[:i], row, true
}
