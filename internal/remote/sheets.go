package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/jobsheet/jobsheet/internal/record"
)

// Sheets is the Adapter for the Google Sheets v4 values API.
type Sheets struct {
	endpoint string
	base     http.RoundTripper
	logger   *log.Logger
}

// SheetsOption configures a Sheets adapter.
type SheetsOption func(*Sheets)

// WithEndpoint points the adapter at another API root, e.g. a test server.
func WithEndpoint(endpoint string) SheetsOption {
	return func(s *Sheets) { s.endpoint = endpoint }
}

// WithTransport sets the base HTTP transport under the auth layer.
func WithTransport(rt http.RoundTripper) SheetsOption {
	return func(s *Sheets) { s.base = rt }
}

// WithLogger sets the adapter logger.
func WithLogger(logger *log.Logger) SheetsOption {
	return func(s *Sheets) { s.logger = logger }
}

// NewSheets returns a Sheets adapter.
func NewSheets(opts ...SheetsOption) *Sheets {
	s := &Sheets{
		base:   http.DefaultTransport,
		logger: log.New(os.Stderr, "[remote] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// service builds a Sheets client for one call. Credentials can change
// between calls, so nothing is cached.
func (s *Sheets) service(ctx context.Context, creds Credentials) (*sheets.Service, error) {
	var rt http.RoundTripper = s.base
	if creds.APIKey != "" {
		rt = &transport.APIKey{Key: creds.APIKey, Transport: rt}
	}
	if creds.Token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"}),
			Base:   rt,
		}
	}

	opts := []option.ClientOption{option.WithHTTPClient(&http.Client{Transport: rt})}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return svc, nil
}

// ReadAll implements Adapter.
func (s *Sheets) ReadAll(ctx context.Context, cfg Config, creds Credentials) ([][]string, error) {
	cfg = cfg.WithDefaults()
	svc, err := s.service(ctx, creds)
	if err != nil {
		return nil, &Error{Op: "read", Kind: KindTransport, Err: err}
	}

	resp, err := svc.Spreadsheets.Values.Get(cfg.SpreadsheetID, cfg.Range).Context(ctx).Do()
	if err != nil {
		return nil, classify("read", err)
	}

	rows := record.CellsToStrings(resp.Values)
	s.logger.Printf("Read %d rows from %s", len(rows), cfg.Range)
	return rows, nil
}

// OverwriteAll implements Adapter.
//
// The header and rows are written first; only then are the rows below
// them cleared, so a failed call never leaves the range emptier than the
// old contents.
func (s *Sheets) OverwriteAll(ctx context.Context, cfg Config, creds Credentials, records []record.Record) error {
	cfg = cfg.WithDefaults()
	svc, err := s.service(ctx, creds)
	if err != nil {
		return &Error{Op: "overwrite", Kind: KindTransport, Err: err}
	}

	rows := record.ToRows(records)
	body := &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         record.StringsToCells(rows),
	}
	resp, err := svc.Spreadsheets.Values.Update(cfg.SpreadsheetID, cfg.Range, body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return classify("overwrite", err)
	}
	s.logger.Printf("Wrote %d rows to %s", resp.UpdatedRows, cfg.Range)

	tail, err := tailRange(cfg.Range, len(rows))
	if err != nil {
		s.logger.Printf("Warning: rows below the new data were not cleared: %v", err)
		return nil
	}
	if tail == "" {
		return nil
	}
	if _, err := svc.Spreadsheets.Values.Clear(cfg.SpreadsheetID, tail, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return classify("overwrite", err)
	}
	return nil
}

// classify turns a client error into an *Error.
func classify(op string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return StatusError(op, gErr.Code, err)
	}
	return &Error{Op: op, Kind: KindTransport, Err: err}
}
