// Package remotetest provides an in-process stand-in for the spreadsheet
// values API, for tests of the remote adapter and the sync coordinator.
package remotetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Server serves the subset of the Sheets v4 values API used by the
// adapter: GET range, POST range:clear and PUT range.
//
// Like the real service, PUT overwrites only the rows it carries and
// clear honours the start row of its range.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	sheets     map[string][][]string
	failCode   int
	failMethod map[string]int
	delay      time.Duration
	requests   []Request
}

// Request is a request the server received.
type Request struct {
	Method        string
	Path          string
	Authorization string
	APIKey        string
}

// NewServer starts a server. Close it when done.
func NewServer() *Server {
	s := &Server{
		sheets:     make(map[string][][]string),
		failMethod: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Endpoint is the API root to hand to remote.WithEndpoint.
func (s *Server) Endpoint() string {
	return s.URL + "/"
}

// AddSpreadsheet creates an empty spreadsheet. Unknown ids answer 404.
func (s *Server) AddSpreadsheet(id string) {
	s.SetRows(id, nil)
}

// SetRows replaces the contents of a spreadsheet.
func (s *Server) SetRows(id string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[id] = cloneRows(rows)
}

// Rows returns the contents of a spreadsheet.
func (s *Server) Rows(id string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRows(s.sheets[id])
}

// FailWith makes every request answer code. Zero restores normal service.
func (s *Server) FailWith(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCode = code
}

// FailMethod makes requests with the given HTTP method answer code. Zero
// restores normal service for that method.
func (s *Server) FailMethod(method string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == 0 {
		delete(s.failMethod, method)
		return
	}
	s.failMethod[method] = code
}

// SetDelay holds every response for d before answering.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		APIKey:        r.URL.Query().Get("key"),
	})
	failCode := s.failCode
	if code, ok := s.failMethod[r.Method]; ok && failCode == 0 {
		failCode = code
	}
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if failCode != 0 {
		writeError(w, failCode, "injected failure")
		return
	}

	id, rng, ok := parsePath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported path "+r.URL.Path)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, exists := s.sheets[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Requested entity was not found.")
		return
	}

	switch {
	case r.Method == http.MethodGet:
		resp := map[string]interface{}{"range": rng, "majorDimension": "ROWS"}
		if len(rows) > 0 {
			resp["values"] = rows
		}
		writeJSON(w, resp)

	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":clear"):
		if keep := startRow(strings.TrimSuffix(rng, ":clear")) - 1; keep < len(rows) {
			if keep == 0 {
				s.sheets[id] = nil
			} else {
				s.sheets[id] = rows[:keep]
			}
		}
		writeJSON(w, map[string]interface{}{"spreadsheetId": id, "clearedRange": strings.TrimSuffix(rng, ":clear")})

	case r.Method == http.MethodPut:
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		next := make([][]string, len(body.Values))
		for i, row := range body.Values {
			cells := make([]string, len(row))
			for j, c := range row {
				if str, ok := c.(string); ok {
					cells[j] = str
				}
			}
			next[i] = cells
		}
		offset := startRow(rng) - 1
		merged := cloneRows(rows)
		for len(merged) < offset+len(next) {
			merged = append(merged, []string{})
		}
		copy(merged[offset:], next)
		s.sheets[id] = merged
		writeJSON(w, map[string]interface{}{
			"spreadsheetId": id,
			"updatedRange":  rng,
			"updatedRows":   len(next),
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// parsePath splits /v4/spreadsheets/{id}/values/{range}.
func parsePath(p string) (id, rng string, ok bool) {
	rest := strings.TrimPrefix(p, "/v4/spreadsheets/")
	if rest == p {
		return "", "", false
	}
	parts := strings.SplitN(rest, "/values/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// startRow returns the first row number of an A1 range such as
// "Sheet!A3:H", or 1 when the range starts at the top.
func startRow(rng string) int {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	from, _, _ := strings.Cut(rng, ":")
	from = strings.TrimLeft(from, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")
	if n, err := strconv.Atoi(from); err == nil && n > 0 {
		return n
	}
	return 1
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": msg,
		},
	})
}

func cloneRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}
