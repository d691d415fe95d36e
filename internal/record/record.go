// Package record defines the job-application record and the pure functions
// that operate on collections of records.
package record

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for Record.Date.
const DateLayout = "2006-01-02"

// ErrValidation is matched by every *ValidationError via errors.Is.
var ErrValidation = errors.New("invalid record")

// Record is one job-application entry.
// Its JSON shape is shared by the local cache and by import/export.
type Record struct {
	// ===== Identity =====
	ID int64 `json:"id"` // client-generated, never assigned by the remote

	// ===== Required =====
	Company  string `json:"company"`
	Position string `json:"position"`
	Date     string `json:"date"` // YYYY-MM-DD
	Status   Status `json:"status"`

	// ===== Optional =====
	Source string `json:"source"`
	Notes  string `json:"notes"`
	Salary string `json:"salary"`
}

// ValidationError lists every problem found on a record.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, ", ")
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Normalize trims the required text fields and applies the status default.
// Unknown statuses are kept as-is so Validate can report them.
func (r Record) Normalize() Record {
	r.Company = strings.TrimSpace(r.Company)
	r.Position = strings.TrimSpace(r.Position)
	r.Date = strings.TrimSpace(r.Date)
	if strings.TrimSpace(string(r.Status)) == "" {
		r.Status = DefaultStatus
	}
	return r
}

// Validate checks the fields a user must supply when creating or editing a
// record. It returns nil or a *ValidationError.
func (r Record) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Company) == "" {
		problems = append(problems, "Company name is required")
	}
	if strings.TrimSpace(r.Position) == "" {
		problems = append(problems, "Position is required")
	}
	date := strings.TrimSpace(r.Date)
	if date == "" {
		problems = append(problems, "Date is required")
	} else if _, err := time.Parse(DateLayout, date); err != nil {
		problems = append(problems, "Date must be YYYY-MM-DD")
	}
	if r.Status != "" && !r.Status.IsValid() {
		problems = append(problems, `Unknown status "`+string(r.Status)+`"`)
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Patch carries optional replacements for an identity-preserving edit.
// Nil fields are left untouched.
type Patch struct {
	Company  *string
	Position *string
	Date     *string
	Status   *Status
	Source   *string
	Notes    *string
	Salary   *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Company == nil && p.Position == nil && p.Date == nil && p.Status == nil &&
		p.Source == nil && p.Notes == nil && p.Salary == nil
}

// Apply returns r with the patch fields applied. The ID is never changed.
func (p Patch) Apply(r Record) Record {
	if p.Company != nil {
		r.Company = *p.Company
	}
	if p.Position != nil {
		r.Position = *p.Position
	}
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Source != nil {
		r.Source = *p.Source
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.Salary != nil {
		r.Salary = *p.Salary
	}
	return r
}

// Clone returns a copy of records that shares no backing array with it.
// A nil input yields an empty, non-nil slice.
func Clone(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// IndexOf returns the position of the record with id, or -1.
func IndexOf(records []Record, id int64) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

// Append returns a new collection with r added at the end.
func Append(records []Record, r Record) []Record {
	out := make([]Record, 0, len(records)+1)
	out = append(out, records...)
	return append(out, r)
}

// Replace returns a new collection where the record with id has the patch
// applied, and whether it was found.
func Replace(records []Record, id int64, patch Patch) ([]Record, bool) {
	out := Clone(records)
	i := IndexOf(out, id)
	if i < 0 {
		return out, false
	}
	out[i] = patch.Apply(out[i])
	return out, true
}

// Remove returns a new collection without the record with id, and whether
// it was found.
func Remove(records []Record, id int64) ([]Record, bool) {
	out := make([]Record, 0, len(records))
	found := false
	for _, r := range records {
		if r.ID == id {
			found = true
			continue
		}
		out = append(out, r)
	}
	return out, found
}

// DuplicateID returns the first id that appears more than once.
func DuplicateID(records []Record) (int64, bool) {
	seen := make(map[int64]struct{}, len(records))
	for _, r := range records {
		if _, ok := seen[r.ID]; ok {
			return r.ID, true
		}
		seen[r.ID] = struct{}{}
	}
	return 0, false
}
