package record

import "strings"

// AllStatuses is the status filter value that matches every record.
const AllStatuses = "All"

// Filter returns the records whose company, position, source or notes
// contain term (case-insensitive) and whose status equals status. An empty
// term matches everything, as does an empty or "All" status.
func Filter(records []Record, term, status string) []Record {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if status != "" && status != AllStatuses && string(r.Status) != status {
			continue
		}
		if needle != "" && !matches(r, needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matches(r Record, needle string) bool {
	for _, field := range []string{r.Company, r.Position, r.Source, r.Notes} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
