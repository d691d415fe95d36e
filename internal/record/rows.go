package record

import (
	"fmt"
	"strings"
)

// Header is the first row of the remote range. Columns map positionally
// onto the record fields.
var Header = []string{"Company", "Position", "Date", "Status", "Source", "Notes", "Salary"}

// ToRow converts a record to its seven-column row. Empty fields are still
// emitted so the row always has len(Header) cells.
func ToRow(r Record) []string {
	return []string{
		r.Company,
		r.Position,
		r.Date,
		string(r.Status),
		r.Source,
		r.Notes,
		r.Salary,
	}
}

// ToRows converts a collection to a row matrix, header first.
func ToRows(records []Record) [][]string {
	rows := make([][]string, 0, len(records)+1)
	header := make([]string, len(Header))
	copy(header, Header)
	rows = append(rows, header)
	for _, r := range records {
		rows = append(rows, ToRow(r))
	}
	return rows
}

// FromRow maps one data row onto a record without an id. Missing trailing
// cells become empty strings and unknown statuses become DefaultStatus.
func FromRow(row []string) Record {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return Record{
		Company:  cell(0),
		Position: cell(1),
		Date:     cell(2),
		Status:   NormalizeStatus(cell(3)),
		Source:   cell(4),
		Notes:    cell(5),
		Salary:   cell(6),
	}
}

// FromRows maps a row matrix read from the remote store onto records. The
// first row is always treated as the header and skipped. Rows whose company
// cell is blank are dropped. Each kept record gets an id from next.
func FromRows(rows [][]string, next func() int64) []Record {
	records := make([]Record, 0, len(rows))
	if len(rows) <= 1 {
		return records
	}
	for _, row := range rows[1:] {
		r := FromRow(row)
		if strings.TrimSpace(r.Company) == "" {
			continue
		}
		r.ID = next()
		records = append(records, r)
	}
	return records
}

// CellsToStrings converts the loosely-typed cell matrix returned by JSON
// APIs into strings.
func CellsToStrings(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			switch c := v.(type) {
			case nil:
				cells[j] = ""
			case string:
				cells[j] = c
			default:
				cells[j] = fmt.Sprint(c)
			}
		}
		rows[i] = cells
	}
	return rows
}

// StringsToCells is the inverse of CellsToStrings.
func StringsToCells(rows [][]string) [][]interface{} {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		values[i] = cells
	}
	return values
}
