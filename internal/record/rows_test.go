package record

import (
	"reflect"
	"testing"
	"time"
)

func counter() func() int64 {
	var n int64
	return func() int64 {
		n++
		return n
	}
}

// TestRowRoundTrip checks Record -> row -> Record is identity on the seven
// fields.
func TestRowRoundTrip(t *testing.T) {
	records := []Record{
		{ID: 10, Company: "Acme", Position: "Dev", Date: "2024-01-01", Status: StatusPhoneScreen,
			Source: "LinkedIn", Notes: "referral", Salary: "100k"},
		{ID: 11, Company: "Globex", Position: "SRE", Date: "2024-01-02", Status: StatusApplied},
	}

	got := FromRows(ToRows(records), counter())
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i := range records {
		want := records[i]
		want.ID = got[i].ID
		if got[i] != want {
			t.Errorf("record %d: got %+v, want %+v", i, got[i], want)
		}
	}
}

func TestToRows_HeaderAndWidth(t *testing.T) {
	rows := ToRows([]Record{{Company: "Acme"}})

	if !reflect.DeepEqual(rows[0], Header) {
		t.Errorf("header = %v, want %v", rows[0], Header)
	}
	if len(rows[1]) != len(Header) {
		t.Errorf("row width = %d, want %d", len(rows[1]), len(Header))
	}
}

func TestFromRows(t *testing.T) {
	rows := [][]string{
		Header,
		{"Acme", "Dev"},
		{"  ", "dropped"},
		{},
		{"Globex", "SRE", "2024-02-02", "Bogus", "site", "n", "90k", "extra"},
	}

	got := FromRows(rows, counter())
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(got), got)
	}

	if got[0].Company != "Acme" || got[0].Date != "" || got[0].Salary != "" {
		t.Errorf("short row mapped to %+v", got[0])
	}
	if got[0].Status != DefaultStatus {
		t.Errorf("missing status = %q, want %q", got[0].Status, DefaultStatus)
	}
	if got[1].Status != DefaultStatus {
		t.Errorf("Bogus status = %q, want %q", got[1].Status, DefaultStatus)
	}
	if got[1].Salary != "90k" {
		t.Errorf("Salary = %q, want 90k", got[1].Salary)
	}
	if got[0].ID == got[1].ID {
		t.Error("records share an id")
	}
}

func TestFromRows_HeaderOnly(t *testing.T) {
	for _, rows := range [][][]string{nil, {Header}} {
		got := FromRows(rows, counter())
		if got == nil || len(got) != 0 {
			t.Errorf("FromRows(%v) = %#v, want empty non-nil", rows, got)
		}
	}
}

func TestCellsConversion(t *testing.T) {
	values := [][]interface{}{{"a", 1.5, nil, true}}
	got := CellsToStrings(values)
	want := [][]string{{"a", "1.5", "", "true"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CellsToStrings() = %v, want %v", got, want)
	}

	back := StringsToCells(want)
	if back[0][1] != "1.5" {
		t.Errorf("StringsToCells() = %v", back)
	}
}

// TestIDGenerator_SameTick checks ids stay unique when the clock stalls.
func TestIDGenerator_SameTick(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	g := NewIDGeneratorWithClock(func() time.Time { return fixed })

	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		id := g.Next()
		if seen[id] {
			t.Fatalf("duplicate id %d after %d calls", id, i)
		}
		seen[id] = true
	}
}

func TestIDGenerator_Observe(t *testing.T) {
	g := NewIDGeneratorWithClock(func() time.Time { return time.UnixMilli(5) })
	g.Observe([]Record{{ID: 100}, {ID: 42}})

	if id := g.Next(); id != 101 {
		t.Errorf("Next() = %d, want 101", id)
	}
}

func TestComputeStats(t *testing.T) {
	today := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{Date: "2024-05-01", Status: StatusApplied},
		{Date: "2024-05-01", Status: StatusInterviewScheduled},
		{Date: "2024-05-02", Status: StatusOfferReceived},
	}

	st := ComputeStats(records, today, 0)
	if st.Total != 3 || st.Today != 1 {
		t.Errorf("Total/Today = %d/%d, want 3/1", st.Total, st.Today)
	}
	if st.DailyAverage != 1.5 {
		t.Errorf("DailyAverage = %v, want 1.5", st.DailyAverage)
	}
	if st.Goal != DefaultGoal {
		t.Errorf("Goal = %d, want %d", st.Goal, DefaultGoal)
	}
	if st.Progress != 0.75 {
		t.Errorf("Progress = %v, want 0.75", st.Progress)
	}
	if st.Interviewing != 1 || st.Offers != 1 {
		t.Errorf("Interviewing/Offers = %d/%d, want 1/1", st.Interviewing, st.Offers)
	}
	if st.ByStatus[StatusApplied] != 1 {
		t.Errorf("ByStatus[Applied] = %d, want 1", st.ByStatus[StatusApplied])
	}

	capped := ComputeStats(records, today, 2)
	if capped.Progress != 100 {
		t.Errorf("Progress = %v, want capped 100", capped.Progress)
	}

	empty := ComputeStats(nil, today, 10)
	if empty.DailyAverage != 0 || empty.Progress != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestFilter(t *testing.T) {
	records := []Record{
		{ID: 1, Company: "Acme", Position: "Dev", Status: StatusApplied},
		{ID: 2, Company: "Globex", Position: "SRE", Notes: "Great TEAM", Status: StatusRejected},
		{ID: 3, Company: "Initech", Position: "QA", Source: "team board", Status: StatusApplied},
	}

	tests := []struct {
		term, status string
		want         []int64
	}{
		{"", "", []int64{1, 2, 3}},
		{"", AllStatuses, []int64{1, 2, 3}},
		{"team", "", []int64{2, 3}},
		{"team", string(StatusApplied), []int64{3}},
		{"ACME", "", []int64{1}},
		{"nothing", "", nil},
	}
	for _, tt := range tests {
		got := Filter(records, tt.term, tt.status)
		var ids []int64
		for _, r := range got {
			ids = append(ids, r.ID)
		}
		if !reflect.DeepEqual(ids, tt.want) {
			t.Errorf("Filter(%q, %q) = %v, want %v", tt.term, tt.status, ids, tt.want)
		}
	}
}
