package record

import (
	"fmt"
	"strings"
)

// Status is a pipeline stage of an application.
type Status string

// Pipeline stages, in the order they are offered to users.
const (
	StatusApplied            Status = "Applied"
	StatusApplicationViewed  Status = "Application Viewed"
	StatusPhoneScreen        Status = "Phone Screen"
	StatusInterviewScheduled Status = "Interview Scheduled"
	StatusTechnicalInterview Status = "Technical Interview"
	StatusFinalInterview     Status = "Final Interview"
	StatusOfferReceived      Status = "Offer Received"
	StatusOfferAccepted      Status = "Offer Accepted"
	StatusRejected           Status = "Rejected"
	StatusWithdrawn          Status = "Withdrawn"
	StatusFollowUpNeeded     Status = "Follow-up Needed"
	StatusWaitingResponse    Status = "Waiting Response"
)

// DefaultStatus is the initial stage of every new application.
const DefaultStatus = StatusApplied

var statuses = []Status{
	StatusApplied,
	StatusApplicationViewed,
	StatusPhoneScreen,
	StatusInterviewScheduled,
	StatusTechnicalInterview,
	StatusFinalInterview,
	StatusOfferReceived,
	StatusOfferAccepted,
	StatusRejected,
	StatusWithdrawn,
	StatusFollowUpNeeded,
	StatusWaitingResponse,
}

// Statuses returns every known stage in display order.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// IsValid reports whether s is one of the known stages.
func (s Status) IsValid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// ParseStatus matches input against the known stages, ignoring case and
// surrounding whitespace. Unknown input is an error.
func ParseStatus(input string) (Status, error) {
	in := strings.TrimSpace(input)
	for _, known := range statuses {
		if strings.EqualFold(in, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", input)
}

// NormalizeStatus is the lenient form of ParseStatus used for data that
// comes from outside the store: unknown or empty values become
// DefaultStatus instead of being rejected.
func NormalizeStatus(input string) Status {
	s, err := ParseStatus(input)
	if err != nil {
		return DefaultStatus
	}
	return s
}
