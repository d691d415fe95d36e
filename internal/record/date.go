package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseDate turns user input into a YYYY-MM-DD date. ISO dates pass
// through; anything else ("today", "yesterday", "last friday") is resolved
// relative to now. Empty input yields today's date.
func ParseDate(input string, now time.Time) (string, error) {
	in := strings.TrimSpace(input)
	if in == "" {
		return now.Format(DateLayout), nil
	}
	if t, err := time.Parse(DateLayout, in); err == nil {
		return t.Format(DateLayout), nil
	}
	switch strings.ToLower(in) {
	case "today":
		return now.Format(DateLayout), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(DateLayout), nil
	}

	res, err := dateParser.Parse(in, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", input, err)
	}
	if res == nil {
		return "", fmt.Errorf("unrecognized date %q", input)
	}
	return res.Time.Format(DateLayout), nil
}
