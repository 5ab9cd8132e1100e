package domain

import (
	"fmt"
	"strings"
	"time"
)

// Month is a calendar year-month bucket.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth accepts YYYY-MM and, for convenience, a full YYYY-MM-DD date.
func ParseMonth(raw string) (Month, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return MonthOf(t), nil
		}
	}
	return Month{}, WrapError(ErrInvalidInput, "parse month", fmt.Errorf("expected YYYY-MM, got %q", raw))
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Ordinal counts months since year zero, so consecutive months differ by one.
func (m Month) Ordinal() int {
	return m.Year*12 + int(m.Month) - 1
}

func (m Month) Before(other Month) bool {
	return m.Ordinal() < other.Ordinal()
}

func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) Next() Month {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(text []byte) error {
	parsed, err := ParseMonth(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
