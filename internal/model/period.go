package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Period identifies one monthly analysis run.
type Period struct {
	Year  int
	Month int
}

// NewPeriod validates and returns a Period.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, eris.Errorf("model: month %d outside 1-12", month)
	}
	if year < 1 {
		return Period{}, eris.Errorf("model: invalid year %d", year)
	}
	return Period{Year: year, Month: month}, nil
}

// ParsePeriod accepts "2025-03" or "2025_03".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "-_")
	if sep <= 0 || sep == len(s)-1 {
		return Period{}, eris.Errorf("model: malformed period %q", s)
	}
	year, err := strconv.Atoi(s[:sep])
	if err != nil {
		return Period{}, eris.Wrapf(err, "model: parse year in %q", s)
	}
	month, err := strconv.Atoi(s[sep+1:])
	if err != nil {
		return Period{}, eris.Wrapf(err, "model: parse month in %q", s)
	}
	return NewPeriod(year, month)
}

// String renders the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Key renders the period as YYYY_MM, the output partition name.
func (p Period) Key() string {
	return fmt.Sprintf("%04d_%02d", p.Year, p.Month)
}

// Previous returns the month before p.
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Next returns the month after p.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Compare returns -1, 0 or 1.
func (p Period) Compare(o Period) int {
	switch {
	case p.Year < o.Year, p.Year == o.Year && p.Month < o.Month:
		return -1
	case p == o:
		return 0
	default:
		return 1
	}
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool { return p.Compare(o) < 0 }

// LastDay returns the last calendar day of the period in UTC.
func (p Period) LastDay() time.Time {
	return time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC)
}

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PeriodRange returns every period from..to inclusive. It returns nil when
// to is before from.
func PeriodRange(from, to Period) []Period {
	var out []Period
	for p := from; !to.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}
