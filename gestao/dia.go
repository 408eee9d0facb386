package gestao

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DiaLayout is the format of a Dia in JSON, query parameters and filters
const DiaLayout = "2006-01-02"

// Dia is a calendar day without time of day. It is stored as postgres date
// and serialized as "2006-01-02".
//
// The string form sorts like the day itself, the in-memory repository relies
// on that for ordering and range filters.
type Dia struct {
	t time.Time
}

// NovoDia returns the day of t in t's location
func NovoDia(t time.Time) Dia {
	return Dia{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// D returns the given day
func D(year int, month time.Month, day int) Dia {
	return Dia{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDia parses "2006-01-02"
func ParseDia(s string) (Dia, error) {
	t, err := time.Parse(DiaLayout, strings.TrimSpace(s))
	if err != nil {
		return Dia{}, fmt.Errorf("invalid day '%s', expected format 2006-01-02", s)
	}
	return Dia{t: t}, nil
}

// Time returns midnight UTC of the day
func (d Dia) Time() time.Time { return d.t }

// IsZero reports whether d is the zero day
func (d Dia) IsZero() bool { return d.t.IsZero() }

// Weekday returns the day of the week, time.Sunday is 0
func (d Dia) Weekday() time.Weekday { return d.t.Weekday() }

// AddDays returns d plus n days
func (d Dia) AddDays(n int) Dia { return Dia{t: d.t.AddDate(0, 0, n)} }

// Before reports whether d is before e
func (d Dia) Before(e Dia) bool { return d.t.Before(e.t) }

// After reports whether d is after e
func (d Dia) After(e Dia) bool { return d.t.After(e.t) }

// Equal reports whether d and e are the same day
func (d Dia) Equal(e Dia) bool { return d.t.Equal(e.t) }

// DiasAte returns the number of days from d to e, negative if e is before d
func (d Dia) DiasAte(e Dia) int {
	return int(e.t.Sub(d.t).Hours() / 24)
}

// PrimeiroDoMes returns the first day of d's month
func (d Dia) PrimeiroDoMes() Dia {
	return D(d.t.Year(), d.t.Month(), 1)
}

// UltimoDoMes returns the last day of d's month
func (d Dia) UltimoDoMes() Dia {
	return d.PrimeiroDoMes().AddDate(0, 1, -1)
}

// AddDate adds years, months and days like time.AddDate
func (d Dia) AddDate(years, months, days int) Dia {
	return Dia{t: d.t.AddDate(years, months, days)}
}

// String implements fmt.Stringer
func (d Dia) String() string {
	return d.t.Format(DiaLayout)
}

// Formatado returns the day as dd/mm/yyyy
func (d Dia) Formatado() string {
	return d.t.Format("02/01/2006")
}

// MarshalJSON implements json.Marshaler
func (d Dia) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler. Besides "2006-01-02" it accepts
// RFC3339 timestamps, of which only the date is kept.
func (d *Dia) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Dia{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = NovoDia(t)
		return nil
	}
	parsed, err := ParseDia(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Dia) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Dia) UnmarshalText(data []byte) error {
	parsed, err := ParseDia(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer
func (d Dia) Value() (driver.Value, error) {
	return d.t, nil
}

// Scan implements sql.Scanner
func (d *Dia) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = NovoDia(v)
		return nil
	case string:
		return d.UnmarshalText([]byte(v[:min(len(v), len(DiaLayout))]))
	case []byte:
		return d.UnmarshalText(v[:min(len(v), len(DiaLayout))])
	case nil:
		*d = Dia{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into Dia", src)
}
