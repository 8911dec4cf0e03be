package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Date is a calendar day in YYYY-MM-DD form backing a postgres DATE
// column. The driver hands DATE values back as time.Time, so Scan
// normalizes both representations to the plain day string.
type Date string

func (d Date) Value() (driver.Value, error) {
	return string(d), nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = Date(v.Format("2006-01-02"))
	case string:
		*d = Date(v)
	case []byte:
		*d = Date(v)
	default:
		return fmt.Errorf("unsupported date source type %T", src)
	}
	return nil
}

// JSONB round-trips for the document columns. sqlx scans these straight
// from postgres jsonb values.

func (c TaskConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *TaskConfig) Scan(src interface{}) error {
	return scanJSON(src, c)
}

func (c CycleConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *CycleConfig) Scan(src interface{}) error {
	return scanJSON(src, c)
}

func (p ProgressData) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *ProgressData) Scan(src interface{}) error {
	return scanJSON(src, p)
}

func (a ActionData) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal(ActionData{})
	}
	return json.Marshal(a)
}

func (a *ActionData) Scan(src interface{}) error {
	return scanJSON(src, a)
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// UUIDSlice maps a postgres uuid[] column onto []uuid.UUID.
type UUIDSlice []uuid.UUID

func (s UUIDSlice) Value() (driver.Value, error) {
	arr := make(pq.StringArray, len(s))
	for i, id := range s {
		arr[i] = id.String()
	}
	return arr.Value()
}

func (s *UUIDSlice) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	out := make(UUIDSlice, 0, len(arr))
	for _, raw := range arr {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse uuid array element %q: %w", raw, err)
		}
		out = append(out, id)
	}
	*s = out
	return nil
}

func (s UUIDSlice) Contains(id uuid.UUID) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}
