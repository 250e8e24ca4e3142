package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSON stores schemaless JSON documents in a database column.
type JSON json.RawMessage

// EmptyObject returns the canonical empty JSON object.
func EmptyObject() JSON {
	return JSON("{}")
}

// Value implements the driver.Valuer interface.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface.
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON("{}")
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	*j = JSON(bytes)
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = JSON(data)
	return nil
}

// AsObject decodes the document into a map. The second return value is
// false when the document is not a JSON object.
func (j JSON) AsObject() (map[string]interface{}, bool) {
	if len(j) == 0 {
		return map[string]interface{}{}, true
	}
	var m map[string]interface{}
	if err := json.Unmarshal(j, &m); err != nil {
		return nil, false
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, true
}

// IsObject reports whether the document is a JSON object (or empty).
func (j JSON) IsObject() bool {
	_, ok := j.AsObject()
	return ok
}

// HasKeys reports whether the document is an object with at least one key.
func (j JSON) HasKeys() bool {
	m, ok := j.AsObject()
	return ok && len(m) > 0
}
