package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Partial is a sub-fill closed before the remainder of its trade, carrying
// its own PnL contribution.
type Partial struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	PnL      decimal.Decimal `json:"pnl"`
}

// StringList is stored as a JSON array in a text column. A value that cannot
// be marshaled degrades to "[]" instead of failing the enclosing write:
// losing an annotation must never block financial persistence.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	return marshalJSONList(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	return scanJSONList(src, l)
}

// PartialList is stored as a JSON array in a text column, with the same
// degrade-to-empty contract as StringList.
type PartialList []Partial

// Value implements driver.Valuer.
func (l PartialList) Value() (driver.Value, error) {
	return marshalJSONList(l)
}

// Scan implements sql.Scanner.
func (l *PartialList) Scan(src interface{}) error {
	return scanJSONList(src, l)
}

func marshalJSONList(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil || len(b) == 0 || b[0] != '[' {
		return "[]", nil
	}
	return string(b), nil
}

func scanJSONList(src, dst interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into a JSON list column", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
