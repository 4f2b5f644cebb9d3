package types

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// HeaderPair mirrors the header_pair composite Postgres type.
type HeaderPair struct {
	Name  string
	Value []byte
}

// HeaderPairs represents a postgres array of header_pair. Order and duplicate
// names are preserved.
type HeaderPairs []HeaderPair

// Value implements the driver.Valuer interface so the slice can be inserted.
func (h HeaderPairs) Value() (driver.Value, error) {
	if h == nil {
		return nil, nil
	}
	if len(h) == 0 {
		return "{}", nil
	}
	values := make([]string, 0, len(h))
	for _, pair := range h {
		composite, err := pair.toComposite()
		if err != nil {
			return nil, err
		}
		values = append(values, composite)
	}
	return pq.Array(values).Value()
}

// Scan implements sql.Scanner for the Postgres header_pair[] column.
func (h *HeaderPairs) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}

	var raw pq.StringArray
	if err := raw.Scan(value); err != nil {
		return err
	}

	result := make(HeaderPairs, 0, len(raw))
	for _, entry := range raw {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		pair, err := parseHeaderPair(entry)
		if err != nil {
			return err
		}
		result = append(result, pair)
	}

	*h = result
	return nil
}

func (p HeaderPair) toComposite() (string, error) {
	if strings.TrimSpace(p.Name) == "" {
		return "", fmt.Errorf("header pair: missing name")
	}
	parts := []string{
		quoteCompositeString(p.Name),
		quoteCompositeString(`\x` + hex.EncodeToString(p.Value)),
	}
	return "(" + strings.Join(parts, ",") + ")", nil
}

func parseHeaderPair(raw string) (HeaderPair, error) {
	fields, err := parseComposite(raw, 2)
	if err != nil {
		return HeaderPair{}, err
	}
	if strings.TrimSpace(fields[0]) == "" {
		return HeaderPair{}, fmt.Errorf("header pair: empty name")
	}

	encoded := fields[1]
	if encoded == "" {
		return HeaderPair{Name: fields[0]}, nil
	}
	if !strings.HasPrefix(encoded, `\x`) {
		return HeaderPair{}, fmt.Errorf("header pair: value %q is not hex bytea", encoded)
	}
	value, err := hex.DecodeString(encoded[2:])
	if err != nil {
		return HeaderPair{}, fmt.Errorf("header pair: decode value %w", err)
	}
	return HeaderPair{Name: fields[0], Value: value}, nil
}
