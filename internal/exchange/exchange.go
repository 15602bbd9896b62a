// Package exchange reads and writes the portable JSON export file.
package exchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"finora/internal/core"
)

// ErrInvalidFormat wraps every decoding failure.
var ErrInvalidFormat = errors.New("invalid file format")

// required top-level collections an import must carry.
var required = []string{"accounts", "categories", "transactions"}

// Encode writes data as indented JSON. Amount-like fields always carry a
// fractional digit.
func Encode(w io.Writer, data core.FinanceData) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data.Normalized()); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// Decode parses an export file. The accounts, categories and transactions
// collections are mandatory; the rest default to empty.
func Decode(r io.Reader) (core.FinanceData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return core.FinanceData{}, fmt.Errorf("read import: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return core.FinanceData{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	for _, k := range required {
		v, ok := probe[k]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return core.FinanceData{}, fmt.Errorf("%w: missing %q", ErrInvalidFormat, k)
		}
	}

	var data core.FinanceData
	if err := json.Unmarshal(raw, &data); err != nil {
		return core.FinanceData{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return data.Normalized(), nil
}

// Filename is the suggested download name for an export made at now.
func Filename(now time.Time) string {
	return "finance-data-" + now.Format(time.DateOnly) + ".json"
}
