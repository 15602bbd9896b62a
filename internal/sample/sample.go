// Package sample ships the demo dataset offered when a user has no local or
// remote data yet.
package sample

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"finora/internal/core"
	"finora/internal/exchange"
)

//go:embed sample.json
var embedded []byte

// Load returns the embedded dataset.
func Load() (core.FinanceData, error) {
	data, err := exchange.Decode(bytes.NewReader(embedded))
	if err != nil {
		return core.FinanceData{}, fmt.Errorf("decode embedded sample: %w", err)
	}
	return data, nil
}

// Loader returns a loader reading path, or the embedded dataset when path is
// empty.
func Loader(path string) func() (core.FinanceData, error) {
	if path == "" {
		return Load
	}
	return func() (core.FinanceData, error) {
		f, err := os.Open(path)
		if err != nil {
			return core.FinanceData{}, fmt.Errorf("open sample file: %w", err)
		}
		defer f.Close()
		data, err := exchange.Decode(f)
		if err != nil {
			return core.FinanceData{}, fmt.Errorf("decode sample file %s: %w", path, err)
		}
		return data, nil
	}
}
