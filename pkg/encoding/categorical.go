// Package encoding turns raw rows into fixed-length numeric feature vectors.
//
// # Overview
//
// Encoding has two parts:
//   - A categorical Mapping, built once from a fixed symbol domain, that turns
//     a symbol into an indicator vector (one-hot). Unknown symbols encode to
//     the all-zero vector.
//   - A Vectorizer that enriches a row (numeric columns pass through, the
//     categorical column is replaced by its one-hot slots) and reads the
//     enriched values in feature order.
//
// The feature order and mapping are plain data: training derives them from
// the first row and persists them, inference loads them and builds its own
// Vectorizer. A Vectorizer is read-only after construction and safe for
// concurrent use.
//
// # Basic Usage
//
//	mapping, _ := encoding.NewMapping([]string{"M", "F", "I"})
//	cat := &encoding.Categorical{Column: "Sex", Mapping: mapping}
//
//	v, err := encoding.NewVectorizer(featureOrder, cat, "id")
//	vec, err := v.Vectorize(row)
package encoding

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Mapping is an injective symbol -> zero-based slot index map.
type Mapping map[string]int

// NewMapping builds a mapping from an ordered domain: the i-th symbol gets
// slot i.
func NewMapping(domain []string) (Mapping, error) {
	if len(domain) == 0 {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "categorical domain is empty")
	}
	m := make(Mapping, len(domain))
	for i, s := range domain {
		if _, dup := m[s]; dup {
			return nil, tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "categorical domain contains a duplicate symbol").
				WithDetail("symbol", s)
		}
		m[s] = i
	}
	return m, nil
}

// Width returns the length of an indicator vector.
func (m Mapping) Width() int {
	return len(m)
}

// Symbols returns the domain ordered by slot index.
func (m Mapping) Symbols() []string {
	symbols := make([]string, 0, len(m))
	for s := range m {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool { return m[symbols[i]] < m[symbols[j]] })
	return symbols
}

// Validate checks that the mapping is dense: its indices are exactly
// 0..n-1, which also makes it injective.
func (m Mapping) Validate() error {
	seen := make([]bool, len(m))
	for s, i := range m {
		if i < 0 || i >= len(m) || seen[i] {
			return tabulaerrors.New(tabulaerrors.ErrorTypeArtifactCorrupt, "categorical mapping is not a dense injective index").
				WithDetail("symbol", s).
				WithDetail("index", i)
		}
		seen[i] = true
	}
	return nil
}

// Encode returns the indicator vector of symbol: 1 at its slot, 0 elsewhere.
// An unknown symbol yields the all-zero vector.
func Encode(symbol string, m Mapping) []float64 {
	out := make([]float64, len(m))
	EncodeInto(symbol, m, out)
	return out
}

// EncodeInto writes the indicator vector of symbol into dst, which must have
// length m.Width(). It reports whether symbol was known.
func EncodeInto(symbol string, m Mapping, dst []float64) bool {
	clear(dst)
	i, ok := m[symbol]
	if ok {
		dst[i] = 1
	}
	return ok
}

// SlotName names the one-hot slot of symbol in column, e.g. sex_M.
func SlotName(column, symbol string) string {
	return strings.ToLower(column) + "_" + symbol
}

// SlotNames returns the slot names of column in slot order.
func SlotNames(column string, m Mapping) []string {
	symbols := m.Symbols()
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = SlotName(column, s)
	}
	return names
}

// Categorical binds a mapping to the column it encodes.
type Categorical struct {
	Column  string
	Mapping Mapping
}
