package encoding

import (
	"strings"

	"github.com/ajitpratap0/tabula/pkg/dataset"
	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Enriched is a row after one-hot expansion: numeric columns keep their raw
// text and the categorical column is replaced by its slots.
type Enriched struct {
	names  []string
	values map[string]enrichedValue
}

type enrichedValue struct {
	raw     string
	num     float64
	encoded bool
}

// Names returns the enriched field names in first-seen order.
func (e *Enriched) Names() []string {
	return e.names
}

// Value returns the numeric value of an enriched field.
func (e *Enriched) Value(name string) (float64, error) {
	v, ok := e.values[name]
	if !ok {
		return 0, missingFeature(name)
	}
	if v.encoded {
		return v.num, nil
	}
	return coerce(name, v.raw)
}

// Enrich expands row. The id column is dropped and the numeric columns keep
// their first-seen order; the slots of the categorical column follow them,
// so they always end the enriched field set. cat may be nil when no column is
// one-hot encoded. A raw column whose name equals a generated slot name is a
// schema mismatch.
func Enrich(row dataset.Row, cat *Categorical, idColumn string) (*Enriched, error) {
	e := &Enriched{
		names:  make([]string, 0, row.Len()+catWidth(cat)),
		values: make(map[string]enrichedValue, row.Len()+catWidth(cat)),
	}

	symbol, hasSymbol := "", false
	for _, col := range row.Columns() {
		if col == idColumn {
			continue
		}
		raw, _ := row.Get(col)
		if cat != nil && col == cat.Column {
			symbol, hasSymbol = raw, true
			continue
		}
		if err := e.add(col, enrichedValue{raw: raw}); err != nil {
			return nil, err
		}
	}

	if hasSymbol {
		ind := Encode(symbol, cat.Mapping)
		for i, name := range SlotNames(cat.Column, cat.Mapping) {
			if err := e.add(name, enrichedValue{num: ind[i], encoded: true}); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

func (e *Enriched) add(name string, v enrichedValue) error {
	if _, dup := e.values[name]; dup {
		return tabulaerrors.New(tabulaerrors.ErrorTypeSchemaMismatch, "enriched field name is produced twice").
			WithDetail("field", name)
	}
	e.names = append(e.names, name)
	e.values[name] = v
	return nil
}

// Vectorize enriches row and reads its values in featureOrder. It is the
// reference form of Vectorizer.Vectorize.
func Vectorize(row dataset.Row, featureOrder []string, cat *Categorical, idColumn string) ([]float64, error) {
	e, err := Enrich(row, cat, idColumn)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(featureOrder))
	for i, name := range featureOrder {
		if out[i], err = e.Value(name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UnknownFunc is called with the column and symbol of every categorical
// value outside the mapping.
type UnknownFunc func(column, symbol string)

// Option configures a Vectorizer.
type Option func(*Vectorizer)

// WithUnknownHandler installs a callback for out-of-domain symbols. The
// callback must be safe for concurrent use if the Vectorizer is shared.
func WithUnknownHandler(fn UnknownFunc) Option {
	return func(v *Vectorizer) {
		v.onUnknown = fn
	}
}

// plan entries: a slot of the categorical column or a raw numeric column
type field struct {
	name string
	slot int // -1 for numeric columns
}

// Vectorizer produces vectors in a fixed feature order.
type Vectorizer struct {
	order     []string
	fields    []field
	cat       *Categorical
	idColumn  string
	slotNames []string
	hasSlots  bool
	onUnknown UnknownFunc
}

// NewVectorizer prepares vectorization for featureOrder. The order must be
// non-empty and free of duplicates.
func NewVectorizer(featureOrder []string, cat *Categorical, idColumn string, opts ...Option) (*Vectorizer, error) {
	if len(featureOrder) == 0 {
		return nil, tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "feature order is empty")
	}

	v := &Vectorizer{
		order:    append([]string(nil), featureOrder...),
		fields:   make([]field, len(featureOrder)),
		cat:      cat,
		idColumn: idColumn,
	}
	slots := map[string]int{}
	if cat != nil {
		v.slotNames = SlotNames(cat.Column, cat.Mapping)
		for i, name := range v.slotNames {
			slots[name] = i
		}
	}
	seen := make(map[string]struct{}, len(featureOrder))
	for i, name := range featureOrder {
		if _, dup := seen[name]; dup {
			return nil, tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "feature order contains a duplicate name").
				WithDetail("field", name)
		}
		seen[name] = struct{}{}

		f := field{name: name, slot: -1}
		if s, ok := slots[name]; ok {
			f.slot = s
			v.hasSlots = true
		}
		v.fields[i] = f
	}

	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Order returns the feature order.
func (v *Vectorizer) Order() []string {
	return v.order
}

// Width returns the vector length.
func (v *Vectorizer) Width() int {
	return len(v.order)
}

// Categorical returns the one-hot encoded column, or nil.
func (v *Vectorizer) Categorical() *Categorical {
	return v.cat
}

// Enrich expands row with the vectorizer's encoding.
func (v *Vectorizer) Enrich(row dataset.Row) (*Enriched, error) {
	return Enrich(row, v.cat, v.idColumn)
}

// Vectorize returns a fresh vector for row.
func (v *Vectorizer) Vectorize(row dataset.Row) ([]float64, error) {
	out := make([]float64, len(v.order))
	if err := v.VectorizeInto(row, out); err != nil {
		return nil, err
	}
	return out, nil
}

// VectorizeInto writes the vector of row into dst. len(dst) must equal the
// feature order length. It accepts and rejects exactly the rows Vectorize
// does; the unknown handler only sees rows that vectorize.
func (v *Vectorizer) VectorizeInto(row dataset.Row, dst []float64) error {
	if len(dst) != len(v.order) {
		return tabulaerrors.New(tabulaerrors.ErrorTypeConfig, "vector length does not match feature order").
			WithDetail("vector_length", len(dst)).
			WithDetail("feature_order_length", len(v.order))
	}

	symbol, hasSymbol := "", false
	symbolIdx := -1
	if v.cat != nil && v.cat.Column != v.idColumn {
		symbol, hasSymbol = row.Get(v.cat.Column)
	}
	if hasSymbol {
		for _, name := range v.slotNames {
			if _, clash := row.Get(name); clash && name != v.idColumn {
				return tabulaerrors.New(tabulaerrors.ErrorTypeSchemaMismatch, "enriched field name is produced twice").
					WithDetail("field", name)
			}
		}
		if idx, known := v.cat.Mapping[symbol]; known {
			symbolIdx = idx
		}
	}

	for i, f := range v.fields {
		if f.slot >= 0 {
			if !hasSymbol {
				return missingFeature(f.name)
			}
			dst[i] = 0
			if f.slot == symbolIdx {
				dst[i] = 1
			}
			continue
		}

		if f.name == v.idColumn || (v.cat != nil && f.name == v.cat.Column) {
			return missingFeature(f.name)
		}
		raw, ok := row.Get(f.name)
		if !ok {
			return missingFeature(f.name)
		}
		num, err := coerce(f.name, raw)
		if err != nil {
			return err
		}
		dst[i] = num
	}

	if v.hasSlots && hasSymbol && symbolIdx < 0 && v.onUnknown != nil {
		v.onUnknown(v.cat.Column, symbol)
	}
	return nil
}

func coerce(name, raw string) (float64, error) {
	num, err := dataset.ParseNumber(raw)
	if err == nil {
		return num, nil
	}
	if strings.TrimSpace(raw) == "" {
		return 0, missingFeature(name).WithDetail("reason", "empty value")
	}
	return 0, tabulaerrors.Wrap(err, tabulaerrors.ErrorTypeInvalidValue, "feature value is not a number").
		WithDetail("field", name).
		WithDetail("value", raw)
}

func missingFeature(name string) *tabulaerrors.Error {
	return tabulaerrors.New(tabulaerrors.ErrorTypeMissingFeature, "feature is absent from row").
		WithDetail("field", name)
}

func catWidth(cat *Categorical) int {
	if cat == nil {
		return 0
	}
	return cat.Mapping.Width()
}
