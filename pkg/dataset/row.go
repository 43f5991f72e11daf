package dataset

// Header is the ordered, immutable set of column names shared by the rows of
// one source.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader builds a header from column names. Later duplicates shadow
// earlier ones on lookup.
func NewHeader(names []string) *Header {
	h := &Header{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, n := range h.names {
		h.index[n] = i
	}
	return h
}

// Names returns the column names in order.
func (h *Header) Names() []string {
	return h.names
}

// Len returns the number of columns.
func (h *Header) Len() int {
	return len(h.names)
}

// Index returns the position of name.
func (h *Header) Index(name string) (int, bool) {
	i, ok := h.index[name]
	return i, ok
}

// Row is an ordered mapping of column name to raw cell text.
// A row may carry fewer values than its header has columns; the trailing
// columns are then absent.
type Row struct {
	header *Header
	values []string
}

// NewRow pairs columns with values positionally.
func NewRow(columns, values []string) Row {
	return Row{header: NewHeader(columns), values: values}
}

func newRow(header *Header, values []string) Row {
	return Row{header: header, values: values}
}

// Columns returns the names of the columns present in the row, in order.
func (r Row) Columns() []string {
	if r.header == nil {
		return nil
	}
	names := r.header.names
	if len(r.values) < len(names) {
		names = names[:len(r.values)]
	}
	return names
}

// Len returns the number of present columns.
func (r Row) Len() int {
	return len(r.Columns())
}

// Get returns the raw value of column name.
func (r Row) Get(name string) (string, bool) {
	if r.header == nil {
		return "", false
	}
	i, ok := r.header.index[name]
	if !ok || i >= len(r.values) {
		return "", false
	}
	return r.values[i], true
}

// Record is one row read from a source. Target is set only when the source
// is labeled.
type Record struct {
	Row     Row
	Target  float64
	Labeled bool
	// Line is the 1-based line of the row in the input file
	Line int
}
