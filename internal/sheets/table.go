package sheets

// Table is a fixed header plus the body rows produced by one run.
type Table struct {
	Header []string
	Body   [][]interface{}
}

// Values returns the header followed by the body, ready for writing.
func (t Table) Values() [][]interface{} {
	values := make([][]interface{}, 0, len(t.Body)+1)
	values = append(values, t.headerRow())
	return append(values, t.Body...)
}

func (t Table) headerRow() []interface{} {
	row := make([]interface{}, len(t.Header))
	for i, h := range t.Header {
		row[i] = h
	}
	return row
}

// Tab is one destination tab. Cap bounds the body rows kept after a merge;
// zero means the request-wide cap.
type Tab struct {
	Range string
	Table Table
	Cap   int
}
