package judge

import (
	"encoding/csv"
	"io"
	"strconv"
)

// Table is the row-per-subject result of a batch evaluation.  Each
// criterion contributes a value column and a reasoning column.
type Table struct {
	Keys []string
	Rows []Row
}

// Row is one evaluated subject.
type Row struct {
	SubjectID  string
	Evaluation *Evaluation
}

func newTable(keys []string) *Table {
	return &Table{Keys: append([]string(nil), keys...)}
}

func (t *Table) add(subjectID string, ev *Evaluation) {
	t.Rows = append(t.Rows, Row{SubjectID: subjectID, Evaluation: ev})
}

// Header returns the column names.
func (t *Table) Header() []string {
	h := make([]string, 0, 2+2*len(t.Keys))
	h = append(h, "subject_id")
	for _, k := range t.Keys {
		h = append(h, k, k+"_reasoning")
	}
	return append(h, "observations")
}

// Records returns the table body as strings.  Unanswered criteria are empty
// cells.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := make([]string, 0, 2+2*len(t.Keys))
		rec = append(rec, r.SubjectID)
		for _, k := range t.Keys {
			s := r.Evaluation.Score(k)
			var value, reasoning string
			if s.Value != nil {
				value = strconv.Itoa(*s.Value)
			}
			if s.Reasoning != nil {
				reasoning = *s.Reasoning
			}
			rec = append(rec, value, reasoning)
		}
		out = append(out, append(rec, r.Evaluation.Observations))
	}
	return out
}

// WriteCSV writes the header and all rows.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Records()); err != nil {
		return err
	}
	return cw.Error()
}
