package emotion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

// MissingValue is written for an emotion that doesn't appear in a bucket
const MissingValue = ""

// Fixed table columns. Each emotion then gets its own column, named EmotionColumnPrefix + label.
var TableFixedColumns = []string{"second", "frames_analyzed", "face_confidence", "prevalent_emotion"}

const EmotionColumnPrefix = "emotion_"

// TableRow is one second of an Aggregation, flattened
type TableRow struct {
	Second           int
	FramesAnalyzed   int
	FaceConfidence   float64
	PrevalentEmotion string
	Emotions         map[string]float64 // Labels that are absent from the bucket are absent here too
}

// Table is an Aggregation flattened into rows, with one column per emotion
type Table struct {
	Labels []string // Emotion labels, in the order that they were first seen
	Rows   []TableRow
}

// ToTable flattens an aggregation into one row per second, in ascending order of second.
// Emotion columns are ordered by first appearance: by second, and then by the order of
// emotions within that second's bucket.
func ToTable(agg Aggregation) (*Table, error) {
	if len(agg) == 0 {
		return nil, ErrEmptyInput
	}
	table := &Table{}
	seen := map[string]bool{}
	for _, s := range agg.Seconds() {
		b := agg[s]
		row := TableRow{
			Second:           s,
			FramesAnalyzed:   b.FramesAnalyzed,
			FaceConfidence:   b.FaceConfidence,
			PrevalentEmotion: b.PrevalentEmotion,
			Emotions:         b.Emotions.Map(),
		}
		for _, label := range b.Emotions.Labels() {
			if !seen[label] {
				seen[label] = true
				table.Labels = append(table.Labels, label)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// Header returns the column names
func (t *Table) Header() []string {
	h := append([]string{}, TableFixedColumns...)
	for _, label := range t.Labels {
		h = append(h, EmotionColumnPrefix+label)
	}
	return h
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Records returns the cells of every row, as strings
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := []string{
			strconv.Itoa(row.Second),
			strconv.Itoa(row.FramesAnalyzed),
			formatFloat(row.FaceConfidence),
			row.PrevalentEmotion,
		}
		for _, label := range t.Labels {
			if v, ok := row.Emotions[label]; ok {
				rec = append(rec, formatFloat(v))
			} else {
				rec = append(rec, MissingValue)
			}
		}
		records = append(records, rec)
	}
	return records
}

// WriteCSV writes a header row, followed by one row per second
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

// WriteText writes the table in aligned columns, for humans
func (t *Table) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Header(), "\t"))
	for _, rec := range t.Records() {
		for i := range rec {
			if rec[i] == MissingValue {
				rec[i] = "-"
			}
		}
		fmt.Fprintln(tw, strings.Join(rec, "\t"))
	}
	return tw.Flush()
}
