package nn

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cyclopcam/emotrack/pkg/gen"
	"github.com/tidwall/gjson"
)

// Distribution maps emotion labels to values (probabilities, or sums of probabilities).
// It remembers the order in which labels were first added, and uses that order when
// serialized, so that artifacts are stable and diffable.
// The zero value is an empty Distribution, ready to use.
type Distribution struct {
	labels []string
	values map[string]float64
}

// Add v to the value of label, inserting label with value v if it isn't present
func (d *Distribution) Add(label string, v float64) {
	if d.values == nil {
		d.values = map[string]float64{}
	}
	if _, ok := d.values[label]; !ok {
		d.labels = append(d.labels, label)
	}
	d.values[label] += v
}

// Set the value of label, inserting it if necessary
func (d *Distribution) Set(label string, v float64) {
	if d.values == nil {
		d.values = map[string]float64{}
	}
	if _, ok := d.values[label]; !ok {
		d.labels = append(d.labels, label)
	}
	d.values[label] = v
}

func (d *Distribution) Get(label string) (float64, bool) {
	v, ok := d.values[label]
	return v, ok
}

// Return the labels in insertion order
func (d *Distribution) Labels() []string {
	return append([]string{}, d.labels...)
}

func (d *Distribution) Len() int {
	return len(d.labels)
}

// Multiply every value by f
func (d *Distribution) Scale(f float64) {
	for k, v := range d.values {
		d.values[k] = v * f
	}
}

// Return the values as a plain map
func (d *Distribution) Map() map[string]float64 {
	m := make(map[string]float64, len(d.values))
	for k, v := range d.values {
		m[k] = v
	}
	return m
}

// ArgMax returns the label with the highest value. Ties go to the lexicographically smallest label.
func (d *Distribution) ArgMax() (string, bool) {
	label, _, ok := gen.ArgMax(d.values)
	return label, ok
}

func (d Distribution) MarshalJSON() ([]byte, error) {
	buf := bytes.Buffer{}
	buf.WriteByte('{')
	for i, label := range d.labels {
		if i != 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(d.values[label])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps the order of the labels in the document
func (d *Distribution) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) {
		return fmt.Errorf("Invalid JSON in emotion distribution")
	}
	obj := gjson.ParseBytes(b)
	if obj.Type == gjson.Null {
		*d = Distribution{}
		return nil
	}
	if !obj.IsObject() {
		return fmt.Errorf("Expected an object for emotion distribution, but got %v", obj.Type)
	}
	nd := Distribution{}
	var err error
	obj.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.Number {
			err = fmt.Errorf("Value of emotion '%v' is not a number (%v)", key.String(), value.Raw)
			return false
		}
		nd.Set(key.String(), value.Float())
		return true
	})
	if err != nil {
		return err
	}
	*d = nd
	return nil
}
