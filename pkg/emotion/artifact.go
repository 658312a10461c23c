package emotion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cyclopcam/emotrack/pkg/nn"
	"github.com/cyclopcam/emotrack/pkg/storage"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Artifact filename prefixes. Each artifact gets a fresh uuid, so repeated runs into
// the same output location never overwrite each other.
const (
	AggregationArtifactPrefix = "emotion_analysis_results_"
	SummaryArtifactPrefix     = "emotion_summary_"
)

func AggregationArtifactName() string {
	return AggregationArtifactPrefix + uuid.NewString() + ".json"
}

func SummaryArtifactName() string {
	return SummaryArtifactPrefix + uuid.NewString() + ".json"
}

// TableArtifactName returns the CSV name that goes with an aggregation artifact
func TableArtifactName(aggregationName string) string {
	return strings.TrimSuffix(aggregationName, ".json") + ".csv"
}

type secondBucketJSON struct {
	FramesAnalyzed   int             `json:"frames_analyzed"`
	FaceConfidence   float64         `json:"face_confidence"`
	Emotions         nn.Distribution `json:"emotions"`
	PrevalentEmotion *string         `json:"prevalent_emotion"`
}

// An unfinalized bucket has a null prevalent_emotion
func (b SecondBucket) MarshalJSON() ([]byte, error) {
	j := secondBucketJSON{
		FramesAnalyzed: b.FramesAnalyzed,
		FaceConfidence: b.FaceConfidence,
		Emotions:       b.Emotions,
	}
	if b.PrevalentEmotion != "" {
		j.PrevalentEmotion = &b.PrevalentEmotion
	}
	return json.Marshal(j)
}

func (b *SecondBucket) UnmarshalJSON(data []byte) error {
	j := secondBucketJSON{}
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b.FramesAnalyzed = j.FramesAnalyzed
	b.FaceConfidence = j.FaceConfidence
	b.Emotions = j.Emotions
	b.PrevalentEmotion = ""
	if j.PrevalentEmotion != nil {
		b.PrevalentEmotion = *j.PrevalentEmotion
	}
	return nil
}

// Keys are written in ascending numeric order (not the lexical order that encoding/json uses for maps)
func (a Aggregation) MarshalJSON() ([]byte, error) {
	buf := bytes.Buffer{}
	buf.WriteByte('{')
	for i, s := range a.Seconds() {
		if i != 0 {
			buf.WriteByte(',')
		}
		b, err := json.Marshal(a[s])
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, `"%d":`, s)
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Aggregation) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("Invalid JSON in aggregation")
	}
	obj := gjson.ParseBytes(data)
	if !obj.IsObject() {
		return fmt.Errorf("Expected an object for aggregation, but got %v", obj.Type)
	}
	agg := Aggregation{}
	var err error
	obj.ForEach(func(key, value gjson.Result) bool {
		second, e := strconv.Atoi(key.String())
		if e != nil || second < 0 {
			err = fmt.Errorf("Invalid second '%v' in aggregation", key.String())
			return false
		}
		b := NewSecondBucket()
		if e := json.Unmarshal([]byte(value.Raw), b); e != nil {
			err = fmt.Errorf("Invalid bucket for second %v: %w", second, e)
			return false
		}
		agg[second] = b
		return true
	})
	if err != nil {
		return err
	}
	*a = agg
	return nil
}

// Write v as indented JSON
func encodeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

func EncodeAggregation(w io.Writer, agg Aggregation) error {
	return encodeIndented(w, agg)
}

func DecodeAggregation(data []byte) (Aggregation, error) {
	agg := Aggregation{}
	if err := json.Unmarshal(data, &agg); err != nil {
		return nil, err
	}
	return agg, nil
}

func EncodeSummary(w io.Writer, summary *RunSummary) error {
	return encodeIndented(w, summary)
}

// SaveAggregation writes the aggregation to a new uuid-named artifact, and returns its name
func SaveAggregation(store storage.Storage, agg Aggregation) (string, error) {
	buf := bytes.Buffer{}
	if err := EncodeAggregation(&buf, agg); err != nil {
		return "", err
	}
	name := AggregationArtifactName()
	return name, storage.WriteFile(store, name, &buf)
}

func LoadAggregation(store storage.Storage, name string) (Aggregation, error) {
	b, err := storage.ReadFile(store, name)
	if err != nil {
		return nil, err
	}
	agg, err := DecodeAggregation(b)
	if err != nil {
		return nil, fmt.Errorf("Failed to decode %v: %w", name, err)
	}
	return agg, nil
}

// SaveSummary writes the summary to a new uuid-named artifact, and returns its name
func SaveSummary(store storage.Storage, summary *RunSummary) (string, error) {
	buf := bytes.Buffer{}
	if err := EncodeSummary(&buf, summary); err != nil {
		return "", err
	}
	name := SummaryArtifactName()
	return name, storage.WriteFile(store, name, &buf)
}

// SaveTable writes the table as CSV
func SaveTable(store storage.Storage, name string, table *Table) error {
	buf := bytes.Buffer{}
	if err := table.WriteCSV(&buf); err != nil {
		return err
	}
	return storage.WriteFile(store, name, &buf)
}

// Artifacts are the names of everything written for one run
type Artifacts struct {
	Results string      // Aggregation JSON
	Summary string      // Summary JSON (empty if not written)
	Table   string      // CSV (empty if not written)
	Stats   *RunSummary // nil if the summary was not computed
}

// SaveArtifacts writes the aggregation, and optionally its summary and table.
// An empty aggregation has no summary or table, so those are skipped.
func SaveArtifacts(store storage.Storage, agg Aggregation, withSummary, withTable bool) (*Artifacts, error) {
	a := &Artifacts{}
	var err error
	if a.Results, err = SaveAggregation(store, agg); err != nil {
		return nil, err
	}
	if len(agg) == 0 {
		return a, nil
	}
	if withSummary {
		if a.Stats, err = Summarize(agg); err != nil {
			return nil, err
		}
		if a.Summary, err = SaveSummary(store, a.Stats); err != nil {
			return nil, err
		}
	}
	if withTable {
		table, err := ToTable(agg)
		if err != nil {
			return nil, err
		}
		a.Table = TableArtifactName(a.Results)
		if err := SaveTable(store, a.Table, table); err != nil {
			return nil, err
		}
	}
	return a, nil
}
