package emotion

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/cyclopcam/emotrack/pkg/gen"
)

var ErrEmptyInput = errors.New("aggregation is empty")

// EmotionCounts is a label -> count mapping that remembers insertion order
type EmotionCounts struct {
	Labels []string
	Counts map[string]int
}

func (c *EmotionCounts) increment(label string) {
	if c.Counts == nil {
		c.Counts = map[string]int{}
	}
	if _, ok := c.Counts[label]; !ok {
		c.Labels = append(c.Labels, label)
	}
	c.Counts[label]++
}

func (c EmotionCounts) MarshalJSON() ([]byte, error) {
	buf := bytes.Buffer{}
	buf.WriteByte('{')
	for i, label := range c.Labels {
		if i != 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(c.Counts[label]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RunSummary is a run-level reduction of an Aggregation
type RunSummary struct {
	TotalSecondsAnalyzed  int           `json:"total_seconds_analyzed"`
	TotalFramesAnalyzed   int           `json:"total_frames_analyzed"`
	AverageFaceConfidence float64       `json:"average_face_confidence"` // Unweighted mean over buckets, rounded to 3 decimals
	MostCommonEmotion     string        `json:"most_common_emotion"`     // Empty if no bucket was finalized
	EmotionDistribution   EmotionCounts `json:"emotion_distribution"`    // Number of buckets in which each emotion was prevalent
}

// Summarize reduces an aggregation to a single summary.
// Every bucket counts towards the seconds and the average face confidence, including
// unfinalized buckets, which contribute a confidence of zero. Only finalized buckets have
// a prevalent emotion, so only they contribute to the emotion distribution.
func Summarize(agg Aggregation) (*RunSummary, error) {
	if len(agg) == 0 {
		return nil, ErrEmptyInput
	}
	summary := &RunSummary{
		TotalSecondsAnalyzed: len(agg),
	}
	confidences := make([]float64, 0, len(agg))
	for _, s := range agg.Seconds() {
		b := agg[s]
		summary.TotalFramesAnalyzed += b.FramesAnalyzed
		confidences = append(confidences, b.FaceConfidence)
		if b.Finalized() && b.PrevalentEmotion != "" {
			summary.EmotionDistribution.increment(b.PrevalentEmotion)
		}
	}
	summary.AverageFaceConfidence = gen.RoundTo(gen.Mean(confidences), 3)
	summary.MostCommonEmotion, _, _ = gen.ArgMax(summary.EmotionDistribution.Counts)
	return summary, nil
}
