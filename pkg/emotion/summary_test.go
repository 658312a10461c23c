package emotion

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/cyclopcam/emotrack/pkg/nn"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	results := []*nn.FrameResult{
		result(0.9, "happy", 0.6, "sad", 0.4),
		result(0.7, "happy", 0.8, "sad", 0.2),
		result(0.5, "sad", 0.9, "happy", 0.1),
		nil,
		result(0.2, "happy", 0.9),
		result(0.3, "happy", 0.7),
	}
	agg, err := Aggregate(results, 2)
	require.NoError(t, err)

	s, err := Summarize(agg)
	require.NoError(t, err)
	require.Equal(t, 3, s.TotalSecondsAnalyzed)
	require.Equal(t, 5, s.TotalFramesAnalyzed)
	// (0.8 + 0.5 + 0.25) / 3
	require.Equal(t, 0.517, s.AverageFaceConfidence)
	require.Equal(t, "happy", s.MostCommonEmotion)
	require.Equal(t, []string{"happy", "sad"}, s.EmotionDistribution.Labels)
	require.Equal(t, map[string]int{"happy": 2, "sad": 1}, s.EmotionDistribution.Counts)
}

func TestSummarizeWithEmptyBuckets(t *testing.T) {
	agg, err := Aggregate([]*nn.FrameResult{result(0.9, "sad", 1.0), nil, nil, result(0.6, "happy", 1.0)}, 1)
	require.NoError(t, err)
	s, err := Summarize(agg)
	require.NoError(t, err)
	require.Equal(t, 4, s.TotalSecondsAnalyzed)
	require.Equal(t, 2, s.TotalFramesAnalyzed)
	// Empty buckets count as zero confidence
	require.Equal(t, 0.375, s.AverageFaceConfidence)
	// One each: tie goes to the alphabetically first
	require.Equal(t, "happy", s.MostCommonEmotion)
	require.Equal(t, []string{"sad", "happy"}, s.EmotionDistribution.Labels)

	// Nothing finalized at all
	agg, err = Aggregate([]*nn.FrameResult{nil, nil}, 1)
	require.NoError(t, err)
	s, err = Summarize(agg)
	require.NoError(t, err)
	require.Equal(t, 2, s.TotalSecondsAnalyzed)
	require.Equal(t, "", s.MostCommonEmotion)
	require.Equal(t, 0.0, s.AverageFaceConfidence)
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(Aggregation{})
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestSummaryJSON(t *testing.T) {
	agg, err := Aggregate([]*nn.FrameResult{result(0.5, "sad", 1.0), result(0.5, "happy", 1.0), result(0.5, "happy", 1.0)}, 1)
	require.NoError(t, err)
	s, err := Summarize(agg)
	require.NoError(t, err)
	buf := bytes.Buffer{}
	require.NoError(t, EncodeSummary(&buf, s))

	generic := map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &generic))
	require.Equal(t, 3.0, generic["total_seconds_analyzed"])
	require.Equal(t, 3.0, generic["total_frames_analyzed"])
	require.Equal(t, 0.5, generic["average_face_confidence"])
	require.Equal(t, "happy", generic["most_common_emotion"])
	require.Equal(t, map[string]any{"sad": 1.0, "happy": 2.0}, generic["emotion_distribution"])
	require.Contains(t, buf.String(), "\"emotion_distribution\": {\n        \"sad\": 1,\n        \"happy\": 2\n    }")
}
