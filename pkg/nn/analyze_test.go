package nn

import (
	"errors"
	"math"
	"testing"

	"github.com/cyclopcam/emotrack/pkg/videox"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// scriptedClassifier returns one canned response per call
type scriptedClassifier struct {
	responses []any // Analysis, error, or a string to panic with
	calls     int
}

func (s *scriptedClassifier) Close() {}

func (s *scriptedClassifier) Config() *ModelConfig {
	return &ModelConfig{Classes: []string{"happy", "sad"}}
}

func (s *scriptedClassifier) Classify(img *gocv.Mat) (Analysis, error) {
	r := s.responses[s.calls]
	s.calls++
	switch t := r.(type) {
	case Analysis:
		return t, nil
	case error:
		return nil, t
	case string:
		panic(t)
	}
	return nil, nil
}

func TestParseAnalysis(t *testing.T) {
	raw := Analysis{
		"emotion":         map[string]any{"zest": 0.1, "sad": float32(0.25), "happy": 0.5, "awe": int64(0)},
		"face_confidence": float32(0.75),
	}
	r, err := ParseAnalysis(raw, []string{"happy", "sad", "fear"})
	require.NoError(t, err)
	require.Equal(t, []string{"happy", "sad", "awe", "zest"}, r.Emotions.Labels())
	require.Equal(t, 0.75, r.FaceConfidence)
	v, _ := r.Emotions.Get("sad")
	require.Equal(t, 0.25, v)

	// No face confidence means no face
	r, err = ParseAnalysis(Analysis{"emotion": map[string]any{"happy": 1.0}}, nil)
	require.NoError(t, err)
	require.Equal(t, 0.0, r.FaceConfidence)

	_, err = ParseAnalysis(Analysis{"face_confidence": 1.0}, nil)
	require.Error(t, err)
	_, err = ParseAnalysis(Analysis{"emotion": "happy"}, nil)
	require.Error(t, err)
	_, err = ParseAnalysis(Analysis{"emotion": map[string]any{"happy": "yes"}}, nil)
	require.Error(t, err)
	_, err = ParseAnalysis(nil, nil)
	require.Error(t, err)

	// Non-finite values
	_, err = ParseAnalysis(Analysis{"emotion": map[string]any{"happy": float32(math.NaN())}}, []string{"happy"})
	require.Error(t, err)
	_, err = ParseAnalysis(Analysis{"emotion": map[string]any{"zest": math.Inf(1)}}, nil)
	require.Error(t, err)
	_, err = ParseAnalysis(Analysis{"emotion": map[string]any{"happy": 1.0}, "face_confidence": math.Inf(-1)}, nil)
	require.Error(t, err)
}

func TestAnalyzeRejectsNaN(t *testing.T) {
	classifier := &scriptedClassifier{
		responses: []any{
			Analysis{"emotion": map[string]float32{"happy": float32(math.NaN()), "sad": 0.5}},
			Analysis{"emotion": map[string]float32{"happy": 0.5, "sad": 0.5}, "face_confidence": float32(math.NaN())},
			Analysis{"emotion": map[string]float32{"happy": 0.5, "sad": 0.5}},
		},
	}
	analyzer := NewAnalyzer(logs.NewTestingLog(t), classifier)
	frames := make([]videox.Frame, 3)
	for i := range frames {
		frames[i].Index = i
	}
	results := analyzer.Analyze(frames)
	require.Nil(t, results[0])
	require.Nil(t, results[1])
	require.NotNil(t, results[2])
	require.Equal(t, 2, analyzer.Failures())

	classifier = &scriptedClassifier{responses: []any{Analysis{"emotion": map[string]any{"happy": math.NaN()}}}}
	_, err := NewAnalyzer(logs.NewTestingLog(t), classifier).AnalyzeFrame(videox.Frame{})
	require.ErrorIs(t, err, ErrFrameAnalysis)
}

func TestAnalyzeRecoversFromFailures(t *testing.T) {
	good := Analysis{
		"emotion":         map[string]float32{"happy": 0.5, "sad": 0.5},
		"face_confidence": float32(0.5),
	}
	classifier := &scriptedClassifier{
		responses: []any{
			good,
			errors.New("face detector exploded"),
			"segfault in disguise",
			Analysis{"region": map[string]any{}},
			good,
		},
	}
	analyzer := NewAnalyzer(logs.NewTestingLog(t), classifier)
	frames := make([]videox.Frame, 5)
	for i := range frames {
		frames[i].Index = i
	}
	results := analyzer.Analyze(frames)
	require.Equal(t, 5, len(results))
	require.NotNil(t, results[0])
	require.Nil(t, results[1])
	require.Nil(t, results[2])
	require.Nil(t, results[3])
	require.NotNil(t, results[4])
	require.Equal(t, 3, analyzer.Failures())
	require.Equal(t, 5, classifier.calls)
	// The panicking call never returns, so it isn't timed
	require.EqualValues(t, 4, analyzer.ClassifyTime().Samples)

	classifier = &scriptedClassifier{responses: []any{errors.New("nope")}}
	_, err := NewAnalyzer(logs.NewTestingLog(t), classifier).AnalyzeFrame(videox.Frame{})
	require.ErrorIs(t, err, ErrFrameAnalysis)
}
