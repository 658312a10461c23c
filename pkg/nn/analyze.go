package nn

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/cyclopcam/emotrack/pkg/perfstats"
	"github.com/cyclopcam/emotrack/pkg/videox"
	"github.com/cyclopcam/logs"
)

var ErrFrameAnalysis = errors.New("frame analysis failed")

// FrameResult is the emotion analysis of a single frame.
// A nil *FrameResult means that analysis of the frame failed.
type FrameResult struct {
	Emotions       Distribution `json:"emotion"`         // Probability of each emotion. Not guaranteed to sum to 1.
	FaceConfidence float64      `json:"face_confidence"` // Zero if no face was detected
}

// ParseAnalysis extracts a FrameResult from a classifier payload.
// Emotions are ordered by classOrder, and then any unknown labels in alphabetical order.
func ParseAnalysis(raw Analysis, classOrder []string) (*FrameResult, error) {
	raw = NormalizeAnalysis(raw)
	if raw == nil {
		return nil, errors.New("Empty analysis")
	}
	emotionsAny, ok := raw[AnalysisEmotion]
	if !ok {
		return nil, fmt.Errorf("Analysis has no '%v' field", AnalysisEmotion)
	}
	emotions, ok := emotionsAny.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Analysis field '%v' is %T, not an object", AnalysisEmotion, emotionsAny)
	}

	result := &FrameResult{}
	for _, label := range classOrder {
		if v, ok := emotions[label]; ok {
			f, err := parseEmotionValue(label, v)
			if err != nil {
				return nil, err
			}
			result.Emotions.Set(label, f)
		}
	}
	extra := []string{}
	for label := range emotions {
		if !slices.Contains(classOrder, label) {
			extra = append(extra, label)
		}
	}
	slices.Sort(extra)
	for _, label := range extra {
		f, err := parseEmotionValue(label, emotions[label])
		if err != nil {
			return nil, err
		}
		result.Emotions.Set(label, f)
	}

	if conf, ok := raw[AnalysisFaceConfidence]; ok && conf != nil {
		f, ok := toFloat(conf)
		if !ok {
			return nil, fmt.Errorf("Analysis field '%v' is %T, not a number", AnalysisFaceConfidence, conf)
		}
		if !isFinite(f) {
			return nil, fmt.Errorf("Analysis field '%v' is %v", AnalysisFaceConfidence, f)
		}
		result.FaceConfidence = f
	}
	return result, nil
}

// NaN and Inf can't be averaged, or written to JSON
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func parseEmotionValue(label string, v any) (float64, error) {
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("Emotion '%v' is %T, not a number", label, v)
	}
	if !isFinite(f) {
		return 0, fmt.Errorf("Emotion '%v' is %v", label, f)
	}
	return f, nil
}

// Analyzer runs an EmotionClassifier over frames.
// A failure on one frame never aborts a batch. The frame's result is recorded as nil.
type Analyzer struct {
	Log        logs.Log
	Classifier EmotionClassifier

	failures int
	timing   perfstats.TimeAccumulator
}

func NewAnalyzer(log logs.Log, classifier EmotionClassifier) *Analyzer {
	return &Analyzer{
		Log:        log,
		Classifier: classifier,
	}
}

// Number of frames that have failed analysis so far
func (a *Analyzer) Failures() int {
	return a.failures
}

// Time spent inside the classifier, including frames that failed
func (a *Analyzer) ClassifyTime() *perfstats.TimeAccumulator {
	return &a.timing
}

// AnalyzeFrame classifies a single frame.
// Any error (including a panic inside the classifier) is wrapped in ErrFrameAnalysis.
func (a *Analyzer) AnalyzeFrame(frame videox.Frame) (result *FrameResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: frame %v: %v", ErrFrameAnalysis, frame.Index, r)
		}
	}()
	start := time.Now()
	raw, err := a.Classifier.Classify(frame.Image)
	a.timing.AddSince(start)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %v: %w", ErrFrameAnalysis, frame.Index, err)
	}
	result, err = ParseAnalysis(raw, a.Classifier.Config().Classes)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %v: %w", ErrFrameAnalysis, frame.Index, err)
	}
	return result, nil
}

// AnalyzeFrameOrNil is AnalyzeFrame, but a failure is logged and counted instead of returned
func (a *Analyzer) AnalyzeFrameOrNil(frame videox.Frame) *FrameResult {
	result, err := a.AnalyzeFrame(frame)
	if err != nil {
		a.failures++
		a.Log.Warnf("%v", err)
		return nil
	}
	return result
}

// Analyze returns one result per frame, in the same order as frames.
// The frames remain owned by the caller.
func (a *Analyzer) Analyze(frames []videox.Frame) []*FrameResult {
	results := make([]*FrameResult, len(frames))
	for i, frame := range frames {
		results[i] = a.AnalyzeFrameOrNil(frame)
	}
	return results
}
