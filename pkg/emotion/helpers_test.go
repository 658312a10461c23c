package emotion

import (
	"io"

	"github.com/cyclopcam/emotrack/pkg/nn"
	"github.com/cyclopcam/emotrack/pkg/videox"
	"gocv.io/x/gocv"
)

// result builds a FrameResult, with emotions in the order given (label, value, label, value, ...)
func result(conf float64, labelsAndValues ...any) *nn.FrameResult {
	r := &nn.FrameResult{FaceConfidence: conf}
	for i := 0; i < len(labelsAndValues); i += 2 {
		r.Emotions.Set(labelsAndValues[i].(string), labelsAndValues[i+1].(float64))
	}
	return r
}

func emotionValue(t interface{ Fatalf(string, ...any) }, b *SecondBucket, label string) float64 {
	v, ok := b.Emotions.Get(label)
	if !ok {
		t.Fatalf("emotion %v not found", label)
	}
	return v
}

type countingSource struct {
	fps     float64
	nFrames int
	next    int
	closed  int
}

func (s *countingSource) FPS() float64    { return s.fps }
func (s *countingSource) FrameCount() int { return s.nFrames }
func (s *countingSource) Close() error {
	s.closed++
	return nil
}

func (s *countingSource) Next() (videox.Frame, error) {
	if s.next >= s.nFrames {
		return videox.Frame{}, io.EOF
	}
	s.next++
	return videox.Frame{Index: s.next - 1}, nil
}

// frameClassifier fails on every frame in 'fail', and otherwise reports "happy" for
// even seconds and "sad" for odd seconds (assuming 10 sampled frames per second).
type frameClassifier struct {
	calls int
	fail  map[int]bool
}

func (c *frameClassifier) Close() {}

func (c *frameClassifier) Config() *nn.ModelConfig {
	return &nn.ModelConfig{Classes: []string{"happy", "sad"}}
}

func (c *frameClassifier) Classify(img *gocv.Mat) (nn.Analysis, error) {
	i := c.calls
	c.calls++
	if c.fail[i] {
		return nil, io.ErrUnexpectedEOF
	}
	happy := float32(0.9)
	if (i/10)%2 == 1 {
		happy = 0.1
	}
	return nn.Analysis{
		"emotion":         map[string]float32{"happy": happy, "sad": 1 - happy},
		"face_confidence": float32(0.5),
	}, nil
}
