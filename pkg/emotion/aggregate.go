// Package emotion turns per-frame emotion analysis into per-second statistics,
// and derives run summaries and tables from those.
package emotion

import (
	"fmt"
	"slices"

	"github.com/cyclopcam/emotrack/pkg/nn"
	"github.com/cyclopcam/emotrack/pkg/videox"
)

// SecondBucket aggregates the frame results of one second of video.
// While accumulating, FaceConfidence and Emotions hold sums. After finalization they hold means.
// A bucket with no successfully analyzed frames is never finalized. Its fields stay at
// their zero values, and PrevalentEmotion is empty.
type SecondBucket struct {
	FramesAnalyzed   int             `json:"frames_analyzed"`
	FaceConfidence   float64         `json:"face_confidence"`
	Emotions         nn.Distribution `json:"emotions"`
	PrevalentEmotion string          `json:"prevalent_emotion"`
}

// NewSecondBucket returns an empty bucket with its accumulators at zero
func NewSecondBucket() *SecondBucket {
	return &SecondBucket{
		FramesAnalyzed: 0,
		FaceConfidence: 0,
		Emotions:       nn.Distribution{},
	}
}

// Finalized is false for a bucket in which every frame failed analysis
func (b *SecondBucket) Finalized() bool {
	return b.FramesAnalyzed > 0
}

func (b *SecondBucket) add(r *nn.FrameResult) {
	b.FramesAnalyzed++
	b.FaceConfidence += r.FaceConfidence
	for _, label := range r.Emotions.Labels() {
		v, _ := r.Emotions.Get(label)
		b.Emotions.Add(label, v)
	}
}

func (b *SecondBucket) finalize() {
	if b.FramesAnalyzed == 0 {
		return
	}
	n := float64(b.FramesAnalyzed)
	b.FaceConfidence /= n
	b.Emotions.Scale(1 / n)
	b.PrevalentEmotion, _ = b.Emotions.ArgMax()
}

// Aggregation maps a second index to its bucket
type Aggregation map[int]*SecondBucket

// Seconds returns the bucket indices in ascending order
func (a Aggregation) Seconds() []int {
	seconds := make([]int, 0, len(a))
	for s := range a {
		seconds = append(seconds, s)
	}
	slices.Sort(seconds)
	return seconds
}

// Aggregate groups frame results into one-second buckets.
// The i-th result belongs to second i / ratePerSecond, so results must be in sampling order,
// and the sampler must have produced ratePerSecond results per second of video.
// Nil results (failed frames) take their slot in the sequence, but contribute nothing to the bucket.
// Every bucket up to the last result exists in the output, even if all of its frames failed.
func Aggregate(results []*nn.FrameResult, ratePerSecond int) (Aggregation, error) {
	if ratePerSecond < 1 {
		return nil, fmt.Errorf("%w (got %v)", videox.ErrInvalidRate, ratePerSecond)
	}
	agg := Aggregation{}
	if len(results) == 0 {
		return agg, nil
	}
	lastSecond := (len(results) - 1) / ratePerSecond
	for s := 0; s <= lastSecond; s++ {
		agg[s] = NewSecondBucket()
	}
	for i, r := range results {
		if r == nil {
			continue
		}
		agg[i/ratePerSecond].add(r)
	}
	for _, b := range agg {
		b.finalize()
	}
	return agg, nil
}
