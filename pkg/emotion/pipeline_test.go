package emotion

import (
	"testing"

	"github.com/cyclopcam/emotrack/pkg/videox"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	// 4 seconds of 30 fps video, sampled at 10 fps = 40 frames, 10 per bucket
	src := &countingSource{fps: 30, nFrames: 120}
	classifier := &frameClassifier{fail: map[int]bool{3: true, 25: true}}
	progress := []Progress{}
	res, err := Run(logs.NewTestingLog(t), classifier, src, Options{
		Sampling: videox.SampleOptions{RatePerSecond: 10},
		Progress: func(p Progress) {
			progress = append(progress, p)
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, src.closed)
	require.Equal(t, 40, classifier.calls)
	require.Equal(t, 40, res.FramesSampled)
	require.Equal(t, 2, res.FramesFailed)
	require.Equal(t, []int{0, 1, 2, 3}, res.Aggregation.Seconds())
	require.Equal(t, 9, res.Aggregation[0].FramesAnalyzed)
	require.Equal(t, 10, res.Aggregation[1].FramesAnalyzed)
	require.Equal(t, 9, res.Aggregation[2].FramesAnalyzed)
	require.Equal(t, "happy", res.Aggregation[0].PrevalentEmotion)
	require.Equal(t, "sad", res.Aggregation[1].PrevalentEmotion)
	require.InDelta(t, 0.5, res.Aggregation[3].FaceConfidence, 1e-6)

	require.Equal(t, 40, len(progress))
	require.Equal(t, 40, progress[0].FramesExpected)
	require.Equal(t, "happy", progress[0].DominantEmotion)
	require.Equal(t, "", progress[3].DominantEmotion)
	require.Equal(t, 117, progress[39].FrameIndex)
	require.Equal(t, 2, progress[39].FramesFailed)
}

func TestRunWindow(t *testing.T) {
	src := &countingSource{fps: 30, nFrames: 300}
	end := 3.0
	res, err := Run(logs.NewTestingLog(t), &frameClassifier{}, src, Options{
		Sampling: videox.SampleOptions{RatePerSecond: 10, StartSecond: 1, EndSecond: &end},
	})
	require.NoError(t, err)
	// frames 30..90 inclusive, every 3rd
	require.Equal(t, 21, res.FramesSampled)
	require.Equal(t, []int{0, 1, 2}, res.Aggregation.Seconds())
	require.Equal(t, 1, res.Aggregation[2].FramesAnalyzed)
	require.Equal(t, 21, expectedFrames(res.Plan, 300))
}

func TestRunInvalidRange(t *testing.T) {
	src := &countingSource{fps: 30, nFrames: 300}
	end := 1.0
	classifier := &frameClassifier{}
	_, err := Run(logs.NewTestingLog(t), classifier, src, Options{
		Sampling: videox.SampleOptions{RatePerSecond: 10, StartSecond: 2, EndSecond: &end},
	})
	require.ErrorIs(t, err, videox.ErrInvalidRange)
	require.Equal(t, 1, src.closed)
	require.Equal(t, 0, classifier.calls)
}
