package videox

import (
	"errors"
	"fmt"
	"io"
	"math"
)

var ErrInvalidRange = errors.New("invalid time range")
var ErrInvalidRate = errors.New("sampling rate must be at least 1 frame per second")

// SampleOptions controls which frames of a video are selected for analysis
type SampleOptions struct {
	RatePerSecond int      // Number of frames to keep per second of video
	StartSecond   float64  // Start of the window, in seconds from the start of the video
	EndSecond     *float64 // End of the window. If nil, or beyond the end of the video, then the end of the video.
}

// SamplePlan is the frame window and stride derived from SampleOptions and the source's properties
type SamplePlan struct {
	FPS         float64
	Duration    float64 // Duration of the video in seconds (zero if unknown)
	StartSecond float64
	EndSecond   float64 // +Inf if the duration is unknown and no end was requested
	StartFrame  int
	EndFrame    int // Last frame index that may be kept. -1 means "until the source is exhausted".
	Stride      int
}

// Keep returns true if the frame at ordinal position idx is selected.
// Stride multiples are counted from the first frame of the video, not from StartFrame.
func (p *SamplePlan) Keep(idx int) bool {
	return idx >= p.StartFrame && idx%p.Stride == 0
}

// PastEnd returns true if no frame at or beyond idx can be selected
func (p *SamplePlan) PastEnd(idx int) bool {
	return p.EndFrame >= 0 && idx > p.EndFrame
}

// PlanSampling computes the frame window and stride.
// When fps is not a multiple of the rate, the stride is floor(fps/rate), so the effective
// rate is only an approximation of the requested rate.
func PlanSampling(fps float64, frameCount int, options SampleOptions) (SamplePlan, error) {
	if options.RatePerSecond < 1 {
		return SamplePlan{}, fmt.Errorf("%w (got %v)", ErrInvalidRate, options.RatePerSecond)
	}
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return SamplePlan{}, fmt.Errorf("%w: invalid frame rate %v", ErrSourceOpen, fps)
	}

	plan := SamplePlan{
		FPS:         fps,
		StartSecond: options.StartSecond,
		EndSecond:   math.Inf(1),
		EndFrame:    -1,
	}
	knownDuration := frameCount > 0
	if knownDuration {
		plan.Duration = float64(frameCount) / fps
		plan.EndSecond = plan.Duration
	}
	if options.EndSecond != nil && (!knownDuration || *options.EndSecond <= plan.Duration) {
		plan.EndSecond = *options.EndSecond
	}

	if math.IsNaN(plan.StartSecond) || math.IsNaN(plan.EndSecond) || plan.StartSecond < 0 || plan.StartSecond >= plan.EndSecond {
		return SamplePlan{}, fmt.Errorf("%w: start %v, end %v", ErrInvalidRange, plan.StartSecond, plan.EndSecond)
	}

	plan.Stride = max(int(fps/float64(options.RatePerSecond)), 1)
	plan.StartFrame = int(math.Floor(plan.StartSecond * fps))
	if !math.IsInf(plan.EndSecond, 1) {
		plan.EndFrame = int(math.Floor(plan.EndSecond * fps))
	}
	return plan, nil
}

// SampleFrames walks src from the beginning, and calls visit for every selected frame.
// visit takes ownership of the frame. Frames that are not selected are closed here.
// src is closed before SampleFrames returns, on every path, including validation failure.
func SampleFrames(src FrameSource, options SampleOptions, visit func(frame Frame) error) (err error) {
	defer func() {
		if errClose := src.Close(); errClose != nil && err == nil {
			err = errClose
		}
	}()

	plan, err := PlanSampling(src.FPS(), src.FrameCount(), options)
	if err != nil {
		return err
	}

	frameIdx := -1
	for {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		frameIdx++
		frame.Index = frameIdx
		if plan.PastEnd(frameIdx) {
			frame.Close()
			return nil
		}
		if !plan.Keep(frameIdx) {
			frame.Close()
			continue
		}
		if err := visit(frame); err != nil {
			return err
		}
	}
}

// Sample returns all selected frames. The caller must Close each of them.
// Holding every frame in memory is only sensible for short windows; prefer SampleFrames for long videos.
func Sample(src FrameSource, options SampleOptions) ([]Frame, error) {
	frames := []Frame{}
	err := SampleFrames(src, options, func(frame Frame) error {
		frames = append(frames, frame)
		return nil
	})
	if err != nil {
		for i := range frames {
			frames[i].Close()
		}
		return nil, err
	}
	return frames, nil
}
