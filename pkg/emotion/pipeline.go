package emotion

import (
	"fmt"

	"github.com/cyclopcam/emotrack/pkg/nn"
	"github.com/cyclopcam/emotrack/pkg/videox"
	"github.com/cyclopcam/logs"
)

// Progress of a run, emitted after each sampled frame
type Progress struct {
	FrameIndex      int     `json:"frameIndex"`      // Index of the frame that was just analyzed, in the source video
	Second          float64 `json:"second"`          // Position of that frame in the video, in seconds
	FramesSampled   int     `json:"framesSampled"`   // Frames analyzed so far, including failures
	FramesFailed    int     `json:"framesFailed"`    // Frames for which analysis failed
	FramesExpected  int     `json:"framesExpected"`  // Number of frames we expect to sample (0 if unknown)
	DominantEmotion string  `json:"dominantEmotion"` // Of the frame that was just analyzed (empty if failed)
}

type Options struct {
	Sampling       videox.SampleOptions
	Progress       func(p Progress) // Optional
	StdOutProgress bool             // Emit progress to stdout
}

// RunResult is the outcome of analyzing one video
type RunResult struct {
	Aggregation   Aggregation
	FramesSampled int
	FramesFailed  int
	Plan          videox.SamplePlan
}

// RunOnVideoFile samples, analyzes and aggregates a video file
func RunOnVideoFile(log logs.Log, classifier nn.EmotionClassifier, filename string, options Options) (*RunResult, error) {
	src, err := videox.OpenVideoFile(filename)
	if err != nil {
		return nil, err
	}
	return Run(log, classifier, src, options)
}

// Run samples, analyzes and aggregates frames from src, and closes src.
// Frames are streamed through the classifier one at a time, so memory use does not grow with
// the length of the video. A fatal error (eg an invalid time range) produces no partial results.
func Run(log logs.Log, classifier nn.EmotionClassifier, src videox.FrameSource, options Options) (*RunResult, error) {
	plan, err := videox.PlanSampling(src.FPS(), src.FrameCount(), options.Sampling)
	if err != nil {
		src.Close()
		return nil, err
	}
	expected := expectedFrames(plan, src.FrameCount())
	log.Infof("Sampling %.1f fps video at %v fps (every %v frames), from %.2fs to %.2fs",
		plan.FPS, options.Sampling.RatePerSecond, plan.Stride, plan.StartSecond, plan.EndSecond)

	analyzer := nn.NewAnalyzer(log, classifier)
	results := []*nn.FrameResult{}
	err = videox.SampleFrames(src, options.Sampling, func(frame videox.Frame) error {
		defer frame.Close()
		r := analyzer.AnalyzeFrameOrNil(frame)
		results = append(results, r)
		p := Progress{
			FrameIndex:     frame.Index,
			Second:         float64(frame.Index) / plan.FPS,
			FramesSampled:  len(results),
			FramesFailed:   analyzer.Failures(),
			FramesExpected: expected,
		}
		if r != nil {
			p.DominantEmotion, _ = r.Emotions.ArgMax()
		}
		if options.StdOutProgress {
			fmt.Printf("%v (%.2fs): %v\n", p.FrameIndex, p.Second, p.DominantEmotion)
		}
		if options.Progress != nil {
			options.Progress(p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	agg, err := Aggregate(results, options.Sampling.RatePerSecond)
	if err != nil {
		return nil, err
	}
	log.Infof("Analyzed %v frames (%v failed) into %v seconds", len(results), analyzer.Failures(), len(agg))
	log.Infof("Classifier time: %v", analyzer.ClassifyTime())
	return &RunResult{
		Aggregation:   agg,
		FramesSampled: len(results),
		FramesFailed:  analyzer.Failures(),
		Plan:          plan,
	}, nil
}

// Number of frames that the plan will select, or zero if we can't know
func expectedFrames(plan videox.SamplePlan, frameCount int) int {
	last := plan.EndFrame
	if frameCount > 0 && (last < 0 || last > frameCount-1) {
		last = frameCount - 1
	}
	if last < 0 || last < plan.StartFrame {
		return 0
	}
	first := (plan.StartFrame + plan.Stride - 1) / plan.Stride
	return last/plan.Stride - first + 1
}
