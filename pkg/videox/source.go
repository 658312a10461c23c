// Package videox reads decoded frames out of video files, and selects the frames to analyze
package videox

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gocv.io/x/gocv"
)

var ErrSourceOpen = errors.New("failed to open video source")

// Frame is a single decoded image from a video source.
// The pipeline that receives a Frame owns it, and must Close it when finished.
type Frame struct {
	Index int       // Ordinal position of the frame in the source, starting at 0
	Image *gocv.Mat // BGR pixels. May be nil for synthetic sources.
}

// Close releases the image memory. It is safe to call more than once.
func (f *Frame) Close() {
	if f.Image != nil {
		f.Image.Close()
		f.Image = nil
	}
}

// FrameSource produces frames sequentially, from the start of a video
type FrameSource interface {
	// Native frame rate of the video
	FPS() float64

	// Total number of frames, or zero if the container doesn't tell us
	FrameCount() int

	// Next returns the next frame, or io.EOF when the source is exhausted
	Next() (Frame, error)

	Close() error
}

// CaptureSource reads frames from a video file via OpenCV
type CaptureSource struct {
	Filename   string
	capture    *gocv.VideoCapture
	fps        float64
	frameCount int
	next       int
}

// OpenVideoFile opens a video file for sequential decoding.
// If OpenCV can't tell us the number of frames, we fall back to asking ffprobe for the duration.
func OpenVideoFile(filename string) (*CaptureSource, error) {
	capture, err := gocv.VideoCaptureFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w '%v': %v", ErrSourceOpen, filename, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w '%v'", ErrSourceOpen, filename)
	}
	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		capture.Close()
		return nil, fmt.Errorf("%w '%v': unknown frame rate", ErrSourceOpen, filename)
	}
	frameCount := int(capture.Get(gocv.VideoCaptureFrameCount))
	if frameCount <= 0 {
		if duration, err := ExtractVideoDuration(filename); err == nil {
			frameCount = int(duration.Seconds() * fps)
		}
	}
	return &CaptureSource{
		Filename:   filename,
		capture:    capture,
		fps:        fps,
		frameCount: max(frameCount, 0),
	}, nil
}

func (c *CaptureSource) FPS() float64 {
	return c.fps
}

func (c *CaptureSource) FrameCount() int {
	return c.frameCount
}

func (c *CaptureSource) Next() (Frame, error) {
	img := gocv.NewMat()
	if !c.capture.Read(&img) || img.Empty() {
		img.Close()
		return Frame{}, io.EOF
	}
	frame := Frame{
		Index: c.next,
		Image: &img,
	}
	c.next++
	return frame, nil
}

func (c *CaptureSource) Close() error {
	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}
