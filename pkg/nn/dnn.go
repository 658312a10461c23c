package nn

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

const DefaultFaceThreshold = 0.5

// SSD face detector input size and mean (res10_300x300)
const faceNetSize = 300

var faceNetMean = gocv.NewScalar(104, 177, 123, 0)

// DNNClassifier runs an emotion model through OpenCV's DNN module.
// If a face detector is loaded, we classify the most confident face, otherwise the whole image.
type DNNClassifier struct {
	FaceThreshold float32 // Minimum confidence for a face detection to be used

	config     *ModelConfig
	net        gocv.Net
	faceNet    gocv.Net
	hasFaceNet bool
}

// NewDNNClassifier loads an emotion model (eg an ONNX file).
// faceModel and faceConfig are the SSD face detector files. If faceModel is empty, no face detection is done.
func NewDNNClassifier(config *ModelConfig, model, faceModel, faceConfig string) (*DNNClassifier, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("Invalid model input size %v x %v", config.Width, config.Height)
	}
	net := gocv.ReadNet(model, "")
	if net.Empty() {
		return nil, fmt.Errorf("Failed to load emotion network '%v'", model)
	}
	if err := setCPU(&net); err != nil {
		net.Close()
		return nil, err
	}
	c := &DNNClassifier{
		FaceThreshold: DefaultFaceThreshold,
		config:        config,
		net:           net,
	}
	if faceModel != "" {
		faceNet := gocv.ReadNet(faceModel, faceConfig)
		if faceNet.Empty() {
			net.Close()
			return nil, fmt.Errorf("Failed to load face detection network '%v'", faceModel)
		}
		if err := setCPU(&faceNet); err != nil {
			net.Close()
			faceNet.Close()
			return nil, err
		}
		c.faceNet = faceNet
		c.hasFaceNet = true
	}
	return c, nil
}

func setCPU(net *gocv.Net) error {
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		return errors.New("Failed to set preferable backend or target")
	}
	return nil
}

func (c *DNNClassifier) Close() {
	c.net.Close()
	if c.hasFaceNet {
		c.faceNet.Close()
	}
}

func (c *DNNClassifier) Config() *ModelConfig {
	return c.config
}

func (c *DNNClassifier) Classify(img *gocv.Mat) (Analysis, error) {
	if img == nil || img.Empty() {
		return nil, errors.New("Empty image")
	}

	region := image.Rect(0, 0, img.Cols(), img.Rows())
	faceConfidence := float32(0)
	if c.hasFaceNet {
		if box, conf, ok := c.detectFace(img); ok {
			region = box
			faceConfidence = conf
		}
	}

	crop := img.Region(region)
	defer crop.Close()

	input := gocv.NewMat()
	defer input.Close()
	if c.config.Grayscale && crop.Channels() != 1 {
		if err := gocv.CvtColor(crop, &input, gocv.ColorBGRToGray); err != nil {
			return nil, fmt.Errorf("Failed to convert image to grayscale: %w", err)
		}
	} else {
		crop.CopyTo(&input)
	}

	scale := c.config.Scale
	if scale == 0 {
		scale = 1
	}
	blob := gocv.BlobFromImage(input, scale, image.Pt(c.config.Width, c.config.Height), gocv.NewScalar(0, 0, 0, 0), !c.config.Grayscale, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	defer output.Close()

	nClasses := len(c.config.Classes)
	if int(output.Total()) < nClasses {
		return nil, fmt.Errorf("Emotion network produced %v outputs, but the model has %v classes", output.Total(), nClasses)
	}
	flat := output.Reshape(1, 1)
	defer flat.Close()
	scores := make([]float32, nClasses)
	for i := range scores {
		scores[i] = flat.GetFloatAt(0, i)
	}
	if c.config.Logits {
		softmax(scores)
	}

	emotions := map[string]float32{}
	for i, label := range c.config.Classes {
		emotions[label] = scores[i]
	}
	dominant := ""
	best := float32(0)
	for i, s := range scores {
		if i == 0 || s > best || (s == best && c.config.Classes[i] < dominant) {
			best = s
			dominant = c.config.Classes[i]
		}
	}

	return Analysis{
		AnalysisEmotion:         emotions,
		AnalysisFaceConfidence:  faceConfidence,
		AnalysisDominantEmotion: dominant,
		AnalysisRegion: map[string]any{
			"x": region.Min.X,
			"y": region.Min.Y,
			"w": region.Dx(),
			"h": region.Dy(),
		},
	}, nil
}

// Returns the most confident face, clipped to the image
func (c *DNNClassifier) detectFace(img *gocv.Mat) (image.Rectangle, float32, bool) {
	blob := gocv.BlobFromImage(*img, 1.0, image.Pt(faceNetSize, faceNetSize), faceNetMean, false, false)
	defer blob.Close()

	c.faceNet.SetInput(blob, "")
	output := c.faceNet.Forward("")
	defer output.Close()

	// Each detection is [batch, class, confidence, x1, y1, x2, y2], with coordinates normalized to 0..1
	detections := output.Reshape(1, output.Total()/7)
	defer detections.Close()

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	best := image.Rectangle{}
	bestConf := float32(0)
	for i := 0; i < detections.Rows(); i++ {
		conf := detections.GetFloatAt(i, 2)
		if conf < c.FaceThreshold || conf <= bestConf {
			continue
		}
		x1 := int(detections.GetFloatAt(i, 3) * float32(img.Cols()))
		y1 := int(detections.GetFloatAt(i, 4) * float32(img.Rows()))
		x2 := int(detections.GetFloatAt(i, 5) * float32(img.Cols()))
		y2 := int(detections.GetFloatAt(i, 6) * float32(img.Rows()))
		box := image.Rect(x1, y1, x2, y2).Intersect(bounds)
		if box.Empty() {
			continue
		}
		best = box
		bestConf = conf
	}
	return best, bestConf, bestConf > 0
}

func softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	maxV := x[0]
	for _, v := range x {
		maxV = max(maxV, v)
	}
	sum := float32(0)
	for i, v := range x {
		x[i] = float32(math.Exp(float64(v - maxV)))
		sum += x[i]
	}
	for i := range x {
		x[i] /= sum
	}
}
