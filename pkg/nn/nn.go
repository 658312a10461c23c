// Package nn is the emotion classifier interface layer.
// To load a classifier, use the nnload package.
package nn

import (
	"encoding/json"
	"os"

	"gocv.io/x/gocv"
)

// The emotion labels produced by the common FER/DeepFace family of models, in their output order
var DefaultEmotionClasses = []string{"angry", "disgust", "fear", "happy", "sad", "surprise", "neutral"}

// Analysis is the raw output of a classifier for a single image.
// It has the same shape as the JSON that the classifier services emit:
//
//	{"emotion": {"happy": 0.91, ...}, "face_confidence": 0.98, "dominant_emotion": "happy", "region": {...}}
//
// Numbers may be float32, so run it through Float64 before serializing.
type Analysis map[string]any

// Keys inside Analysis
const (
	AnalysisEmotion         = "emotion"
	AnalysisFaceConfidence  = "face_confidence"
	AnalysisDominantEmotion = "dominant_emotion"
	AnalysisRegion          = "region"
)

// EmotionClassifier is given an image, and returns the emotions of the most prominent face.
// If no face is found, then the whole image is classified, and face_confidence is zero.
// Classifiers are not safe for concurrent use.
type EmotionClassifier interface {
	// Close closes the classifier (you MUST call this when finished, because it may be a C++ object underneath)
	Close()

	// Classify analyzes a BGR image
	Classify(img *gocv.Mat) (Analysis, error)

	// Model Config.
	// Callers assume that ModelConfig will remain constant, so don't change it
	// once the classifier has been created.
	Config() *ModelConfig
}

// ModelConfig is saved in a JSON file along with the weights of the NN model
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "ferplus"
	Width        int      `json:"width"`        // eg 64
	Height       int      `json:"height"`       // eg 64
	Classes      []string `json:"classes"`      // eg ["neutral", "happy", "surprise", ...]
	Grayscale    bool     `json:"grayscale"`    // Model input is a single channel
	Logits       bool     `json:"logits"`       // Model outputs logits, which must be passed through softmax
	Scale        float64  `json:"scale"`        // Pixel scale factor applied before inference (zero = 1)
}

// DefaultModelConfig is used when a classifier doesn't come with its own config file (eg a remote service)
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		Architecture: "remote",
		Classes:      append([]string{}, DefaultEmotionClasses...),
	}
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, err
	}
	if len(config.Classes) == 0 {
		config.Classes = append([]string{}, DefaultEmotionClasses...)
	}
	return config, nil
}
