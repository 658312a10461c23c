// Package nnload wraps up our 'nn' interface layer, and has concrete references to our
// classifier implementations (OpenCV DNN, or a remote service), so that you can just call
// one function to load a classifier, and not need to know about the implementation details.
package nnload

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/emotrack/pkg/nn"
	"github.com/cyclopcam/logs"
)

// SSD face detector files, which live in the model directory alongside the emotion models
const (
	FaceModelFile  = "face_detector.caffemodel"
	FaceConfigFile = "face_detector.prototxt"
)

// Options for LoadClassifier
type Options struct {
	ModelDir    string // Directory holding <ModelName>.json, <ModelName>.onnx, and the face detector
	ModelName   string // eg "ferplus"
	RemoteURL   string // If not empty, use a remote emotion service instead of a local model
	DownloadURL string // If not empty, missing model files are downloaded from here
}

func downloadFile(srcUrl, targetFile string) error {
	tempFile := targetFile + ".tmp"
	if err := os.MkdirAll(filepath.Dir(targetFile), 0755); err != nil {
		return err
	}
	resp, err := http.DefaultClient.Get(srcUrl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP error %v", resp.Status)
	}
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(file, resp.Body)
	if err != nil {
		os.Remove(tempFile)
		return err
	}
	file.Close()
	return os.Rename(tempFile, targetFile)
}

// ModelFiles returns the files that make up a model, relative to the model directory
func ModelFiles(modelName string) []string {
	return []string{
		modelName + ".json",
		modelName + ".onnx",
		FaceModelFile,
		FaceConfigFile,
	}
}

// If the model files are not yet downloaded, then download them now.
// Returns immediately if the files are already downloaded.
func DownloadModel(logs logs.Log, baseUrl, modelDir, modelName string) error {
	baseUrl = strings.TrimSuffix(baseUrl, "/")
	for _, file := range ModelFiles(modelName) {
		diskPath := filepath.Join(modelDir, file)
		networkUrl := baseUrl + "/" + file
		if _, err := os.Stat(diskPath); os.IsNotExist(err) {
			logs.Infof("Downloading %v to %v", networkUrl, diskPath)
			if err := downloadFile(networkUrl, diskPath); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

// LoadClassifier creates an emotion classifier.
// For a remote classifier, the model config is optional. If <ModelName>.json exists, its class
// list determines the order of emotions in our output.
func LoadClassifier(logs logs.Log, options Options) (nn.EmotionClassifier, error) {
	fullPathBase := filepath.Join(options.ModelDir, options.ModelName)

	if options.RemoteURL != "" {
		var config *nn.ModelConfig
		if options.ModelName != "" {
			if cfg, err := nn.LoadModelConfig(fullPathBase + ".json"); err == nil {
				config = cfg
			} else if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
		logs.Infof("Using remote emotion classifier at %v", options.RemoteURL)
		return nn.NewRemoteClassifier(options.RemoteURL, config), nil
	}

	if options.ModelName == "" {
		return nil, errors.New("No emotion model specified")
	}

	if options.DownloadURL != "" {
		if err := DownloadModel(logs, options.DownloadURL, options.ModelDir, options.ModelName); err != nil {
			return nil, fmt.Errorf("Download failed: %w", err)
		}
	}

	config, err := nn.LoadModelConfig(fullPathBase + ".json")
	if err != nil {
		return nil, err
	}

	modelFile := fullPathBase + ".onnx"
	if _, err := os.Stat(modelFile); err != nil {
		return nil, fmt.Errorf("Unrecognized NN model type %v: %w", fullPathBase, err)
	}

	faceModel := filepath.Join(options.ModelDir, FaceModelFile)
	faceConfig := filepath.Join(options.ModelDir, FaceConfigFile)
	_, eModel := os.Stat(faceModel)
	_, eConfig := os.Stat(faceConfig)
	if eModel != nil || eConfig != nil {
		logs.Warnf("Face detector not found in %v. Whole frames will be classified", options.ModelDir)
		faceModel = ""
		faceConfig = ""
	}

	logs.Infof("Loading emotion model %v (%v, %v x %v)", modelFile, config.Architecture, config.Width, config.Height)
	return nn.NewDNNClassifier(config, modelFile, faceModel, faceConfig)
}
