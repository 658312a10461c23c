package nn

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"gocv.io/x/gocv"
)

const MimeMsgpack = "application/msgpack"

// RemoteClassifier sends frames to an HTTP emotion analysis service (eg a DeepFace wrapper).
//
//	POST <URL>/analyze   body: JPEG image
//
// The response is a DeepFace-style analysis object, or an array of them (one per face),
// encoded as JSON or msgpack.
type RemoteClassifier struct {
	URL    string
	client *http.Client
	config *ModelConfig
}

func NewRemoteClassifier(url string, config *ModelConfig) *RemoteClassifier {
	if config == nil {
		config = DefaultModelConfig()
	}
	return &RemoteClassifier{
		URL: strings.TrimSuffix(url, "/"),
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
		config: config,
	}
}

func (r *RemoteClassifier) Close() {
	r.client.CloseIdleConnections()
}

func (r *RemoteClassifier) Config() *ModelConfig {
	return r.config
}

func (r *RemoteClassifier) Classify(img *gocv.Mat) (Analysis, error) {
	if img == nil || img.Empty() {
		return nil, errors.New("Empty image")
	}
	buf, err := gocv.IMEncode(".jpg", *img)
	if err != nil {
		return nil, fmt.Errorf("Failed to encode image: %w", err)
	}
	defer buf.Close()
	return r.classifyJPEG(buf.GetBytes())
}

func (r *RemoteClassifier) classifyJPEG(jpg []byte) (Analysis, error) {
	req, err := http.NewRequest("POST", r.URL+"/analyze", bytes.NewReader(jpg))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", MimeMsgpack+", application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Emotion service returned %v: %v", resp.Status, strings.TrimSpace(string(body)))
	}
	return DecodeAnalysis(resp.Header.Get("Content-Type"), body)
}

// DecodeAnalysis decodes the response of an emotion analysis service.
// If the response holds several faces, the first one is returned.
func DecodeAnalysis(contentType string, body []byte) (Analysis, error) {
	var v any
	if strings.HasPrefix(contentType, MimeMsgpack) || strings.HasPrefix(contentType, "application/x-msgpack") {
		if err := msgpack.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("Invalid msgpack analysis: %w", err)
		}
	} else {
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("Invalid JSON analysis: %w", err)
		}
	}
	switch t := v.(type) {
	case map[string]any:
		return Analysis(t), nil
	case []any:
		if len(t) == 0 {
			return nil, errors.New("Analysis contains no faces")
		}
		if first, ok := t[0].(map[string]any); ok {
			return Analysis(first), nil
		}
	}
	return nil, fmt.Errorf("Unexpected analysis type %T", v)
}
