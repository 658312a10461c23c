package nn

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestDecodeAnalysis(t *testing.T) {
	// DeepFace returns one object per face
	body := `[{"emotion": {"happy": 0.9, "sad": 0.1}, "face_confidence": 0.8, "dominant_emotion": "happy"}]`
	a, err := DecodeAnalysis("application/json", []byte(body))
	require.NoError(t, err)
	require.Equal(t, "happy", a["dominant_emotion"])

	_, err = DecodeAnalysis("application/json", []byte(`[]`))
	require.Error(t, err)
	_, err = DecodeAnalysis("application/json", []byte(`42`))
	require.Error(t, err)
	_, err = DecodeAnalysis("application/json", []byte(`{`))
	require.Error(t, err)

	// msgpack keeps float32 as float32, which we must widen
	packed, err := msgpack.Marshal(map[string]any{
		"emotion":         map[string]float32{"happy": 0.25, "sad": 0.75},
		"face_confidence": float32(0.5),
	})
	require.NoError(t, err)
	a, err = DecodeAnalysis(MimeMsgpack, packed)
	require.NoError(t, err)
	r, err := ParseAnalysis(a, DefaultEmotionClasses)
	require.NoError(t, err)
	require.Equal(t, []string{"happy", "sad"}, r.Emotions.Labels())
	v, _ := r.Emotions.Get("sad")
	require.Equal(t, 0.75, v)
	require.Equal(t, 0.5, r.FaceConfidence)
}

func TestRemoteClassifierHTTP(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze", r.URL.Path)
		require.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		received, _ = io.ReadAll(r.Body)
		if string(received) == "bad" {
			http.Error(w, "no face", http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"emotion":         map[string]float64{"neutral": 1},
			"face_confidence": 0.0,
		})
	}))
	defer server.Close()

	c := NewRemoteClassifier(server.URL+"/", nil)
	defer c.Close()
	require.Equal(t, DefaultEmotionClasses, c.Config().Classes)

	a, err := c.classifyJPEG([]byte("jpeg"))
	require.NoError(t, err)
	require.Equal(t, "jpeg", string(received))
	require.Equal(t, map[string]any{"neutral": 1.0}, a["emotion"])

	_, err = c.classifyJPEG([]byte("bad"))
	require.ErrorContains(t, err, "no face")
}
