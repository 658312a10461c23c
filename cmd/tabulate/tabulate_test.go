package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyclopcam/emotrack/pkg/emotion"
	"github.com/stretchr/testify/require"
)

func TestMissingArguments(t *testing.T) {
	require.ErrorIs(t, run([]string{"tabulate"}), errUsage)
	require.ErrorIs(t, run([]string{"tabulate", "a.json", "b.csv", "c"}), errUsage)
}

func TestTabulate(t *testing.T) {
	dir := t.TempDir()
	agg := emotion.Aggregation{0: emotion.NewSecondBucket()}
	agg[0].FramesAnalyzed = 1
	agg[0].FaceConfidence = 0.5
	agg[0].Emotions.Set("happy", 1)
	agg[0].PrevalentEmotion = "happy"
	input := filepath.Join(dir, "results.json")
	f, err := os.Create(input)
	require.NoError(t, err)
	require.NoError(t, emotion.EncodeAggregation(f, agg))
	require.NoError(t, f.Close())

	output := filepath.Join(dir, "table.csv")
	require.NoError(t, run([]string{"tabulate", input, output}))
	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Equal(t, 2, len(lines))
	require.Equal(t, "second,frames_analyzed,face_confidence,prevalent_emotion,emotion_happy", lines[0])
	require.Equal(t, "0,1,0.5,happy,1", lines[1])

	// Printed table
	require.NoError(t, run([]string{"tabulate", input}))

	// Empty results have no table
	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("{}"), 0644))
	require.Error(t, run([]string{"tabulate", empty, filepath.Join(dir, "empty.csv")}))
	_, err = os.Stat(filepath.Join(dir, "empty.csv"))
	require.True(t, os.IsNotExist(err))
}
