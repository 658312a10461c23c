package videox

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Extract the duration of a video file.
// Containers without a reliable frame count (eg some webm and mkv files) need this.
func ExtractVideoDuration(srcFilename string) (time.Duration, error) {
	out, err := runTool("ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", srcFilename)
	if err != nil {
		return 0, err
	}
	return parseProbeDuration(string(out))
}

// ffprobe sometimes emits warnings before the value, eg
//
//	Warning: using insecure memory!
//	6.399000
func parseProbeDuration(outStr string) (time.Duration, error) {
	for _, line := range strings.Split(outStr, "\n") {
		if seconds, err := strconv.ParseFloat(strings.TrimSpace(line), 64); err == nil {
			return time.Duration(seconds * float64(time.Second)), nil
		}
	}
	return 0, fmt.Errorf("Unable to parse ffprobe output: %v", outStr)
}

// runTool runs an executable from PATH, such as ffprobe, and returns its combined output.
// On failure, the output is included in the error.
func runTool(name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("Unable to find '%v' in your path (%w)", name, err)
	}
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%v failed: %w (%v)", name, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}
