package iox

import (
	"errors"
	"io"
	"os"
)

var ErrTooLarge = errors.New("stream exceeds size limit")

func WriteStreamToFile(dstFilename string, src io.Reader) error {
	return WriteStreamToFileLimited(dstFilename, src, 0)
}

// WriteStreamToFileLimited copies src into a new file, and fails with ErrTooLarge if src is
// longer than maxBytes. If maxBytes is zero, there is no limit.
// On failure, the partially written file is removed.
func WriteStreamToFileLimited(dstFilename string, src io.Reader, maxBytes int64) error {
	dstFile, err := os.Create(dstFilename)
	if err != nil {
		return err
	}
	defer dstFile.Close()
	if maxBytes > 0 {
		// Read one extra byte, so that we can tell the difference between "exactly maxBytes" and "too long"
		src = io.LimitReader(src, maxBytes+1)
	}
	n, err := io.Copy(dstFile, src)
	if err == nil && maxBytes > 0 && n > maxBytes {
		err = ErrTooLarge
	}
	if err == nil {
		err = dstFile.Close()
	}
	if err != nil {
		os.Remove(dstFilename)
		return err
	}
	return nil
}
