package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// MIMEType is what every materialized upload is handed to the model as.
// Uploads are always stored with an .mp4 suffix whatever their container.
const MIMEType = "video/mp4"

var ErrTooLarge = errors.New("input file size exceeds limit")

var allowedExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".avi": true,
}

// AllowedExtension reports whether name has one of the accepted video extensions.
func AllowedExtension(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Extensions lists the accepted extensions for file pickers.
func Extensions() string {
	return ".mp4,.mov,.avi"
}

// SaveUpload copies src into a new temporary .mp4 file in dir and returns
// its path. On error no file is left behind.
func SaveUpload(dir string, src io.Reader, maxSize int64) (string, error) {
	tmpFile, err := os.CreateTemp(dir, "upload_*.mp4")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmpFile.Name()

	fail := func(err error) (string, error) {
		tmpFile.Close()
		Remove(path)
		return "", err
	}

	reader := src
	if maxSize > 0 {
		reader = &io.LimitedReader{R: src, N: maxSize + 1}
	}
	written, err := io.Copy(tmpFile, reader)
	if err != nil {
		return fail(fmt.Errorf("failed to write uploaded file: %w", err))
	}
	if maxSize > 0 && written > maxSize {
		return fail(fmt.Errorf("%w of %d bytes", ErrTooLarge, maxSize))
	}
	// Close here so the data is flushed before the uploader reads it.
	if err := tmpFile.Close(); err != nil {
		Remove(path)
		return "", err
	}
	return path, nil
}

// Remove deletes path, best-effort. A missing file is not an error.
func Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not remove temp file", slog.String("path", path), slog.Any("error", err))
	}
}
