package telemetry

import (
	"io"
	"log"
	"os"
)

// SetupLogging configures the standard logger. When path is set, output goes
// to stderr and to a size-rotated file. The returned closer flushes the file.
func SetupLogging(path string) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if path == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}
	file := newRotatingFile(path)
	log.SetOutput(io.MultiWriter(os.Stderr, file))
	return file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
