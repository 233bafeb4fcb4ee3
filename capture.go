package firm

import "os"

// openCapture opens a mock log capture file from disk for StartMockLogStream.
func openCapture(path string) (*os.File, error) {
	return os.Open(path)
}
