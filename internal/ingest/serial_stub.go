//go:build !linux

package ingest

import (
	"fmt"
	"os"
	"runtime"
)

func openSerial(path string, baud int) (*os.File, error) {
	return nil, fmt.Errorf("serial source %s: not supported on %s", path, runtime.GOOS)
}
