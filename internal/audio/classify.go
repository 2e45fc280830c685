package audio

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	permissionMarkers = []string{
		"permission denied",
		"operation not permitted",
		"not authorized",
		"access denied",
	}
	notFoundMarkers = []string{
		"no such entity",
		"no such device",
		"no such file or directory",
		"no such source",
		"could not find audio device",
		"unknown input format",
		"connection refused",
	}
	busyMarkers = []string{
		"device or resource busy",
		"resource temporarily unavailable",
	}
)

// classifyFFmpegError maps ffmpeg stderr output and the process error to
// one of the package sentinels.
func classifyFFmpegError(stderr string, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	lower := strings.ToLower(stderr)
	detail := lastNonEmptyLine(stderr)
	if detail == "" && err != nil {
		detail = err.Error()
	}

	switch {
	case containsAny(lower, permissionMarkers):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, detail)
	case containsAny(lower, busyMarkers):
		return fmt.Errorf("%w: %s", ErrDeviceBusy, detail)
	case containsAny(lower, notFoundMarkers):
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, detail)
	}
	return fmt.Errorf("%w: %s", ErrDeviceFailure, detail)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
