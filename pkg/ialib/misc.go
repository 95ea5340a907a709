package ialib

import (
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size unit constants for byte conversions.
const (
	B  int64 = 1
	KB       = 1024 * B
	MB       = 1024 * KB
	GB       = 1024 * MB
)

// Defaults for the scheduler and transfer engine.
const (
	DefMaxConcurrent    = 3
	DefChunkSize        = 64 * KB
	DefFlushBytes       = 1 * MB
	DefFlushInterval    = 500 * time.Millisecond
	DefProgressInterval = 500 * time.Millisecond
	DefUserAgent        = "ia-helper/1.0"
)

// FormatBytes renders a byte count for display. Negative values stand
// for an unknown size.
func FormatBytes(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(n))
}

// SanitizeFilename removes or replaces characters invalid on
// Windows/Unix filesystems, preserving the extension.
func SanitizeFilename(name string) string {
	if name == "" {
		return "download"
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	for _, c := range []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*"} {
		name = strings.ReplaceAll(name, c, "_")
	}
	var b strings.Builder
	for _, r := range name {
		if r >= 32 {
			b.WriteRune(r)
		}
	}
	name = strings.Trim(b.String(), " .")
	if name == "" {
		name = "download"
	}
	return name
}
