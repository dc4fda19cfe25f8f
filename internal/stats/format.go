package stats

import "fmt"

// Binary (base-2) size prefixes, matching the parsing convention used for
// configured byte sizes elsewhere in the module.
const (
	_ = 1.0 << (10 * iota)
	kib
	mib
	gib
	tib
)

// formatBytes renders a byte count the way a human reads it, e.g. "12.34MB".
func formatBytes(n int64) string {
	val := float64(n)
	switch {
	case val >= tib:
		return fmt.Sprintf("%.2fTB", val/tib)
	case val >= gib:
		return fmt.Sprintf("%.2fGB", val/gib)
	case val >= mib:
		return fmt.Sprintf("%.2fMB", val/mib)
	case val >= kib:
		return fmt.Sprintf("%.2fKB", val/kib)
	default:
		return fmt.Sprintf("%.0fB", val)
	}
}

// formatSpeed renders a bytes/second rate as a human-readable throughput.
func formatSpeed(bytesPerSecond float64) string {
	return formatBytes(int64(bytesPerSecond)) + "/s"
}
