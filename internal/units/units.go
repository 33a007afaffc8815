package units

import "fmt"

// Canonical storage units are bytes and kbps; the UI works in GB and Mbps.
// Conversion happens only at the input/display boundary.

const (
	bytesPerGB  = 1 << 30
	kbpsPerMbps = 1000
)

func GBToBytes(gb float64) int64 {
	return int64(gb * bytesPerGB)
}

func BytesToGB(b int64) float64 {
	return float64(b) / bytesPerGB
}

func MbpsToKbps(mbps float64) int {
	return int(mbps * kbpsPerMbps)
}

func KbpsToMbps(kbps int) float64 {
	return float64(kbps) / kbpsPerMbps
}

func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.1f GB", BytesToGB(bytes))
}

func FormatBitrate(kbps int) string {
	return fmt.Sprintf("%.1f Mbps", KbpsToMbps(kbps))
}
