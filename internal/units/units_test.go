package units

import "testing"

func TestGBBytesRoundTrip(t *testing.T) {
	for _, gb := range []float64{0, 0.5, 1, 2.5, 100} {
		got := BytesToGB(GBToBytes(gb))
		if diff := got - gb; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("round trip %v GB -> %v", gb, got)
		}
	}
}

func TestMbpsKbpsRoundTrip(t *testing.T) {
	for _, mbps := range []float64{0, 1, 8.5, 25} {
		got := KbpsToMbps(MbpsToKbps(mbps))
		if diff := got - mbps; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("round trip %v Mbps -> %v", mbps, got)
		}
	}
}

func TestGBToBytes(t *testing.T) {
	if got := GBToBytes(2); got != 2<<30 {
		t.Errorf("GBToBytes(2) = %d, want %d", got, int64(2<<30))
	}
}

func TestFormat(t *testing.T) {
	if got := FormatSize(8 << 30); got != "8.0 GB" {
		t.Errorf("FormatSize = %q", got)
	}
	if got := FormatBitrate(2500); got != "2.5 Mbps" {
		t.Errorf("FormatBitrate = %q", got)
	}
}
