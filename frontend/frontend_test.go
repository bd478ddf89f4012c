package frontend

import "testing"

func assertFrontend(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestRGB332Extremes(t *testing.T) {
	r, g, b := rgb332(0x00)
	assertFrontend(t, r == 0 && g == 0 && b == 0, "0x00 should decode to black, got %d %d %d", r, g, b)

	r, g, b = rgb332(0xFF)
	assertFrontend(t, r == 255 && g == 255 && b == 255, "0xFF should decode to white, got %d %d %d", r, g, b)
}

func TestRGB332ChannelIsolation(t *testing.T) {
	// 0b111_000_00: red fully on, green and blue off.
	r, g, b := rgb332(0b111_000_00)
	assertFrontend(t, r == 255, "red channel should be fully on, got %d", r)
	assertFrontend(t, g == 0, "green channel should be off, got %d", g)
	assertFrontend(t, b == 0, "blue channel should be off, got %d", b)
}

// New and the ebiten.Game methods themselves need a graphics
// driver (a real or virtual display) to allocate ebiten.Image values,
// so they aren't exercised here; rgb332/expandBits are the pure,
// driver-free logic worth covering in this package.
