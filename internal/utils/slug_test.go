package utils

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Battery Health Check":  "battery-health-check",
		"  Bảo dưỡng pin & sạc ": "bao-duong-pin-and-sac",
		"Đại tu / Overhaul":     "dai-tu-overhaul",
		"Tire's rotation!!":     "tires-rotation",
		"---":                   "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
