package utils

import "testing"

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("Truncate long = %q", got)
	}
	if got := Truncate("hello", 0); got != "hello" {
		t.Errorf("Truncate zero = %q", got)
	}
}

func TestDescriptionFromFilename(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/data/images/chest_x-ray_frontal.png", "chest x ray frontal"},
		{"mri-brain-axial.jpg", "mri brain axial"},
		{"ultrasound.webp", "ultrasound"},
		{"a__b.jpeg", "a b"},
	}
	for _, c := range cases {
		if got := DescriptionFromFilename(c.path); got != c.want {
			t.Errorf("DescriptionFromFilename(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}
