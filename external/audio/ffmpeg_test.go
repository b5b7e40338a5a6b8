package audio

import (
	"testing"
	"time"
)

func TestFormatSeekPosition(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{83 * time.Second, "00:01:23"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
	}
	for _, c := range cases {
		if got := formatSeekPosition(c.in); got != c.want {
			t.Fatalf("formatSeekPosition(%s) = %q, want %q", c.in, got, c.want)
		}
	}
}
