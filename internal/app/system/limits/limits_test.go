package limits

import "testing"

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultSelectLimit},
		{-5, DefaultSelectLimit},
		{10, 10},
		{MaxSelectLimit, MaxSelectLimit},
		{MaxSelectLimit + 1, MaxSelectLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
