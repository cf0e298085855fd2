package tesseract

import (
	"math"
	"testing"
)

func TestMeanConfidence(t *testing.T) {
	cases := []struct {
		scores []float64
		want   float64
	}{
		{nil, 0},
		{[]float64{90}, 90},
		{[]float64{95.5, 80.5, 70}, 82},
	}
	for _, tc := range cases {
		if got := MeanConfidence(tc.scores); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("MeanConfidence(%v) = %f, want %f", tc.scores, got, tc.want)
		}
	}
}
