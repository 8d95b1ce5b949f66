package search

import (
	"math"
	"testing"

	"github.com/khanglvm/profile-qa/internal/errkind"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{0.3, 0.4, 0.5}, []float32{0.3, 0.4, 0.5}, 1},
		{"opposite", []float32{1, -2, 3}, []float32{-1, 2, -3}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero magnitude", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestCosineSimilarity_InvalidInput(t *testing.T) {
	if _, err := CosineSimilarity([]float32{1, 2}, []float32{1}); !errkind.IsInvalidInput(err) {
		t.Errorf("expected invalid input for length mismatch, got %v", err)
	}

	nan := float32(math.NaN())
	if _, err := CosineSimilarity([]float32{nan, 1}, []float32{1, 1}); !errkind.IsInvalidInput(err) {
		t.Errorf("expected invalid input for NaN component, got %v", err)
	}
}

func TestCosineSimilarity_LargeDimension(t *testing.T) {
	a := make([]float32, 1024)
	b := make([]float32, 1024)
	for i := range a {
		a[i] = float32(i%7) + 1
		b[i] = -a[i]
	}

	got, err := CosineSimilarity(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got+1) > 1e-6 {
		t.Errorf("expected -1, got %f", got)
	}
}
