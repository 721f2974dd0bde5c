package vector

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"scale invariant", []float32{1, 0}, []float32{100, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosine_errors(t *testing.T) {
	if _, err := Cosine([]float32{0, 0}, []float32{1, 0}); !errors.Is(err, ErrZeroMagnitude) {
		t.Errorf("zero a: %v", err)
	}
	if _, err := Cosine([]float32{1, 0}, []float32{0, 0}); !errors.Is(err, ErrZeroMagnitude) {
		t.Errorf("zero b: %v", err)
	}
	if _, err := Cosine([]float32{1}, []float32{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("mismatch: %v", err)
	}
	if _, err := Cosine(nil, nil); !errors.Is(err, ErrZeroMagnitude) {
		t.Errorf("empty: %v", err)
	}
	nan := float32(math.NaN())
	if _, err := Cosine([]float32{nan, 1}, []float32{1, 1}); !errors.Is(err, ErrNonFinite) {
		t.Errorf("nan: %v", err)
	}
}

func TestCosine_largeComponentsDoNotOverflow(t *testing.T) {
	big := float32(3e38)
	got, err := Cosine([]float32{big, big}, []float32{big, big})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("Cosine of large identical vectors = %v, want 1", got)
	}
}

func TestCosine_properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		a := randomVector(r, 16)
		b := randomVector(r, 16)
		ab, err := Cosine(a, b)
		if err != nil {
			t.Fatal(err)
		}
		ba, _ := Cosine(b, a)
		aa, _ := Cosine(a, a)
		if ab < -1 || ab > 1 {
			t.Fatalf("score %v out of range", ab)
		}
		if ab != ba {
			t.Fatalf("not symmetric: %v vs %v", ab, ba)
		}
		if math.Abs(aa-1) > 1e-9 {
			t.Fatalf("self-similarity %v, want 1", aa)
		}
	}
}

func randomVector(r *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	v[0] += 0.5 // never all zero
	return v
}

func TestInnerProductAndNorm(t *testing.T) {
	if InnerProduct([]float32{1, 2}, []float32{3, 4}) != 11 {
		t.Error("InnerProduct")
	}
	if InnerProduct([]float32{1}, []float32{1, 2}) != 0 {
		t.Error("mismatched lengths should give 0")
	}
	if L2Norm([]float32{3, 4}) != 5 {
		t.Error("L2Norm")
	}
}
