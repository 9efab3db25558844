package location

import (
	"math"
	"testing"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 52.2297, lng1: 21.0122,
			lat2: 52.2297, lng2: 21.0122,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "Warsaw to Krakow (~252km)",
			lat1: 52.2297, lng1: 21.0122,
			lat2: 50.0647, lng2: 19.9450,
			wantKm:    252,
			tolerance: 5,
		},
		{
			name: "New York to Los Angeles (~3944km)",
			lat1: 40.7128, lng1: -74.0060,
			lat2: 34.0522, lng2: -118.2437,
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("haversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := haversineKm(25.0, 121.0, 26.0, 122.0)
	d2 := haversineKm(26.0, 122.0, 25.0, 121.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestSamePostalCode(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"SW1A 1AA", "sw1a1aa", true},
		{"00-950", "00-950", true},
		{"00-950", "00-951", false},
		{"", "", true},
	}
	for _, c := range cases {
		if got := samePostalCode(c.a, c.b); got != c.want {
			t.Errorf("samePostalCode(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
