package utils

import "testing"

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dl 1ab-1234", "DL1AB1234"},
		{"  KA.05.EF.9012 ", "KA05EF9012"},
		{"", ""},
		{"--//", ""},
		{"mh2cd5678", "MH2CD5678"},
		{"KA05ÉF9012", "KA05F9012"},
		{"ka05١٢", "KA05"},
	}
	for _, tt := range tests {
		if got := NormalizePlate(tt.in); got != tt.want {
			t.Errorf("NormalizePlate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsPlausiblePlate(t *testing.T) {
	if IsPlausiblePlate("AB1") {
		t.Fatal("three characters should not be a plate")
	}
	if !IsPlausiblePlate("AB12") {
		t.Fatal("four characters should be a plate")
	}
}
