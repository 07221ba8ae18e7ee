package model

import "testing"

func TestParseQuality(t *testing.T) {
	tests := []struct {
		input   string
		want    Quality
		wantErr bool
	}{
		{"HI_RES_LOSSLESS", QualityHiResLossless, false},
		{"LOSSLESS", QualityLossless, false},
		{"HIGH", QualityHigh, false},
		{"LOW", QualityLow, false},
		{"player", "", true},
		{"lossless", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseQuality(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseQuality(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseQuality(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStoredQualitiesOrder(t *testing.T) {
	qs := StoredQualities()
	if len(qs) != 4 {
		t.Fatalf("expected 4 stored qualities, got %d", len(qs))
	}
	if qs[0] != QualityHiResLossless || qs[3] != QualityLow {
		t.Errorf("stored qualities not ordered best-first: %v", qs)
	}
	if QualityPlayer.Stored() {
		t.Error("player sentinel must not be a stored quality")
	}
}
