package ffmpeg

import "testing"

func TestDefaultOptionsAreValid(t *testing.T) {
	defaults := DefaultOptions()
	if len(defaults) == 0 {
		t.Fatal("expected default options")
	}
	if err := ValidateOptions(defaults); err != nil {
		t.Errorf("default options invalid: %v", err)
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantErr bool
	}{
		{"empty", nil, false},
		{"valid", []string{"genpts", " igndts "}, false},
		{"unknown", []string{"turbo"}, true},
		{"exclusive group", []string{"thread_queue_1024", "thread_queue_4096"}, true},
		{"conflict", []string{"genpts", "wallclock_ts"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOptions(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseOptions(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestIsHardwareEncoder(t *testing.T) {
	for codec, want := range map[string]bool{
		"libx264":      false,
		"h264_vaapi":   true,
		"h264_v4l2m2m": true,
		"h264_rkmpp":   true,
	} {
		if got := isHardwareEncoder(codec); got != want {
			t.Errorf("isHardwareEncoder(%q) = %v, want %v", codec, got, want)
		}
	}
}
