package streaming

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Video.Width != 1000 || cfg.Video.Height != 1000 || cfg.Video.Bitrate != 6144000 ||
		cfg.Video.FPS != 25 || cfg.Video.Rotation != 90 {
		t.Errorf("video defaults = %+v", cfg.Video)
	}
	if cfg.Audio.SampleRate != 48000 || !cfg.Audio.Stereo || cfg.Audio.Bitrate != 128000 {
		t.Errorf("audio defaults = %+v", cfg.Audio)
	}
}

func TestOutputSize(t *testing.T) {
	tests := []struct {
		orientation Orientation
		w, h        int
		wantW       int
		wantH       int
	}{
		{OrientationAuto, 720, 1280, 720, 1280},
		{OrientationLandscape, 720, 1280, 1280, 720},
		{OrientationLandscape, 1280, 720, 1280, 720},
		{OrientationPortrait, 1280, 720, 720, 1280},
		{OrientationLandscape, 1000, 1000, 1000, 1000},
	}

	for _, tt := range tests {
		w, h := TargetSettings{Orientation: tt.orientation}.outputSize(tt.w, tt.h)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("outputSize(%d, %d) with %d = %dx%d, want %dx%d", tt.w, tt.h, tt.orientation, w, h, tt.wantW, tt.wantH)
		}
	}
}
