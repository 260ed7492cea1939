package ffmpeg

import (
	"fmt"
	"slices"
	"strings"
)

// Base returns the ffmpeg invocation with the flags every run uses.
// Levels are prefixed so ParseLogLevel can route each line.
func Base() string {
	return "ffmpeg -hide_banner -nostats -loglevel level+info"
}

// BuildCommand builds the encoder command line.
func BuildCommand(p *Params) string {
	var cmd strings.Builder
	cmd.WriteString(Base())

	// Video from stdin
	applyInputOptions(p.Options, &cmd)
	switch p.InputFormat {
	case "rawvideo":
		cmd.WriteString(" -f rawvideo")
		if p.PixelFormat != "" {
			cmd.WriteString(" -pix_fmt " + p.PixelFormat)
		}
		cmd.WriteString(fmt.Sprintf(" -video_size %dx%d", p.InputWidth, p.InputHeight))
	default:
		cmd.WriteString(" -f mjpeg")
	}
	if p.FPS > 0 {
		cmd.WriteString(fmt.Sprintf(" -framerate %d", p.FPS))
	}
	cmd.WriteString(" -i pipe:0")

	// Audio from ALSA
	if p.AudioDevice != "" {
		cmd.WriteString(" -thread_queue_size 1024")
		cmd.WriteString(fmt.Sprintf(" -f alsa -ar %d -ac %d", p.AudioSampleRate, p.AudioChannels))
		cmd.WriteString(" -i " + p.AudioDevice)
		cmd.WriteString(" -map 0:v -map 1:a")
	}

	if filters := VideoFilters(p); filters != "" {
		cmd.WriteString(" -vf " + filters)
	}

	cmd.WriteString(" -c:v " + p.Encoder)
	if p.Encoder == "libx264" {
		cmd.WriteString(" -pix_fmt yuv420p -profile:v high")
	}
	if p.Preset != "" {
		cmd.WriteString(" -preset " + p.Preset)
	}
	if !isHardwareEncoder(p.Encoder) {
		cmd.WriteString(" -tune zerolatency")
	}
	if p.Bitrate > 0 {
		cmd.WriteString(fmt.Sprintf(" -b:v %d -maxrate %d -bufsize %d", p.Bitrate, p.Bitrate, p.Bitrate*2))
	}
	if p.FPS > 0 {
		cmd.WriteString(fmt.Sprintf(" -r %d", p.FPS))
	}
	if p.GOP > 0 {
		cmd.WriteString(fmt.Sprintf(" -g %d -keyint_min %d", p.GOP, p.GOP))
	}
	cmd.WriteString(" -bf 0")

	if p.AudioDevice != "" {
		cmd.WriteString(fmt.Sprintf(" -c:a aac -b:a %d -ar %d -ac %d", p.AudioBitrate, p.AudioSampleRate, p.AudioChannels))
	}

	if slices.Contains(p.Options, OptionLowLatency) {
		cmd.WriteString(" -flush_packets 1")
	}

	if p.Progress {
		cmd.WriteString(" -progress pipe:1")
	}

	cmd.WriteString(" -rtsp_transport tcp -f rtsp " + p.OutputURL)
	return cmd.String()
}

// VideoFilters returns the -vf chain: rotation first, then fit to the
// output size.
func VideoFilters(p *Params) string {
	var chain []string

	switch p.Rotation {
	case 90:
		chain = append(chain, "transpose=1")
	case 180:
		chain = append(chain, "transpose=1,transpose=1")
	case 270:
		chain = append(chain, "transpose=2")
	}

	if p.Width > 0 && p.Height > 0 {
		if p.FitAdjust {
			chain = append(chain,
				fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", p.Width, p.Height),
				fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", p.Width, p.Height))
		} else {
			chain = append(chain, fmt.Sprintf("scale=%d:%d", p.Width, p.Height))
		}
	}

	return strings.Join(chain, ",")
}
