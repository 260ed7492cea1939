package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smazurov/uvcrtsp/cmd"
	"github.com/smazurov/uvcrtsp/internal/api"
	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/config"
	"github.com/smazurov/uvcrtsp/internal/events"
	"github.com/smazurov/uvcrtsp/internal/led"
	"github.com/smazurov/uvcrtsp/internal/lifecycle"
	"github.com/smazurov/uvcrtsp/internal/logging"
	"github.com/smazurov/uvcrtsp/internal/metrics"
	"github.com/smazurov/uvcrtsp/internal/metrics/collectors"
	"github.com/smazurov/uvcrtsp/internal/permission"
	"github.com/smazurov/uvcrtsp/internal/streaming"
	"github.com/smazurov/uvcrtsp/internal/systemd"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// HTTP API
	Listen string `help:"HTTP API listen address" short:"p" default:":8090" toml:"server.listen" env:"SERVER_LISTEN"`

	// RTSP endpoint
	StreamBasePort int    `help:"RTSP base port; each device streams on base + its device number" default:"10554" toml:"stream.base_port" env:"STREAM_BASE_PORT"`
	StreamBindHost string `help:"Address the RTSP endpoint listens on (empty for all)" default:"" toml:"stream.bind_host" env:"STREAM_BIND_HOST"`
	StreamHost     string `help:"Host advertised in RTSP URLs" default:"localhost" toml:"stream.host" env:"STREAM_HOST"`

	// Encoder
	EncoderCodec    string `help:"FFmpeg video encoder" default:"libx264" toml:"encoder.codec" env:"ENCODER_CODEC"`
	EncoderPreset   string `help:"Encoder preset" default:"veryfast" toml:"encoder.preset" env:"ENCODER_PRESET"`
	EncoderProgress bool   `help:"Parse FFmpeg progress into metrics" default:"true" toml:"encoder.progress" env:"ENCODER_PROGRESS"`

	// Video target
	VideoWidth     int    `help:"Output width" default:"1000" toml:"video.width" env:"VIDEO_WIDTH"`
	VideoHeight    int    `help:"Output height" default:"1000" toml:"video.height" env:"VIDEO_HEIGHT"`
	VideoBitrate   int    `help:"Video bitrate in bits per second" default:"6144000" toml:"video.bitrate" env:"VIDEO_BITRATE"`
	VideoFPS       int    `help:"Frame rate" default:"25" toml:"video.fps" env:"VIDEO_FPS"`
	VideoKeyframe  int    `help:"Keyframe interval in seconds" default:"2" toml:"video.keyframe_interval" env:"VIDEO_KEYFRAME_INTERVAL"`
	VideoRotation  int    `help:"Rotation in degrees (0, 90, 180, 270)" default:"90" toml:"video.rotation" env:"VIDEO_ROTATION"`
	VideoAspect    string `help:"Aspect handling (adjust, fill)" default:"adjust" toml:"video.aspect" env:"VIDEO_ASPECT"`
	VideoOrient    string `help:"Forced orientation (auto, landscape, portrait)" default:"landscape" toml:"video.orientation" env:"VIDEO_ORIENTATION"`
	CaptureWidth   int    `help:"Requested capture width" default:"1280" toml:"capture.width" env:"CAPTURE_WIDTH"`
	CaptureHeight  int    `help:"Requested capture height" default:"720" toml:"capture.height" env:"CAPTURE_HEIGHT"`
	CaptureFPS     int    `help:"Requested capture frame rate" default:"25" toml:"capture.fps" env:"CAPTURE_FPS"`
	CaptureSysRoot string `help:"sysfs root used for device discovery" default:"/sys" toml:"capture.sys_root" env:"CAPTURE_SYS_ROOT"`

	// Audio target
	AudioDevice     string `help:"ALSA capture device (auto picks the camera's microphone)" default:"auto" toml:"audio.device" env:"AUDIO_DEVICE"`
	AudioSampleRate int    `help:"Audio sample rate in Hz" default:"48000" toml:"audio.sample_rate" env:"AUDIO_SAMPLE_RATE"`
	AudioStereo     bool   `help:"Capture stereo audio" default:"true" toml:"audio.stereo" env:"AUDIO_STEREO"`
	AudioBitrate    int    `help:"Audio bitrate in bits per second" default:"128000" toml:"audio.bitrate" env:"AUDIO_BITRATE"`

	// Permission
	PermissionAllow   string `help:"Comma separated vendor:product ids granted without waiting (empty grants any readable node)" default:"" toml:"permission.allow" env:"PERMISSION_ALLOW"`
	PermissionTimeout string `help:"How long to wait for device access (0 waits forever)" default:"30s" toml:"permission.timeout" env:"PERMISSION_TIMEOUT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	FeaturesLEDControl bool   `help:"Show the lifecycle on the status LED" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesLEDName    string `help:"Status LED name under /sys/class/leds (empty detects the board)" default:"" toml:"features.led_name" env:"FEATURES_LED_NAME"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingLifecycle  string `help:"Lifecycle logging level" default:"info" toml:"logging.lifecycle" env:"LOGGING_LIFECYCLE"`
	LoggingCapture    string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingPermission string `help:"Permission logging level" default:"info" toml:"logging.permission" env:"LOGGING_PERMISSION"`
	LoggingStreaming  string `help:"Streaming server logging level" default:"info" toml:"logging.streaming" env:"LOGGING_STREAMING"`
	LoggingEncoder    string `help:"Encoder logging level" default:"info" toml:"logging.encoder" env:"LOGGING_ENCODER"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

// logModules are the loggers whose level follows the config file.
var logModules = []string{"main", "lifecycle", "capture", "permission", "streaming", "encoder", "api", "http", "led", "metrics", "systemd"}

func (o *Options) streamConfig() streaming.Config {
	return streaming.Config{
		Video: streaming.VideoConfig{
			Width:            o.VideoWidth,
			Height:           o.VideoHeight,
			Bitrate:          o.VideoBitrate,
			FPS:              o.VideoFPS,
			KeyframeInterval: o.VideoKeyframe,
			Rotation:         o.VideoRotation,
		},
		Audio: streaming.AudioConfig{
			SampleRate: o.AudioSampleRate,
			Stereo:     o.AudioStereo,
			Bitrate:    o.AudioBitrate,
		},
	}
}

func (o *Options) target() streaming.TargetSettings {
	t := streaming.TargetSettings{}
	if o.VideoAspect == "fill" {
		t.AspectMode = streaming.AspectFill
	}
	switch o.VideoOrient {
	case "landscape":
		t.Orientation = streaming.OrientationLandscape
	case "portrait":
		t.Orientation = streaming.OrientationPortrait
	}
	return t
}

func (o *Options) allowList() []string {
	if o.PermissionAllow == "" {
		return nil
	}
	return strings.Split(o.PermissionAllow, ",")
}

func (o *Options) permissionTimeout(logger *slog.Logger) time.Duration {
	d, err := time.ParseDuration(o.PermissionTimeout)
	if err != nil {
		logger.Warn("Invalid permission timeout, using default", "value", o.PermissionTimeout, "default", lifecycle.DefaultPermissionTimeout)
		return lifecycle.DefaultPermissionTimeout
	}
	return d
}

func applyLogLevels(cfg logging.Config, logger *slog.Logger) {
	for _, module := range logModules {
		level := cfg.Level
		if l, ok := cfg.Modules[module]; ok {
			level = l
		}
		if level == "" {
			level = "info"
		}
		if !logging.SetModuleLevel(module, level) {
			logger.Warn("Unknown log level in config", "module", module, "level", level)
		}
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"lifecycle":  opts.LoggingLifecycle,
				"capture":    opts.LoggingCapture,
				"permission": opts.LoggingPermission,
				"streaming":  opts.LoggingStreaming,
				"encoder":    opts.LoggingEncoder,
				"api":        opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()

		helper := capture.NewV4L2Helper(capture.Options{
			SysRoot: opts.CaptureSysRoot,
			Width:   opts.CaptureWidth,
			Height:  opts.CaptureHeight,
			FPS:     opts.CaptureFPS,
		})
		broker := permission.NewNodeBroker(opts.allowList())

		streamOpts := streaming.Options{
			BindHost: opts.StreamBindHost,
			Encoder:  opts.EncoderCodec,
			Preset:   opts.EncoderPreset,
			Progress: opts.EncoderProgress,
			Bus:      eventBus,
		}

		controller := lifecycle.NewController(lifecycle.Options{
			Helper: helper,
			Broker: broker,
			NewStream: func(port int, _ capture.Device, onEvent func(streaming.StreamEvent)) (lifecycle.Stream, error) {
				so := streamOpts
				so.OnEvent = onEvent
				return streaming.NewSession(port, so)
			},
			NewAudio: func(dev capture.Device) streaming.AudioSource {
				return streaming.NewMicrophone(opts.AudioDevice, streaming.USBBusDev(dev.Name), logging.GetLogger("streaming"))
			},
			Config:            opts.streamConfig(),
			Target:            opts.target(),
			BasePort:          opts.StreamBasePort,
			Host:              opts.StreamHost,
			PermissionTimeout: opts.permissionTimeout(logger),
			Bus:               eventBus,
		})

		metricsLogger := logging.GetLogger("metrics")
		encoderCollector := collectors.NewEncoderCollector(eventBus, metricsLogger)
		prometheus.MustRegister(collectors.NewRelayCollector(func() *streaming.Status {
			return controller.Snapshot().Stream
		}))

		var ledManager *led.Manager
		if opts.FeaturesLEDControl {
			ledLogger := logging.GetLogger("led")
			ledManager = led.NewManager(led.New(led.DefaultSysfsRoot, opts.FeaturesLEDName, ledLogger), eventBus, ledLogger)
		}

		notifier := systemd.NewNotifier(eventBus, logging.GetLogger("systemd"))

		server := api.NewServer(api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Session:      controller,
			Devices:      helper.Devices,
			BasePort:     opts.StreamBasePort,
			Host:         opts.StreamHost,
			EventBus:     eventBus,
			Metrics:      metrics.Handler(),
		})

		watcher := config.NewWatcher(opts.Config, config.LoadLoggingConfig, 500*time.Millisecond, logger)
		watcher.OnReload(func(cfg logging.Config) {
			logger.Info("Config changed, applying log levels")
			applyLogLevels(cfg, logger)
		})

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			encoderCollector.Start()
			if ledManager != nil {
				ledManager.Start()
			}
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Config hot reload disabled", "path", opts.Config, "error", watchErr)
			}

			go func() {
				if runErr := controller.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
					logger.Error("Lifecycle controller stopped", "error", runErr)
				}
			}()
			go func() {
				if runErr := helper.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
					logger.Error("Hotplug monitor stopped", "error", runErr)
				}
			}()

			notifier.Ready()
			logger.Info("Starting HTTP server", "addr", opts.Listen)
			if startErr := server.Start(opts.Listen); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			notifier.Stopping()

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Releases the stream, the encoder and the camera.
			controller.Shutdown()
			cancel()
			helper.Close()

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			encoderCollector.Stop()
			if ledManager != nil {
				ledManager.Stop()
			}
		})
	})

	cli.Root().Use = "uvcrtsp"
	cli.Root().Short = "Publish a USB camera as an RTSP stream"
	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}
