package streaming

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/events"
	"github.com/smazurov/uvcrtsp/internal/ffmpeg"
	"github.com/smazurov/uvcrtsp/internal/logging"
	"github.com/smazurov/uvcrtsp/internal/process"
)

// Encoder is a running encoder process.
type Encoder interface {
	Start() error
	Stdin() io.Writer
	Done() <-chan struct{}
	ExitCode() int
	Stop() int
}

// EncoderFactory creates an encoder for command. Lines written by the
// encoder are passed to handler.
type EncoderFactory func(id, command string, handler process.OutputHandler) Encoder

// Options configure a Session.
type Options struct {
	BindHost       string // empty listens on every interface
	Encoder        string // libx264 unless set
	Preset         string
	EncoderOptions []ffmpeg.OptionType
	Progress       bool

	OnEvent    func(StreamEvent)
	Bus        *events.Bus
	Logger     *slog.Logger
	NewEncoder EncoderFactory
}

// Status is a snapshot of a session.
type Status struct {
	Port      int         `json:"port" example:"10558"`
	Prepared  bool        `json:"prepared"`
	Encoding  bool        `json:"encoding"`
	Publisher bool        `json:"publisher" doc:"Encoder is publishing to the RTSP server"`
	Clients   int         `json:"clients"`
	Frames    uint64      `json:"frames" doc:"Frames written to the encoder"`
	Dropped   uint64      `json:"dropped" doc:"Frames dropped before the encoder"`
	Tracks    []TrackInfo `json:"tracks"`
	Config    Config      `json:"config"`
}

// Session owns one RTSP endpoint and the encoder publishing to it.
type Session struct {
	opts       Options
	logger     *slog.Logger
	server     *Server
	newEncoder EncoderFactory

	mu            sync.Mutex
	cfg           Config
	target        TargetSettings
	video         VideoSource
	audio         AudioSource
	videoPrepared bool
	audioPrepared bool
	encoder       Encoder
	surface       *Surface
	closed        bool
}

// NewSession opens the RTSP listener on port. Port 0 picks a free port.
func NewSession(port int, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("streaming")
	}
	if opts.Encoder == "" {
		opts.Encoder = "libx264"
	}
	if opts.EncoderOptions == nil {
		opts.EncoderOptions = ffmpeg.DefaultOptions()
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(opts.BindHost, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}

	s := &Session{
		opts:       opts,
		logger:     opts.Logger,
		newEncoder: opts.NewEncoder,
		cfg:        DefaultConfig(),
	}
	if s.newEncoder == nil {
		s.newEncoder = newProcessEncoder
	}
	s.server = NewServer(ln, NewRelay(opts.Logger), opts.Logger, s.emit)
	s.server.Start()
	s.emit(StreamEvent{Type: EventListening, Port: s.server.Port()})
	return s, nil
}

func newProcessEncoder(id, command string, handler process.OutputHandler) Encoder {
	logger := logging.GetLogger("encoder")
	p := process.NewProcessWithOutput(id, command, logger, handler)
	p.SetLogParser(logger, ffmpeg.ParseLogLevel)
	return p
}

// Port returns the RTSP port.
func (s *Session) Port() int {
	return s.server.Port()
}

// URL returns the reader URL for host.
func (s *Session) URL(host string) string {
	return StreamURL(host, s.Port())
}

// StreamURL returns the RTSP URL readers use for port on host.
func StreamURL(host string, port int) string {
	return fmt.Sprintf("rtsp://%s/", net.JoinHostPort(host, strconv.Itoa(port)))
}

// Configure sets the sources and the encoder target.
func (s *Session) Configure(video VideoSource, audio AudioSource, target TargetSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = video
	s.audio = audio
	s.target = target
}

// PrepareVideo creates the video source. keyframeInterval is in seconds.
func (s *Session) PrepareVideo(width, height, bitrate, fps, keyframeInterval, rotation int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.videoPrepared = false
	if s.closed || s.video == nil {
		return false
	}
	if width <= 0 || height <= 0 || fps <= 0 || bitrate <= 0 {
		s.logger.Warn("Invalid video parameters", "width", width, "height", height, "fps", fps, "bitrate", bitrate)
		return false
	}
	if !s.video.Create(width, height, fps, rotation) {
		return false
	}
	s.cfg.Video = VideoConfig{
		Width:            width,
		Height:           height,
		Bitrate:          bitrate,
		FPS:              fps,
		KeyframeInterval: keyframeInterval,
		Rotation:         rotation,
	}
	s.videoPrepared = true
	return true
}

// PrepareAudio creates the audio source.
func (s *Session) PrepareAudio(sampleRate int, stereo bool, bitrate int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audioPrepared = false
	if s.closed || s.audio == nil {
		return false
	}
	if sampleRate <= 0 || bitrate <= 0 {
		s.logger.Warn("Invalid audio parameters", "sample_rate", sampleRate, "bitrate", bitrate)
		return false
	}
	if !s.audio.Create(sampleRate, stereo) {
		return false
	}
	s.cfg.Audio = AudioConfig{SampleRate: sampleRate, Stereo: stereo, Bitrate: bitrate}
	s.audioPrepared = true
	return true
}

// StartStream spawns the encoder and attaches the sources to it. Both
// tracks must have been prepared.
func (s *Session) StartStream() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	if s.encoder != nil {
		s.mu.Unlock()
		return nil
	}
	if !s.videoPrepared || !s.audioPrepared {
		s.mu.Unlock()
		return ErrNotPrepared
	}

	params := s.buildParams()
	command := ffmpeg.BuildCommand(params)
	handler := &progressHandler{port: s.Port(), bus: s.opts.Bus}
	enc := s.newEncoder(fmt.Sprintf("encoder-%d", s.Port()), command, handler)

	s.logger.Info("Starting encoder", "port", s.Port(), "command", command)
	if err := enc.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("start encoder: %w", err)
	}

	s.encoder = enc
	s.surface = newSurface(enc.Stdin(), s.target.InputFormat)
	if !s.video.IsRunning() {
		s.video.Start(s.surface)
	}
	s.audio.Start()
	s.mu.Unlock()

	go s.watch(enc)
	s.emit(StreamEvent{Type: EventStarted, Port: s.Port()})
	return nil
}

func (s *Session) buildParams() *ffmpeg.Params {
	width, height := s.target.outputSize(s.cfg.Video.Width, s.cfg.Video.Height)
	in := s.target.InputFormat

	p := &ffmpeg.Params{
		InputFormat: "mjpeg",
		InputWidth:  in.Width,
		InputHeight: in.Height,
		FPS:         s.cfg.Video.FPS,
		Width:       width,
		Height:      height,
		Rotation:    s.cfg.Video.Rotation,
		FitAdjust:   s.target.AspectMode == AspectAdjust,
		Encoder:     s.opts.Encoder,
		Preset:      s.opts.Preset,
		Bitrate:     s.cfg.Video.Bitrate,
		GOP:         s.cfg.Video.FPS * s.cfg.Video.KeyframeInterval,

		AudioDevice:     s.audio.InputDevice(),
		AudioSampleRate: s.cfg.Audio.SampleRate,
		AudioChannels:   1,
		AudioBitrate:    s.cfg.Audio.Bitrate,

		OutputURL: fmt.Sprintf("rtsp://127.0.0.1:%d/", s.Port()),
		Progress:  s.opts.Progress,
		Options:   s.opts.EncoderOptions,
	}
	if !in.Compressed() {
		p.InputFormat = "rawvideo"
		p.PixelFormat = "yuyv422"
	}
	if s.cfg.Audio.Stereo {
		p.AudioChannels = 2
	}
	return p
}

// watch reports an encoder that exits without being stopped.
func (s *Session) watch(enc Encoder) {
	<-enc.Done()

	s.mu.Lock()
	if s.encoder != enc {
		s.mu.Unlock()
		return
	}
	s.detachLocked()
	s.mu.Unlock()

	code := enc.ExitCode()
	s.logger.Warn("Encoder exited", "port", s.Port(), "exit_code", code)
	s.emit(StreamEvent{Type: EventEncoderExited, Port: s.Port(), ExitCode: code})
}

// detachLocked forgets the encoder and stops the sources feeding it.
func (s *Session) detachLocked() {
	s.encoder = nil
	if s.surface != nil {
		s.surface.close()
	}
	if s.video != nil {
		s.video.Stop()
	}
	if s.audio != nil {
		s.audio.Stop()
	}
}

// StopStream halts the encoder and detaches the sources. It is a no-op
// when nothing is streaming.
func (s *Session) StopStream() {
	s.mu.Lock()
	enc := s.encoder
	if enc == nil {
		s.mu.Unlock()
		return
	}
	s.detachLocked()
	s.mu.Unlock()

	code := enc.Stop()
	s.logger.Info("Encoder stopped", "port", s.Port(), "exit_code", code)
	s.emit(StreamEvent{Type: EventStopped, Port: s.Port(), ExitCode: code})
}

// Close stops the stream, releases both sources and closes the listener.
func (s *Session) Close() error {
	s.StopStream()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.video != nil {
		s.video.Release()
	}
	if s.audio != nil {
		s.audio.Release()
	}
	s.videoPrepared = false
	s.audioPrepared = false
	s.mu.Unlock()

	return s.server.Stop()
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		Port:     s.Port(),
		Prepared: s.videoPrepared && s.audioPrepared,
		Encoding: s.encoder != nil,
		Config:   s.cfg,
	}
	if s.surface != nil {
		st.Frames = s.surface.Frames()
		st.Dropped = s.surface.Dropped()
	}
	s.mu.Unlock()

	relay := s.server.Relay()
	st.Publisher = relay.HasProducer()
	st.Clients = relay.Consumers()
	st.Tracks = relay.Tracks()
	return st
}

func (s *Session) emit(ev StreamEvent) {
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(events.StreamStatusEvent{
			Port:      ev.Port,
			Status:    string(ev.Type),
			Clients:   s.server.Relay().Consumers(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(ev)
	}
}

// progressHandler publishes encoder progress blocks read from stdout.
type progressHandler struct {
	parser ffmpeg.ProgressParser
	port   int
	bus    *events.Bus
}

func (h *progressHandler) HandleLine(source, line string) {
	if source != "stdout" || h.bus == nil {
		return
	}
	p, ok := h.parser.Feed(line)
	if !ok {
		return
	}
	h.bus.Publish(events.EncoderMetricsEvent{
		Port:            h.port,
		FPS:             p.FPS,
		Bitrate:         p.Bitrate,
		Speed:           p.Speed,
		DroppedFrames:   p.Dropped,
		DuplicateFrames: p.Dup,
	})
}

var _ capture.RenderTarget = (*Surface)(nil)
