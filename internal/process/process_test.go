package process

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestProcess creates a Process with short timeouts for testing.
func newTestProcess(command string) *Process {
	p := NewProcess("test", command, testLogger())
	p.SetTimeouts(100*time.Millisecond, 100*time.Millisecond)
	return p
}

func waitDone(t *testing.T, p *Process, timeout time.Duration) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
	}
}

func TestGracefulStop(t *testing.T) {
	p := newTestProcess(`sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`)
	p.SetTimeouts(time.Second, 100*time.Millisecond)

	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if code := p.Stop(); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if info := p.Info(); info.State != StateExited {
		t.Errorf("state = %s, want exited", info.State)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	p := newTestProcess(`sh -c "trap '' INT; sleep 10"`)
	p.SetTimeouts(50*time.Millisecond, time.Second)

	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if code := p.Stop(); code != 137 {
		t.Errorf("exit code = %d, want 137", code)
	}
}

func TestStdinClosedOnStop(t *testing.T) {
	// cat exits as soon as stdin closes.
	p := newTestProcess("cat")
	p.SetTimeouts(time.Second, 100*time.Millisecond)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := p.Stdin().Write([]byte("frame\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	start := time.Now()
	p.Stop()
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("stop took %v", elapsed)
	}
	if _, err := p.Stdin().Write([]byte("late")); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Write after stop = %v, want ErrNotRunning", err)
	}
}

func TestUnexpectedExitClosesDone(t *testing.T) {
	p := newTestProcess("sh -c 'exit 42'")
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, p, time.Second)

	if code := p.ExitCode(); code != 42 {
		t.Errorf("exit code = %d, want 42", code)
	}
	// Stop after exit returns the recorded code.
	if code := p.Stop(); code != 42 {
		t.Errorf("Stop() = %d, want 42", code)
	}
}

func TestStartTwice(t *testing.T) {
	p := newTestProcess("sleep 10")
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	defer p.Stop()
	if err := p.Start(); err == nil {
		t.Error("second Start succeeded")
	}
}

func TestStartErrors(t *testing.T) {
	for name, command := range map[string]string{
		"unclosed quote": `echo "unclosed`,
		"empty":          "",
		"missing binary": "/nonexistent/command/that/does/not/exist",
	} {
		t.Run(name, func(t *testing.T) {
			p := newTestProcess(command)
			if err := p.Start(); err == nil {
				t.Fatal("expected start error")
			}
			waitDone(t, p, 100*time.Millisecond)
			if info := p.Info(); info.State != StateError || info.LastError == nil {
				t.Errorf("info = %+v", info)
			}
		})
	}
}

func TestStopBeforeStart(t *testing.T) {
	p := newTestProcess("sleep 10")
	if code := p.Stop(); code != 0 {
		t.Errorf("Stop() = %d, want 0", code)
	}
	waitDone(t, p, 100*time.Millisecond)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{`echo hello\ world`, []string{"echo", "hello world"}},
		{`sh -c "a b" 'c d'`, []string{"sh", "-c", "a b", "c d"}},
		{`ffmpeg  -i   pipe:0`, []string{"ffmpeg", "-i", "pipe:0"}},
		{`echo ""`, []string{"echo", ""}},
	}
	for _, tt := range tests {
		got, err := parseCommand(tt.input)
		if err != nil {
			t.Fatalf("parseCommand(%q): %v", tt.input, err)
		}
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("parseCommand(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

type lineCollector struct {
	mu    sync.Mutex
	lines map[string][]string
}

func (c *lineCollector) HandleLine(source, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lines == nil {
		c.lines = make(map[string][]string)
	}
	c.lines[source] = append(c.lines[source], line)
}

func TestOutputHandler(t *testing.T) {
	collector := &lineCollector{}
	p := NewProcessWithOutput("test", `sh -c "echo line1; echo line2; echo oops >&2"`, testLogger(), collector)

	var parsed []string
	var mu sync.Mutex
	p.SetLogParser(testLogger(), func(line string) (string, string) {
		mu.Lock()
		parsed = append(parsed, line)
		mu.Unlock()
		return "error", line
	})

	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	waitDone(t, p, time.Second)

	collector.mu.Lock()
	defer collector.mu.Unlock()
	if got := collector.lines["stdout"]; len(got) != 2 || got[0] != "line1" {
		t.Errorf("stdout lines = %v", got)
	}
	if got := collector.lines["stderr"]; len(got) != 1 || got[0] != "oops" {
		t.Errorf("stderr lines = %v", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(parsed) != 1 || parsed[0] != "oops" {
		t.Errorf("log parser saw %v, want only stderr", parsed)
	}
}
