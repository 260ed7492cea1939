package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/uvcrtsp/internal/logging"
)

// ErrNotRunning is returned when writing to a process that is not running.
var ErrNotRunning = errors.New("process not running")

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
type LogParser func(line string) (level, msg string)

// Process manages the lifecycle of a subprocess.
type Process struct {
	id              string
	command         string
	logger          logging.Logger
	processLogger   logging.Logger // logger for process output (nil = use logger)
	logParser       LogParser      // nil = every line at info
	outputHandler   OutputHandler
	gracefulTimeout time.Duration // wait after SIGINT before SIGKILL
	killTimeout     time.Duration // wait after SIGKILL before giving up

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	startedAt time.Time
	exitCode  int
	lastErr   error
	done      chan struct{}
}

// NewProcess creates a new process.
func NewProcess(id, command string, logger logging.Logger) *Process {
	return NewProcessWithOutput(id, command, logger, nil)
}

// NewProcessWithOutput creates a new process whose output lines are passed
// to handler. With a handler set, stdout is treated as data and only
// stderr is logged.
func NewProcessWithOutput(id, command string, logger logging.Logger, handler OutputHandler) *Process {
	return &Process{
		id:              id,
		command:         command,
		logger:          logger,
		outputHandler:   handler,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		state:           StateIdle,
		done:            make(chan struct{}),
	}
}

// Command returns the command line.
func (p *Process) Command() string {
	return p.command
}

// SetLogParser sets the logger and parser for process output.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetTimeouts overrides the stop timeouts.
func (p *Process) SetTimeouts(graceful, kill time.Duration) {
	p.gracefulTimeout = graceful
	p.killTimeout = kill
}

// Start launches the subprocess. It may be called once.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return fmt.Errorf("process %s already started", p.id)
	}

	err := p.startLocked()
	if err != nil {
		p.state = StateError
		p.lastErr = err
		p.exitCode = 1
		close(p.done)
	}
	return err
}

func (p *Process) startLocked() error {
	args, err := parseCommand(p.command)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("empty command")
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		p.logger.Error("Failed to start process", "error", err, "command", p.command)
		return err
	}

	p.cmd = cmd
	p.stdin = stdin
	p.state = StateRunning
	p.startedAt = time.Now()
	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid)
	p.logger.Debug("Process command", "id", p.id, "command", p.command)

	var output sync.WaitGroup
	output.Add(2)
	go func() {
		defer output.Done()
		p.streamOutput(stdout, "stdout")
	}()
	go func() {
		defer output.Done()
		p.streamOutput(stderr, "stderr")
	}()

	go func() {
		output.Wait()
		p.exited(cmd.Wait())
	}()

	return nil
}

func (p *Process) exited(err error) {
	code := exitCodeFromError(err)

	p.mu.Lock()
	stopping := p.state == StateStopping
	p.state = StateExited
	p.exitCode = code
	if err != nil {
		p.lastErr = err
	}
	p.mu.Unlock()

	if stopping {
		p.logger.Info("Process stopped", "id", p.id, "exit_code", code)
	} else {
		p.logger.Warn("Process exited", "id", p.id, "exit_code", code)
	}
	close(p.done)
}

// Stdin returns a writer to the process's standard input. Writes fail
// with ErrNotRunning once the process is gone.
func (p *Process) Stdin() io.Writer {
	return stdinWriter{p}
}

type stdinWriter struct{ p *Process }

func (w stdinWriter) Write(b []byte) (int, error) {
	w.p.mu.Lock()
	stdin, state := w.p.stdin, w.p.state
	w.p.mu.Unlock()
	if stdin == nil || state != StateRunning {
		return 0, ErrNotRunning
	}
	return stdin.Write(b)
}

// Done is closed when the process has exited or failed to start.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode returns the exit code once Done is closed.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Info returns a snapshot of the process.
func (p *Process) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := Info{
		ID:        p.id,
		State:     p.state,
		StartedAt: p.startedAt,
		ExitCode:  p.exitCode,
		LastError: p.lastErr,
	}
	if p.cmd != nil && p.cmd.Process != nil {
		info.PID = p.cmd.Process.Pid
	}
	return info
}

// Stop closes stdin, sends SIGINT and waits for exit, killing the process
// after the graceful timeout. It returns the exit code and is safe to call
// more than once.
func (p *Process) Stop() int {
	p.mu.Lock()
	switch p.state {
	case StateIdle:
		p.state = StateExited
		close(p.done)
		p.mu.Unlock()
		return 0
	case StateRunning:
		p.state = StateStopping
	default:
		p.mu.Unlock()
		<-p.done
		return p.ExitCode()
	}
	stdin := p.stdin
	p.mu.Unlock()

	_ = stdin.Close()
	p.sendStopSignal()
	return p.waitForExit(p.gracefulTimeout)
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	p.logger.Debug("Sending SIGINT to process", "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// waitForExit waits for exit, force-killing after timeout.
func (p *Process) waitForExit(timeout time.Duration) int {
	select {
	case <-p.done:
		return p.ExitCode()
	case <-time.After(timeout):
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", timeout)
	// The process leads its own group; take any children down with it.
	if err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Error("Failed to kill process", "error", err)
	}

	select {
	case <-p.done:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after kill signal")
	}
	return 137
}

// exitCodeFromError returns 0 for nil, the exit code for *exec.ExitError
// and 1 otherwise.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
			if source == "stdout" {
				continue
			}
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "panic", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "verbose", "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Debug("Error reading output", "source", source, "error", err)
	}
}

// parseCommand splits a command line into arguments, honoring single and
// double quotes and backslash escapes.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	var quote rune
	started := false

	runes := []rune(strings.TrimSpace(command))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
			started = true
		case quote == 0 && r == ' ':
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
			started = true
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if quote != 0 {
		return nil, errors.New("unclosed quote in command")
	}
	if started {
		args = append(args, current.String())
	}
	return args, nil
}
