// Package process runs one subprocess with a stdin pipe:
//   - Graceful stop: close stdin, SIGINT, then SIGKILL after a timeout
//   - Output streaming with pluggable log parsing and line handlers
//   - State tracking and a Done channel for unexpected exits
//
// Example:
//
//	p := process.NewProcess("encoder", "ffmpeg -f mjpeg -i pipe:0 ...", logger)
//	if err := p.Start(); err != nil {
//	    return err
//	}
//	defer p.Stop()
//	_, _ = p.Stdin().Write(frame)
package process
