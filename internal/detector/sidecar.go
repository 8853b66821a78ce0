package detector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// sidecarIdleTimeout is how long an unused sidecar process is kept alive.
const sidecarIdleTimeout = 30 * time.Second

// sidecar runs a Python detection service as a subprocess.
//
// Protocol: for every frame the JPEG bytes are written to stdin prefixed
// with their length as 4 bytes big-endian; the service answers with exactly
// one JSON line on stdout.
//
// Any failed exchange kills the process; the next request starts a new one.
// Each start bumps the generation so callers can tell when per-process state,
// such as tracker ids, has been reset.
type sidecar struct {
	script    string
	scriptDir string

	// command builds the process; nil runs script with the venv Python.
	command func() (*exec.Cmd, error)

	// idleTimeout stops an unused process. 0 keeps it until close.
	idleTimeout time.Duration

	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	generation int
	idleTimer  *time.Timer
}

func newSidecar(script, scriptDir string, idleTimeout time.Duration) (*sidecar, error) {
	if findScript(script, scriptDir) == "" {
		return nil, fmt.Errorf("%s not found", script)
	}
	return &sidecar{script: script, scriptDir: scriptDir, idleTimeout: idleTimeout}, nil
}

func encodeFrame(frame *gocv.Mat) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}

// roundTrip sends one frame and returns the raw JSON response line.
func (s *sidecar) roundTrip(frame *gocv.Mat) ([]byte, error) {
	data, err := encodeFrame(frame)
	if err != nil {
		return nil, err
	}
	line, _, err := s.exchange(data)
	return line, err
}

// exchange sends one encoded frame and returns the response line along with
// the generation of the process that produced it.
func (s *sidecar) exchange(data []byte) ([]byte, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureStarted(); err != nil {
		return nil, 0, err
	}

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := s.stdin.Write(length); err != nil {
		s.kill()
		return nil, 0, fmt.Errorf("write length: %w", err)
	}
	if _, err := s.stdin.Write(data); err != nil {
		s.kill()
		return nil, 0, fmt.Errorf("write data: %w", err)
	}

	line, err := s.stdout.ReadBytes('\n')
	if err != nil {
		s.kill()
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	s.resetIdleTimer()
	return line, s.generation, nil
}

// reset kills the process after a response the caller could not use.
func (s *sidecar) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kill()
}

func (s *sidecar) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown()
}

func (s *sidecar) ensureStarted() error {
	if s.started {
		return nil
	}

	cmd, err := s.newCommand()
	if err != nil {
		return err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.script, err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	s.started = true
	s.generation++

	return nil
}

func (s *sidecar) newCommand() (*exec.Cmd, error) {
	if s.command != nil {
		return s.command()
	}

	scriptPath := findScript(s.script, s.scriptDir)
	if scriptPath == "" {
		return nil, fmt.Errorf("%s not found", s.script)
	}

	// Use virtual environment Python if available
	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}
	return exec.Command(pythonPath, scriptPath), nil
}

// kill stops a process that may be hung or already dead.
func (s *sidecar) kill() {
	if !s.started {
		return
	}
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	if err := s.shutdown(); err != nil {
		log.Printf("[detector] %s exited: %v", s.script, err)
	}
}

func (s *sidecar) shutdown() error {
	if !s.started {
		return nil
	}

	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}

	if s.stdin != nil {
		s.stdin.Close()
	}

	err := s.cmd.Wait()
	s.started = false
	s.cmd = nil
	s.stdin = nil
	s.stdout = nil

	return err
}

func (s *sidecar) resetIdleTimer() {
	if s.idleTimeout <= 0 {
		return
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.idleTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.shutdown()
	})
}

func findScript(name, scriptDir string) string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	var candidates []string
	if scriptDir != "" {
		candidates = append(candidates, filepath.Join(scriptDir, name))
	}
	candidates = append(candidates,
		filepath.Join("scripts", name),
		filepath.Join("..", "scripts", name),
		filepath.Join(execDir, "scripts", name),
		filepath.Join(os.Getenv("HOME"), ".retailsight", "scripts", name),
	)

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".retailsight/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
