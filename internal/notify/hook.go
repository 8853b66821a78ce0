package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/ayusman/retailsight/internal/tracking"
)

// EventCustomerEntered is the event name sent to hooks.
const EventCustomerEntered = "customer_entered"

// DefaultHookTimeout bounds a single hook execution.
const DefaultHookTimeout = 5 * time.Second

// Manifest describes a hook installed in a hooks directory.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Events      []string `json:"events"`
}

// Hook is an executable receiving events on stdin.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// HookRequest is written to the hook's stdin as JSON.
type HookRequest struct {
	Event      string    `json:"event"`
	CustomerID int       `json:"customer_Id"`
	IdentityID int       `json:"identity_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// HookResponse is read from the hook's stdout.
type HookResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// HookFromPath wraps a single executable as a hook.
func HookFromPath(path string) (*Hook, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("hook %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("hook %s: is a directory", path)
	}
	return &Hook{
		Manifest:   Manifest{Name: filepath.Base(abs), Events: []string{EventCustomerEntered}},
		Path:       filepath.Dir(abs),
		Executable: abs,
	}, nil
}

// DiscoverHooks scans dir for subdirectories holding a hook.json manifest.
// A missing directory yields no hooks. Unreadable or invalid manifests are
// skipped.
func DiscoverHooks(dir string) ([]*Hook, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var hooks []*Hook
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		hookPath := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(hookPath, "hook.json"))
		if err != nil {
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil || manifest.Executable == "" {
			continue
		}
		if !manifest.handles(EventCustomerEntered) {
			continue
		}

		hooks = append(hooks, &Hook{
			Manifest:   manifest,
			Path:       hookPath,
			Executable: filepath.Join(hookPath, manifest.Executable),
		})
	}

	sort.Slice(hooks, func(i, j int) bool { return hooks[i].Manifest.Name < hooks[j].Manifest.Name })
	return hooks, nil
}

// handles reports whether the manifest subscribes to event. A manifest
// without events subscribes to all.
func (m Manifest) handles(event string) bool {
	if len(m.Events) == 0 {
		return true
	}
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// ExecSink runs a hook for every event.
type ExecSink struct {
	hook    *Hook
	timeout time.Duration
}

// NewExecSink creates a sink for hook. A non-positive timeout uses
// DefaultHookTimeout.
func NewExecSink(hook *Hook, timeout time.Duration) *ExecSink {
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	return &ExecSink{hook: hook, timeout: timeout}
}

// Publish runs the hook with the event on stdin and fails unless the hook
// reports success.
func (s *ExecSink) Publish(ctx context.Context, ev tracking.CrossingEvent) error {
	resp, err := s.Execute(ctx, &HookRequest{
		Event:      EventCustomerEntered,
		CustomerID: ev.Total,
		IdentityID: ev.IdentityID,
		Timestamp:  ev.Timestamp,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("hook %s: %s", s.hook.Manifest.Name, resp.Error)
	}
	return nil
}

// Execute runs the hook with req and parses its response.
func (s *ExecSink) Execute(ctx context.Context, req *HookRequest) (*HookResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.hook.Executable)
	cmd.Dir = s.hook.Path

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("hook %s timeout after %s", s.hook.Manifest.Name, s.timeout)
	}

	if err != nil {
		if stderrStr := stderr.String(); stderrStr != "" {
			return nil, fmt.Errorf("hook %s failed: %w, stderr: %s", s.hook.Manifest.Name, err, stderrStr)
		}
		return nil, fmt.Errorf("hook %s failed: %w", s.hook.Manifest.Name, err)
	}

	var response HookResponse
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse hook response: %w, stdout: %s", err, stdout.String())
	}

	return &response, nil
}
