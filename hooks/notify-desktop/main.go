// Package main provides a hook that shows a desktop notification for every
// customer entry. It uses AppleScript on macOS and notify-send elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Request represents the input from the hook runner.
type Request struct {
	Event      string    `json:"event"`
	CustomerID int       `json:"customer_Id"`
	IdentityID int       `json:"identity_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// Response represents the output to the hook runner.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

const title = "Retailsight"

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Event {
	case "customer_entered":
		if err := notify(buildMessage(req)); err != nil {
			writeErrorResponse(fmt.Sprintf("event %s failed: %v", req.Event, err))
			return
		}
	default:
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	writeSuccessResponse()
}

// buildMessage formats the notification body.
func buildMessage(req Request) string {
	msg := fmt.Sprintf("Customer %d entered", req.CustomerID)
	if !req.Timestamp.IsZero() {
		msg += " at " + req.Timestamp.Local().Format("15:04:05")
	}
	return msg
}

func notify(message string) error {
	if runtime.GOOS == "darwin" {
		return run("osascript", "-e", buildNotificationScript(title, message))
	}
	return run("notify-send", title, message)
}

// buildNotificationScript generates an AppleScript displaying message.
func buildNotificationScript(title, message string) string {
	escape := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return fmt.Sprintf(`display notification "%s" with title "%s"`, escape.Replace(message), escape.Replace(title))
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
