package server

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// DefaultStreamInterval caps the MJPEG stream at about 15 FPS.
const DefaultStreamInterval = 66 * time.Millisecond

// StreamHandler serves the latest annotated frame as MJPEG. Frames are
// pushed with Publish, typically registered as an app frame observer.
type StreamHandler struct {
	interval time.Duration
	clients  atomic.Int32

	mu   sync.RWMutex
	jpeg []byte
	seq  uint64
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler() *StreamHandler {
	return &StreamHandler{interval: DefaultStreamInterval}
}

// Publish stores frame as the latest image. Frames are only encoded while
// at least one client is connected.
func (h *StreamHandler) Publish(frame *gocv.Mat) {
	if h.clients.Load() == 0 || frame == nil || frame.Empty() {
		return
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return
	}
	data := bytes.Clone(buf.GetBytes())
	buf.Close()

	h.mu.Lock()
	h.jpeg = data
	h.seq++
	h.mu.Unlock()
}

// Latest returns the most recent JPEG and its sequence number.
func (h *StreamHandler) Latest() ([]byte, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.jpeg, h.seq
}

// Clients returns the number of connected viewers.
func (h *StreamHandler) Clients() int {
	return int(h.clients.Load())
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.clients.Add(1)
	defer h.clients.Add(-1)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	var sent uint64
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		data, seq := h.Latest()
		if data == nil || seq == sent {
			continue
		}
		sent = seq

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
		if _, err := w.Write(data); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
