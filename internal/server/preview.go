package server

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"

	"github.com/smazurov/camnode/internal/events"
)

const previewBoundary = "camnode-frame"

// handlePreview streams decoded frames as multipart MJPEG. It bypasses
// Huma: the response never ends and has no JSON body.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.eventBus == nil {
		http.Error(w, "no capture pipeline", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	frames := make(chan any, 4)
	unsubscribe := events.SubscribeToChannel[events.FrameEvent](s.eventBus, frames)
	defer unsubscribe()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+previewBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Debug("preview client connected", "remote_addr", r.RemoteAddr)
	defer s.logger.Debug("preview client disconnected", "remote_addr", r.RemoteAddr)

	var buf bytes.Buffer
	for {
		select {
		case <-r.Context().Done():
			return
		case raw := <-frames:
			frame, ok := raw.(events.FrameEvent)
			if !ok || frame.Image == nil {
				continue
			}

			buf.Reset()
			if err := jpeg.Encode(&buf, frame.Image, nil); err != nil {
				s.logger.Warn("preview frame encode failed", "error", err)
				continue
			}

			if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", previewBoundary, buf.Len()); err != nil {
				return
			}
			if _, err := w.Write(buf.Bytes()); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
