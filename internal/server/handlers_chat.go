package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatwire-ai/chatwire/internal/logging"
	"github.com/chatwire-ai/chatwire/pkg/chat"
	"github.com/chatwire-ai/chatwire/pkg/wire"
)

// Response framing modes for the chat endpoint.
const (
	ModeData = "data"
	ModeText = "text"
)

// StreamVersionHeader advertises the wire framing version on data-mode
// responses.
const (
	StreamVersionHeader = "X-Chatwire-Stream"
	StreamVersion       = "v1"
)

// streamChat handles POST /v1/chat.
// This is a streaming endpoint: the response body carries the chunk stream
// for one round trip, flushed chunk by chunk. In data mode chunks are
// framed per pkg/wire; in text mode the body is the raw text deltas.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request) {
	var payload chat.RequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if len(payload.Messages) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "messages is required")
		return
	}
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "No runner configured")
		return
	}

	mode := s.responseMode(r, &payload)
	if mode != ModeData && mode != ModeText {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, fmt.Sprintf("unknown mode %q", mode))
		return
	}

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

	// Set streaming headers
	ww.Header().Set("Content-Type", "text/plain; charset=utf-8")
	ww.Header().Set("Cache-Control", "no-cache")
	ww.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	var stream *wire.Writer
	if mode == ModeText {
		stream = wire.NewTextWriter(ww)
	} else {
		ww.Header().Set(StreamVersionHeader, StreamVersion)
		stream = wire.NewWriter(ww)
	}

	if err := s.runner.Run(r.Context(), &payload, stream); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			logging.Debug().Msg("chat request canceled")
		case ww.BytesWritten() == 0:
			// Nothing on the wire yet, so the response is still ours to
			// shape. After the first chunk the runner reports failures
			// in-band and all that is left here is the log line.
			ww.Header().Del(StreamVersionHeader)
			writeError(ww, http.StatusBadGateway, ErrCodeProviderError, err.Error())
		default:
			logging.Error().Err(err).Str("mode", mode).Msg("chat stream aborted")
		}
	}
}

// responseMode picks the framing for one request: the mode field in the
// body wins, then the mode query parameter, then the configured default.
func (s *Server) responseMode(r *http.Request, payload *chat.RequestPayload) string {
	if m, ok := payload.Extra["mode"].(string); ok && m != "" {
		return m
	}
	if m := r.URL.Query().Get("mode"); m != "" {
		return m
	}
	if s.appConfig != nil && s.appConfig.Mode != "" {
		return s.appConfig.Mode
	}
	return ModeData
}
