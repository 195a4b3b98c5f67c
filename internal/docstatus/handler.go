package docstatus

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"etapabot/internal/core/errx"
	"etapabot/internal/protocol"
	logx "etapabot/pkg/logger"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 64 << 10
)

// NewHandler routes POST /procesar and GET /healthz through the request
// logging middleware.
func NewHandler(flow *Flow) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+protocol.Path, procesar(flow))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "students": flow.registry.Len()})
	})
	return withRequestLog(mux)
}

func procesar(flow *Flow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeError(w, r, errx.BadRequest(err))
			return
		}
		writeJSON(w, http.StatusOK, flow.Process(r.Context(), req))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errx.StatusOf(err)
	logx.Warn().Err(err).Int("status", status).Str("request_id", w.Header().Get(requestIDHeader)).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, status, protocol.ErrorBody{Error: errx.MessageOf(err)})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	return s.ResponseWriter.Write(b)
}

func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		defer func() {
			if p := recover(); p != nil {
				err := errx.New(fmt.Errorf("panic: %v", p), http.StatusInternalServerError, errx.SystemErrorMessage)
				logx.Error().Err(err).Str("request_id", id).Str("path", r.URL.Path).Msg("handler panicked")
				if !rec.wroteHeader {
					writeError(rec, r, err)
				}
			}
			logx.Info().
				Str("request_id", id).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("elapsed", time.Since(started)).
				Msg("request")
		}()
		next.ServeHTTP(rec, r)
	})
}
