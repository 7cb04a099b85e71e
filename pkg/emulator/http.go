package emulator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/gwillem/roboarm/pkg/protocol"
)

type commandBody struct {
	Command *string `json:"command"`
}

type enableBody struct {
	Enabled bool `json:"enabled"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handler serves the controller's HTTP API for ctrl.
func Handler(ctrl *Controller, log logrus.FieldLogger) http.Handler {
	s := &server{ctrl: ctrl, log: log}

	router := mux.NewRouter()
	router.Use(PanicRecovery(log), LogRequests(log), cors)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/command", s.handleCommand).Methods(http.MethodPost)
	api.HandleFunc("/move", s.handleMove).Methods(http.MethodPost)
	api.HandleFunc("/enable", s.handleEnable).Methods(http.MethodPost)
	api.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(notFound)
	return router
}

type server struct {
	ctrl *Controller
	log  logrus.FieldLogger
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body commandBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if body.Command == nil {
		writeError(w, http.StatusBadRequest, "Missing 'command' field")
		return
	}

	res := s.ctrl.Execute(*body.Command)
	writeJSON(w, resultCode(res), res)
}

func (s *server) handleMove(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	targets := map[protocol.Joint]int{}
	for _, j := range protocol.AllJoints() {
		raw, ok := body[string(j)]
		if !ok {
			continue
		}
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		targets[j] = v
	}
	if len(targets) == 0 {
		writeError(w, http.StatusBadRequest, "No joint positions specified. Use j1, j2, ..., j6")
		return
	}

	cmd := protocol.Move(targets, false)
	res := s.ctrl.Execute(cmd)
	success := res.Success
	writeJSON(w, resultCode(res), protocol.CommandReply{
		Success: &success,
		Message: res.Message,
		Command: cmd,
	})
}

func (s *server) handleEnable(w http.ResponseWriter, r *http.Request) {
	var body enableBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	enabled := s.ctrl.SetEnabled(body.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "enabled": enabled})
}

func (s *server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.ConfigPayload())
}

func notFound(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

func resultCode(res protocol.Result) int {
	if res.Success {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Success: false, Error: msg})
}

// statusRecorder captures the response code once the handler returns.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.code = code
	rec.ResponseWriter.WriteHeader(code)
}

// LogRequests logs each request with its response code and duration.
func LogRequests(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"code":     rec.code,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Debug("request")
		})
	}
}

// PanicRecovery answers 500 instead of dropping the connection when a handler panics.
func PanicRecovery(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithField("panic", fmt.Sprint(err)).Error("handler panicked")
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}
