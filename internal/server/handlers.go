package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/lensgrid/internal/export"
	"github.com/leapstack-labs/lensgrid/internal/grid"
	"github.com/leapstack-labs/lensgrid/internal/inputs"
	"github.com/leapstack-labs/lensgrid/internal/state"
)

const maxBodyBytes = 1 << 20

// inputsResponse is returned by the inputs endpoints.
type inputsResponse struct {
	Inputs map[string]string `json:"inputs"`
	Stored bool              `json:"stored"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error to an HTTP status: validation problems are the
// client's fault, everything else is ours.
func statusFor(err error) int {
	switch {
	case errors.Is(err, inputs.ErrInvalidInput),
		errors.Is(err, inputs.ErrUnknownField),
		errors.Is(err, grid.ErrInvalidRange),
		errors.Is(err, grid.ErrNonPositiveStep),
		errors.Is(err, grid.ErrStepTooSmall),
		errors.Is(err, grid.ErrTooManyPoints),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, export.ErrTooManyRows):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetInputs(w http.ResponseWriter, r *http.Request) {
	form, stored, err := state.LoadForm(r.Context(), s.store, s.defaults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inputsResponse{Inputs: form.Map(), Stored: stored})
}

func (s *Server) handlePutInputs(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed JSON body: %v", inputs.ErrInvalidInput, err))
		return
	}
	for key := range body {
		if _, ok := inputs.Lookup(strings.ToLower(key)); !ok {
			s.writeError(w, r, fmt.Errorf("%w: %q", inputs.ErrUnknownField, key))
			return
		}
		if n, ok := body[key].(json.Number); ok {
			body[key] = n.String()
		}
	}

	form, _, err := state.LoadForm(r.Context(), s.store, s.defaults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := form.Apply(body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := form.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := state.SaveForm(r.Context(), s.store, form); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("inputs updated")
	s.notifier.Broadcast()
	s.writeJSON(w, http.StatusOK, inputsResponse{Inputs: form.Map(), Stored: true})
}

// requestParams resolves the grid parameters for a request: the stored
// inputs with any field overridden by a query parameter of the same name.
func (s *Server) requestParams(r *http.Request) (grid.Params, error) {
	form, _, err := state.LoadForm(r.Context(), s.store, s.defaults)
	if err != nil {
		return grid.Params{}, err
	}
	q := r.URL.Query()
	for _, key := range inputs.Keys() {
		if q.Has(key) {
			_ = form.Set(key, q.Get(key))
		}
	}
	return form.Parse()
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	p, err := s.requestParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	counts, err := s.generator.Count(p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, counts)
}

var contentTypes = map[export.Format]string{
	export.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	export.FormatCSV:  "text/csv; charset=utf-8",
	export.FormatJSON: "application/json",
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	format := export.FormatJSON
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := export.ParseFormat(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		format = f
	}

	p, err := s.requestParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	if format != export.FormatJSON {
		name := "lens-grid-" + time.Now().UTC().Format("20060102-150405") + format.Ext()
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}

	ww, ok := w.(middleware.WrapResponseWriter)
	if !ok {
		ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	}
	res, err := export.Write(ww, format, s.generator, p, s.export)
	if err != nil {
		if ww.BytesWritten() == 0 {
			w.Header().Del("Content-Disposition")
			s.writeError(w, r, err)
			return
		}
		s.logger.Error("grid stream aborted", "format", format, "error", err)
		return
	}
	s.logger.Debug("streamed grid", "format", format, "rows", res.Rows)
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid limit %q", v)})
			return
		}
		limit = n
	}

	exports, err := s.store.ListExports(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if exports == nil {
		exports = []*state.Export{}
	}
	s.writeJSON(w, http.StatusOK, exports)
}

// handleEvents streams a server-sent event each time the stored inputs
// change.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Error("event stream unsupported", "error", err)
		return
	}

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			if _, err := io.WriteString(w, "event: inputs\ndata: changed\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
