// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"biz_dashboard/internal/app"
	"biz_dashboard/internal/domain"
)

type Handlers struct {
	C *app.Coordinator
	// ActionRPS bounds state-changing requests per client IP; 0 disables the limit.
	ActionRPS int
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type validationProblem struct {
	problem
	Errors domain.FieldErrors `json:"errors"`
}

type recordJSON struct {
	Name          string  `json:"name"`
	Location      string  `json:"location"`
	Rating        float64 `json:"rating"`
	RatingDisplay string  `json:"rating_display"`
	Reviews       int     `json:"reviews"`
	Headline      string  `json:"headline"`
}

type sessionJSON struct {
	Phase    domain.Phase   `json:"phase"`
	Pending  domain.Pending `json:"pending,omitempty"`
	Name     string         `json:"name,omitempty"`
	Location string         `json:"location,omitempty"`
	Record   *recordJSON    `json:"record,omitempty"`
}

type analyzeRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	limit := RateLimit(h.ActionRPS)
	s.mux.Group(func(r chi.Router) {
		r.Use(Session)
		r.Get("/", h.index)
		r.With(limit).Post("/analyze", h.analyzeForm)
		r.With(limit).Post("/headline", h.headlineForm)
		r.With(limit).Post("/reset", h.resetForm)

		r.Route("/v1/session", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.With(limit).Post("/analyze", h.analyzeJSON)
			r.With(limit).Post("/headline", h.headlineJSON)
			r.With(limit).Delete("/", h.resetJSON)
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, status, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func toSessionJSON(v domain.SessionView) sessionJSON {
	out := sessionJSON{Phase: v.Phase, Pending: v.Pending, Name: v.Name, Location: v.Location}
	if v.Record != nil {
		out.Record = &recordJSON{
			Name:          v.Record.Name,
			Location:      v.Record.Location,
			Rating:        v.Record.Rating,
			RatingDisplay: formatRating(v.Record.Rating),
			Reviews:       v.Record.Reviews,
			Headline:      v.Record.Headline,
		}
	}
	return out
}

// writeActionError maps coordinator sentinel errors onto 409s and everything else onto 500.
func writeActionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrBusy):
		writeProblem(w, http.StatusConflict, "Busy", err.Error())
	case errors.Is(err, domain.ErrNoRecord):
		writeProblem(w, http.StatusConflict, "No Record", err.Error())
	case errors.Is(err, domain.ErrRecordExists):
		writeProblem(w, http.StatusConflict, "Record Exists", err.Error())
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("session action failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "session state unavailable")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func (h *Handlers) getSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.C.View(r.Context(), SessionID(r.Context()))
	if err != nil {
		writeActionError(w, r, err)
		return
	}

	etag, body := calcETagAndBody(toSessionJSON(v))
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write session body")
	}
}

func (h *Handlers) analyzeJSON(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected JSON object with name and location")
		return
	}
	v, errs, err := h.C.Submit(r.Context(), SessionID(r.Context()), req.Name, req.Location)
	if err != nil {
		writeActionError(w, r, err)
		return
	}
	if !errs.Valid() {
		writeProblemBody(w, http.StatusUnprocessableEntity, validationProblem{
			problem: problem{Type: "about:blank", Title: "Validation failed", Status: http.StatusUnprocessableEntity},
			Errors:  errs,
		})
		return
	}
	writeJSON(w, http.StatusAccepted, toSessionJSON(v))
}

func (h *Handlers) headlineJSON(w http.ResponseWriter, r *http.Request) {
	v, err := h.C.Regenerate(r.Context(), SessionID(r.Context()))
	if err != nil {
		writeActionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toSessionJSON(v))
}

func (h *Handlers) resetJSON(w http.ResponseWriter, r *http.Request) {
	if err := h.C.Reset(r.Context(), SessionID(r.Context())); err != nil {
		writeActionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
