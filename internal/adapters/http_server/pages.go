package httpserver

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"biz_dashboard/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type formData struct {
	Name     string
	Location string
	Errors   domain.FieldErrors
}

type star struct{ Kind string } // full|half|empty

type pageData struct {
	View    domain.SessionView
	Form    formData
	Rating  string
	Stars   []star
	Loading bool
	// Refresh makes the browser poll while a generation is pending.
	Refresh int
}

// formatRating renders a rating with exactly one decimal digit.
func formatRating(r float64) string {
	return strconv.FormatFloat(r, 'f', 1, 64)
}

// starRow renders floor(r) full stars, one half star when r has a fraction,
// then empty stars up to five.
func starRow(r float64) []star {
	full := int(math.Floor(r))
	out := make([]star, 0, 5)
	for i := 0; i < full; i++ {
		out = append(out, star{Kind: "full"})
	}
	if math.Mod(r, 1) != 0 {
		out = append(out, star{Kind: "half"})
	}
	for i := 0; i < 5-int(math.Ceil(r)); i++ {
		out = append(out, star{Kind: "empty"})
	}
	return out
}

func newPageData(v domain.SessionView, f formData) pageData {
	d := pageData{View: v, Form: f, Loading: v.Loading()}
	if d.Loading {
		d.Refresh = 1
		if v.Record == nil {
			d.Form.Name, d.Form.Location = v.Name, v.Location
		}
	}
	if v.Record != nil {
		d.Rating = formatRating(v.Record.Rating)
		d.Stars = starRow(v.Record.Rating)
	}
	return d
}

func renderPage(w http.ResponseWriter, r *http.Request, status int, d pageData) {
	var buf bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&buf, "index.html", d); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("render page failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Error().Err(err).Msg("failed to write page body")
	}
}

func seeOther(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) index(w http.ResponseWriter, r *http.Request) {
	v, err := h.C.View(r.Context(), SessionID(r.Context()))
	if err != nil {
		writeActionError(w, r, err)
		return
	}
	renderPage(w, r, http.StatusOK, newPageData(v, formData{}))
}

func (h *Handlers) analyzeForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid form", err.Error())
		return
	}
	name, location := r.PostFormValue("name"), r.PostFormValue("location")
	v, errs, err := h.C.Submit(r.Context(), SessionID(r.Context()), name, location)
	switch {
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrRecordExists):
		// the page on / already reflects the state that blocked the submit
		seeOther(w, r)
	case err != nil:
		writeActionError(w, r, err)
	case !errs.Valid():
		renderPage(w, r, http.StatusUnprocessableEntity, newPageData(v, formData{Name: name, Location: location, Errors: errs}))
	default:
		seeOther(w, r)
	}
}

func (h *Handlers) headlineForm(w http.ResponseWriter, r *http.Request) {
	_, err := h.C.Regenerate(r.Context(), SessionID(r.Context()))
	if err != nil && !errors.Is(err, domain.ErrBusy) && !errors.Is(err, domain.ErrNoRecord) {
		writeActionError(w, r, err)
		return
	}
	seeOther(w, r)
}

func (h *Handlers) resetForm(w http.ResponseWriter, r *http.Request) {
	if err := h.C.Reset(r.Context(), SessionID(r.Context())); err != nil {
		writeActionError(w, r, err)
		return
	}
	seeOther(w, r)
}
