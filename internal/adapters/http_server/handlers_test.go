package httpserver_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	server "biz_dashboard/internal/adapters/http_server"
	"biz_dashboard/internal/adapters/memory"
	"biz_dashboard/internal/app"
)

type harness struct {
	ts    *httptest.Server
	coord *app.Coordinator
	hc    *http.Client
}

func newHarness(t *testing.T, rps int) *harness {
	t.Helper()
	gen := app.NewGenerator(app.WithDelays(0, 0))
	coord := app.NewCoordinator(memory.New(), gen, time.Hour, 4)

	srv := server.New()
	srv.MountHandlers(&server.Handlers{C: coord, ActionRPS: rps})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(func() {
		ts.Close()
		coord.Wait()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	hc := &http.Client{
		Jar: jar,
		// assert on the redirect itself rather than following it
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return &harness{ts: ts, coord: coord, hc: hc}
}

func (h *harness) do(t *testing.T, method, path, contentType, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, h.ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func (h *harness) postForm(t *testing.T, path string, vals url.Values) (*http.Response, string) {
	return h.do(t, http.MethodPost, path, "application/x-www-form-urlencoded", vals.Encode())
}

type sessionBody struct {
	Phase  string `json:"phase"`
	Record *struct {
		Name          string  `json:"name"`
		Location      string  `json:"location"`
		Rating        float64 `json:"rating"`
		RatingDisplay string  `json:"rating_display"`
		Reviews       int     `json:"reviews"`
		Headline      string  `json:"headline"`
	} `json:"record"`
}

func (h *harness) session(t *testing.T) sessionBody {
	t.Helper()
	resp, body := h.do(t, http.MethodGet, "/v1/session", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var sb sessionBody
	require.NoError(t, json.Unmarshal([]byte(body), &sb))
	return sb
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, 0)
	resp, body := h.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestIndex_IssuesSessionAndRendersForm(t *testing.T) {
	h := newHarness(t, 0)
	resp, body := h.do(t, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), server.SessionCookie+"=")
	assert.Contains(t, body, "Generate Business Insights")
	assert.NotContains(t, body, `id="headline"`)
}

func TestAnalyze_EmptyNameShowsInlineError(t *testing.T) {
	h := newHarness(t, 0)
	resp, body := h.postForm(t, "/analyze", url.Values{"name": {""}, "location": {"Austin"}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Business name is required")
	assert.Contains(t, body, `value="Austin"`, "valid input is echoed back")

	h.coord.Wait()
	sb := h.session(t)
	assert.Equal(t, "idle", sb.Phase)
	assert.Nil(t, sb.Record)
}

func TestScenario_SubmitRegenerateReset(t *testing.T) {
	h := newHarness(t, 0)

	resp, _ := h.postForm(t, "/analyze", url.Values{"name": {"Joe's Cafe"}, "location": {"Austin"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	h.coord.Wait()

	first := h.session(t)
	require.Equal(t, "ready", first.Phase)
	require.NotNil(t, first.Record)
	assert.Equal(t, "Joe's Cafe", first.Record.Name)
	assert.Equal(t, "Austin", first.Record.Location)
	assert.True(t, first.Record.Rating >= 3.5 && first.Record.Rating <= 5.0)
	assert.Regexp(t, `^\d\.\d$`, first.Record.RatingDisplay)
	assert.True(t, first.Record.Reviews >= 50 && first.Record.Reviews < 250)
	assert.Contains(t, first.Record.Headline, "Joe's Cafe")
	assert.Contains(t, first.Record.Headline, "Austin")

	_, page := h.do(t, http.MethodGet, "/", "", "")
	assert.Contains(t, page, `id="headline"`)
	assert.Contains(t, page, "Joe&#39;s Cafe")
	assert.Contains(t, page, `id="rating">`+first.Record.RatingDisplay+`<`)
	assert.Contains(t, page, "Above Average")
	assert.Contains(t, page, "Strong Engagement")
	assert.Equal(t, 5, strings.Count(page, "&#9733;"), "always five star glyphs")

	resp, _ = h.postForm(t, "/headline", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	h.coord.Wait()

	second := h.session(t)
	require.Equal(t, "ready", second.Phase)
	assert.Equal(t, first.Record.Name, second.Record.Name)
	assert.Equal(t, first.Record.Location, second.Record.Location)
	assert.Equal(t, first.Record.Rating, second.Record.Rating)
	assert.Equal(t, first.Record.Reviews, second.Record.Reviews)

	resp, _ = h.postForm(t, "/reset", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	sb := h.session(t)
	assert.Equal(t, "idle", sb.Phase)
	assert.Nil(t, sb.Record)

	_, page = h.do(t, http.MethodGet, "/", "", "")
	assert.Contains(t, page, "Generate Business Insights")
}

func TestJSON_AnalyzeValidationProblem(t *testing.T) {
	h := newHarness(t, 0)
	resp, body := h.do(t, http.MethodPost, "/v1/session/analyze", "application/json", `{"name":"","location":"A"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	var p struct {
		Status int `json:"status"`
		Errors map[string]struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	assert.Equal(t, 422, p.Status)
	assert.Equal(t, "Required", p.Errors["name"].Code)
	assert.Equal(t, "TooShort", p.Errors["location"].Code)
}

func TestJSON_FlowAndConflicts(t *testing.T) {
	h := newHarness(t, 0)

	resp, body := h.do(t, http.MethodPost, "/v1/session/headline", "", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, body)

	resp, body = h.do(t, http.MethodPost, "/v1/session/analyze", "application/json", `{"name":"Joe's Cafe","location":"Austin"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body)
	assert.Contains(t, body, `"phase":"loading"`)
	h.coord.Wait()

	resp, _ = h.do(t, http.MethodPost, "/v1/session/analyze", "application/json", `{"name":"Other","location":"Dallas"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/v1/session", "", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "idle", h.session(t).Phase)
}

func TestJSON_BadBody(t *testing.T) {
	h := newHarness(t, 0)
	resp, _ := h.do(t, http.MethodPost, "/v1/session/analyze", "application/json", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSession_ETagNotModified(t *testing.T) {
	h := newHarness(t, 0)
	resp, _ := h.do(t, http.MethodGet, "/v1/session", "", "")
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, _ := http.NewRequest(http.MethodGet, h.ts.URL+"/v1/session", nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := h.hc.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp2.StatusCode)
}

func TestRateLimit_RejectsBurst(t *testing.T) {
	h := newHarness(t, 1)
	resp, _ := h.postForm(t, "/reset", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp, _ = h.postForm(t, "/reset", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// reads are never limited
	resp, _ = h.do(t, http.MethodGet, "/v1/session", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit_PerClient(t *testing.T) {
	h := newHarness(t, 1)
	post := func(ip string) int {
		req, err := http.NewRequest(http.MethodPost, h.ts.URL+"/reset", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := h.hc.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusSeeOther, post("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, post("203.0.113.7"))
	// another client still has its own budget
	assert.Equal(t, http.StatusSeeOther, post("198.51.100.2"))
}
