package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/LJTian/FinNews/internal/pipeline"
	"github.com/LJTian/FinNews/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct{ total int }

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchPage(_ context.Context, q collector.SearchQuery, offset int) (collector.ResultPage, error) {
	page := collector.ResultPage{TotalAvailable: f.total, StartOffset: offset}
	for i := offset; i < offset+q.PageSize && i <= f.total; i++ {
		page.Items = append(page.Items, collector.Record{
			"title": fmt.Sprintf("<b>기사</b> %d", i),
			"link":  fmt.Sprintf("https://n.news.naver.com/%d", i),
		})
	}
	return page, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(context.Context, string) (string, error) {
	return "시장 분위기는 중립", nil
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, src collector.PageSource, store storage.Backend) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	p := &pipeline.Pipeline{
		Source:     src,
		Cleaner:    &collector.Cleaner{Fields: collector.NewsFields},
		Summarizer: fakeSummarizer{},
	}
	r := gin.New()
	NewServer(store, p, nil, "finnews").RegisterRoutes(r)
	return r
}

func do(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, &fakeSource{}, storage.NewMemoryStore())
	w, _ := do(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListNews(t *testing.T) {
	r := newTestRouter(t, &fakeSource{total: 15}, storage.NewMemoryStore())

	w, env := do(r, httptest.NewRequest(http.MethodGet, "/api/v1/news?keyword="+url.QueryEscape("핀테크")+"&pages=2&display=10", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ok", env.Code)

	var data struct {
		Total    int                `json:"total"`
		Requests int                `json:"requests"`
		Items    []collector.Record `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 15, data.Total)
	assert.Equal(t, 2, data.Requests)
	require.Len(t, data.Items, 15)
	assert.Equal(t, "기사 1", data.Items[0]["title"])

	w, env = do(r, httptest.NewRequest(http.MethodGet, "/api/v1/news", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", env.Code)
}

func TestListNewsWithoutCredentials(t *testing.T) {
	r := newTestRouter(t, nil, storage.NewMemoryStore())
	w, env := do(r, httptest.NewRequest(http.MethodGet, "/api/v1/news?keyword=ai", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_configured", env.Code)
}

func TestSummary(t *testing.T) {
	r := newTestRouter(t, &fakeSource{total: 3}, storage.NewMemoryStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/summary", strings.NewReader(`{"keyword":"핀테크","max_pages":1,"display":10}`))
	req.Header.Set("Content-Type", "application/json")
	w, env := do(r, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "시장 분위기는 중립", env.Message)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Len(t, res.Preview, 3)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/summary", strings.NewReader(`{"keyword":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	w, env = do(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "키워드를 입력하세요.", env.Message)
}

func TestSearchForm(t *testing.T) {
	r := newTestRouter(t, &fakeSource{total: 2}, storage.NewMemoryStore())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/search"`)

	form := url.Values{"keyword": {"핀테크"}, "max_pages": {"1"}, "display": {"10"}}
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "시장 분위기는 중립")
	assert.Contains(t, body, "https://n.news.naver.com/2")
}

func TestListRecords(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Append(context.Background(), "ex_rate", "ex_rate", []collector.Record{
		{"date": "2026-10-17", "통화": "USD"},
		{"date": "2026-10-18", "통화": "USD"},
	}))
	r := newTestRouter(t, &fakeSource{}, store)

	w, env := do(r, httptest.NewRequest(http.MethodGet, "/api/v1/records?db=ex_rate&table=ex_rate&limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Columns []string           `json:"columns"`
		Items   []collector.Record `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "date", data.Columns[0])
	require.Len(t, data.Items, 1)
	assert.Equal(t, "2026-10-18", data.Items[0]["date"])

	w, env = do(r, httptest.NewRequest(http.MethodGet, "/api/v1/records?db=ex_rate&table=missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", env.Code)

	w, _ = do(r, httptest.NewRequest(http.MethodGet, "/api/v1/records?db=ex_rate", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRunsWithoutSQL(t *testing.T) {
	r := newTestRouter(t, &fakeSource{}, storage.NewMemoryStore())
	w, env := do(r, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, "not_supported", env.Code)
}

func TestBasicAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BasicAuthMiddleware("admin", "secret"))
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "home") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
