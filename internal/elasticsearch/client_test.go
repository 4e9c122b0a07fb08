package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/fire-radar/internal/logger"
	"github.com/DeafMist/fire-radar/internal/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeES answers like an Elasticsearch node and records what it was asked.
type fakeES struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(r *http.Request) (int, string)
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	status, payload := http.StatusOK, `{}`
	if f.respond != nil {
		status, payload = f.respond(r)
	}
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, payload)
}

func (f *fakeES) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeES) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, fake *fakeES) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "wildfire-alerts", logger.Discard())
	require.NoError(t, err)
	return c
}

func TestIndexAlertUsesRecordID(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusCreated, `{"result":"created"}`
	}}
	c := newTestClient(t, fake)

	doc := models.ArchivedAlert{
		NewsRecord: models.NewsRecord{
			ID:       "rec-42",
			Title:    "Incendie à Batna",
			Category: models.CategoryActive,
			Date:     time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC),
		},
		Keywords:   []string{"incendie", "batna"},
		ArchivedAt: time.Date(2024, 8, 1, 10, 5, 0, 0, time.UTC),
	}
	require.NoError(t, c.IndexAlert(context.Background(), doc))

	req := fake.last()
	require.Equal(t, http.MethodPut, req.Method)
	require.Equal(t, "/wildfire-alerts/_doc/rec-42", req.Path)
	require.Equal(t, "rec-42", req.Body["id"])
	require.Equal(t, "active", req.Body["category"])
	require.Equal(t, []any{"incendie", "batna"}, req.Body["keywords"])
}

func TestIndexAlertReportsErrors(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusBadRequest, `{"error":"mapper_parsing_exception"}`
	}}
	c := newTestClient(t, fake)

	err := c.IndexAlert(context.Background(), models.ArchivedAlert{NewsRecord: models.NewsRecord{ID: "x"}})
	require.ErrorContains(t, err, "mapper_parsing_exception")
}

func TestSearchArchiveDecodesHits(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusOK, `{"hits":{"total":{"value":7},"hits":[
			{"_source":{"id":"a","title":"Feu à Oran","location":"Oran","category":"active","keywords":["oran"]}},
			{"_source":{"id":"b","title":"Incendie maîtrisé","location":"Sétif","category":"contained"}}
		]}}`
	}}
	c := newTestClient(t, fake)

	res, err := c.SearchArchive(context.Background(), SearchParams{Query: "feu", Category: "active", Size: 2})
	require.NoError(t, err)
	require.EqualValues(t, 7, res.Total)
	require.Len(t, res.Items, 2)
	require.Equal(t, "a", res.Items[0].ID)
	require.Equal(t, []string{"oran"}, res.Items[0].Keywords)
	require.Equal(t, models.CategoryContained, res.Items[1].Category)

	req := fake.last()
	require.Equal(t, "/wildfire-alerts/_search", req.Path)
	require.EqualValues(t, 2, req.Body["size"])
}

func TestHealthReportsIndexStatus(t *testing.T) {
	status := "yellow"
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusOK, `{"cluster_name":"radar","status":"` + status + `"}`
	}}
	c := newTestClient(t, fake)

	got, err := c.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "yellow", got)
	require.Equal(t, "/_cluster/health/wildfire-alerts", fake.last().Path)

	status = "red"
	got, err = c.Health(context.Background())
	require.ErrorContains(t, err, "wildfire-alerts is red")
	require.Equal(t, "red", got)
}

func TestHealthReportsErrors(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusInternalServerError, `{"error":"master_not_discovered_exception"}`
	}}
	c := newTestClient(t, fake)

	_, err := c.Health(context.Background())
	require.ErrorContains(t, err, "master_not_discovered_exception")
}

func TestBuildSearchBody(t *testing.T) {
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	body := buildSearchBody(SearchParams{
		Query:    "incendie",
		Category: "contained",
		Location: "Béjaïa",
		From:     -3,
		Size:     1000,
		Sort:     "archivedAt:asc",
		Start:    &start,
	})

	require.Equal(t, 0, body["from"])
	require.Equal(t, maxSearchSize, body["size"])
	require.Equal(t, []map[string]any{{"archivedAt": map[string]any{"order": "asc"}}}, body["sort"])

	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	require.Len(t, boolQuery["must"], 1)
	require.Equal(t, []map[string]any{
		{"term": map[string]any{"category": "contained"}},
		{"term": map[string]any{"location": "Béjaïa"}},
		{"range": map[string]any{"date": map[string]any{"gte": "2024-07-01T00:00:00Z"}}},
	}, boolQuery["filter"])
}

func TestBuildSearchBodyDefaults(t *testing.T) {
	body := buildSearchBody(SearchParams{Category: models.CategoryAll, Sort: "title:asc"})

	require.Equal(t, defaultSearchSize, body["size"])
	require.Equal(t, []map[string]any{{"date": map[string]any{"order": "desc"}}}, body["sort"])

	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	require.NotContains(t, boolQuery, "filter")
	require.Equal(t, []map[string]any{{"match_all": map[string]any{}}}, boolQuery["must"])
}

func TestDeleteOlderThanLoopsUntilShortBatch(t *testing.T) {
	var calls atomic.Int32
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		if calls.Add(1) == 1 {
			return http.StatusOK, `{"deleted":2}`
		}
		return http.StatusOK, `{"deleted":1}`
	}}
	c := newTestClient(t, fake)
	c.now = func() time.Time { return time.Date(2024, 8, 31, 0, 0, 0, 0, time.UTC) }

	deleted, err := c.DeleteOlderThan(context.Background(), 30*24*time.Hour, 2)
	require.NoError(t, err)
	require.EqualValues(t, 3, deleted)
	require.EqualValues(t, 2, calls.Load())

	req := fake.last()
	require.Equal(t, "/wildfire-alerts/_delete_by_query", req.Path)
	rangeQuery := req.Body["query"].(map[string]any)["range"].(map[string]any)
	require.Equal(t, map[string]any{"lte": "2024-08-01T00:00:00Z"}, rangeQuery["date"])
}

func TestEnsureIndexCreatesMissingIndex(t *testing.T) {
	fake := &fakeES{respond: func(r *http.Request) (int, string) {
		if r.Method == http.MethodHead {
			return http.StatusNotFound, ``
		}
		return http.StatusOK, `{"acknowledged":true}`
	}}
	c := newTestClient(t, fake)

	require.NoError(t, c.EnsureIndex(context.Background()))

	req := fake.last()
	require.Equal(t, http.MethodPut, req.Method)
	require.Equal(t, "/wildfire-alerts", req.Path)
	require.Contains(t, req.Body, "mappings")
}

func TestEnsureIndexSkipsExistingIndex(t *testing.T) {
	fake := &fakeES{}
	c := newTestClient(t, fake)

	require.NoError(t, c.EnsureIndex(context.Background()))
	require.Equal(t, 1, fake.count())
	require.Equal(t, http.MethodHead, fake.last().Method)
}

func TestConnectRetriesUntilPingSucceeds(t *testing.T) {
	var pings atomic.Int32
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		if pings.Add(1) < 3 {
			return http.StatusInternalServerError, `{"error":"starting"}`
		}
		return http.StatusOK, `{}`
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, err := Connect(context.Background(), srv.URL, "wildfire-alerts", logger.Discard(), ConnectOptions{
		Attempts:     5,
		InitialDelay: time.Millisecond,
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	require.EqualValues(t, 3, pings.Load())
}

func TestConnectGivesUp(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusInternalServerError, `{}`
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := Connect(context.Background(), srv.URL, "wildfire-alerts", logger.Discard(), ConnectOptions{
		Attempts:     2,
		InitialDelay: time.Millisecond,
	})
	require.ErrorContains(t, err, "after 2 attempts")
}
