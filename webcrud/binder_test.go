package webcrud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/axgrid/raadmin"
	"github.com/axgrid/raadmin/transport"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Task struct {
	ID      uint    `gorm:"primaryKey" json:"id"`
	Title   string  `json:"title"`
	Done    bool    `json:"done"`
	Deleted bool    `json:"-"`
	Code    *string `gorm:"uniqueIndex" json:"code,omitempty"`
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&Task{}))
	return db
}

func newRepo(t *testing.T, db *gorm.DB, cfg raadmin.RepoConfig) *raadmin.GormRepo[Task, uint] {
	t.Helper()
	repo, err := raadmin.NewGormRepo[Task, uint](db, cfg)
	require.NoError(t, err)
	return repo
}

func ginRouter(b *Binder[Task, uint]) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	b.MountGin(r)
	return r
}

func post(t *testing.T, h http.Handler, path string, query url.Values, body string) *httptest.ResponseRecorder {
	t.Helper()
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestBinder_TaskWalkthrough(t *testing.T) {
	b := New[Task, uint](newRepo(t, setupDB(t), raadmin.RepoConfig{}), Options[Task]{})
	router := ginRouter(b)

	w := post(t, router, "/ra/create", nil, `{"title":"a","done":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"id":1,"title":"a","done":false},"total":null}`, w.Body.String())

	w = post(t, router, "/ra/getList", url.Values{
		"filter": {`{}`},
		"sort":   {`["id","ASC"]`},
		"range":  {`[0,9]`},
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[{"id":1,"title":"a","done":false}],"total":1}`, w.Body.String())

	w = post(t, router, "/ra/delete/1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"id":1,"title":"a","done":false},"total":null}`, w.Body.String())

	w = post(t, router, "/ra/getOne/1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":null,"total":null}`, w.Body.String())
}

func TestBinder_ManyOperations(t *testing.T) {
	b := New[Task, uint](newRepo(t, setupDB(t), raadmin.RepoConfig{}), Options[Task]{Prefix: "tasks/"})
	router := ginRouter(b)
	for _, title := range []string{"a", "b", "c"} {
		w := post(t, router, "/tasks/create", nil, `{"title":"`+title+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := post(t, router, "/tasks/getMany", url.Values{"filter": {`{"id":[1,3]}`}}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var many transport.Envelope[[]Task]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &many))
	assert.Len(t, many.Data, 2)
	assert.Nil(t, many.Total)

	w = post(t, router, "/tasks/updateMany", url.Values{"filter": {`{"id":[1,2,9]}`}}, `{"done":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[1,2,9],"total":null}`, w.Body.String())

	w = post(t, router, "/tasks/update/3", nil, `{"id":3,"title":"c2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"id":3,"title":"c2","done":false},"total":null}`, w.Body.String())

	w = post(t, router, "/tasks/getList", url.Values{"filter": {`{"done":true}`}, "range": {`[0,0]`}}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list transport.Envelope[[]Task]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.NotNil(t, list.Total)
	assert.Equal(t, int64(2), *list.Total)
	assert.Len(t, list.Data, 1)

	w = post(t, router, "/tasks/deleteMany", url.Values{"filter": {`{"id":[1,2]}`}}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[1,2],"total":null}`, w.Body.String())

	w = post(t, router, "/tasks/getList", nil, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int64(1), *list.Total)
}

func TestBinder_SoftDelete(t *testing.T) {
	repo := newRepo(t, setupDB(t), raadmin.RepoConfig{SoftDelete: &raadmin.SoftDelete{Field: "deleted"}})
	router := ginRouter(New[Task, uint](repo, Options[Task]{}))
	post(t, router, "/ra/create", nil, `{"title":"a"}`)
	post(t, router, "/ra/create", nil, `{"title":"b"}`)

	w := post(t, router, "/ra/delete/1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = post(t, router, "/ra/getList", nil, "")
	assert.JSONEq(t, `{"data":[{"id":2,"title":"b","done":false}],"total":1}`, w.Body.String())

	w = post(t, router, "/ra/getMany", url.Values{"filter": {`{"id":[1,2]}`}}, "")
	assert.JSONEq(t, `{"data":[{"id":2,"title":"b","done":false}],"total":null}`, w.Body.String())

	// direct lookup still finds the flagged row
	w = post(t, router, "/ra/getOne/1", nil, "")
	assert.JSONEq(t, `{"data":{"id":1,"title":"a","done":false},"total":null}`, w.Body.String())
}

func TestBinder_ClientErrors(t *testing.T) {
	router := ginRouter(New[Task, uint](newRepo(t, setupDB(t), raadmin.RepoConfig{}), Options[Task]{}))

	cases := []struct {
		name  string
		path  string
		query url.Values
		body  string
	}{
		{"sort injection", "/ra/getList", url.Values{"sort": {`["id; DROP TABLE tasks","ASC"]`}}, ""},
		{"bad direction", "/ra/getList", url.Values{"sort": {`["id","SIDEWAYS"]`}}, ""},
		{"malformed filter", "/ra/getList", url.Values{"filter": {`{"title":`}}, ""},
		{"unknown filter", "/ra/getList", url.Values{"filter": {`{"nope":1}`}}, ""},
		{"object filter value", "/ra/getList", url.Values{"filter": {`{"title":{"a":1}}`}}, ""},
		{"nested list filter value", "/ra/getList", url.Values{"filter": {`{"title":[[1]]}`}}, ""},
		{"null id", "/ra/getMany", url.Values{"filter": {`{"id":null}`}}, ""},
		{"trailing body data", "/ra/create", nil, `{"title":"b"} garbage`},
		{"bad id", "/ra/getOne/abc", nil, ""},
		{"missing ids", "/ra/deleteMany", url.Values{"filter": {`{}`}}, ""},
		{"empty body", "/ra/create", nil, ""},
		{"unknown column", "/ra/create", nil, `{"nope":1}`},
		{"hidden column", "/ra/create", nil, `{"deleted":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(t, router, tc.path, tc.query, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "bad_request", resp.Error)
		})
	}
}

func TestBinder_StrictNotFoundAndConflict(t *testing.T) {
	b := New[Task, uint](newRepo(t, setupDB(t), raadmin.RepoConfig{}), Options[Task]{StrictNotFound: true})
	router := ginRouter(b)

	for _, path := range []string{"/ra/getOne/5", "/ra/delete/5"} {
		w := post(t, router, path, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	w := post(t, router, "/ra/update/5", nil, `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(t, router, "/ra/create", nil, `{"title":"a","code":"X1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = post(t, router, "/ra/create", nil, `{"title":"b","code":"X1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("tasks", string(OpCreate), "409"))
	post(t, router, "/ra/create", nil, `{"title":"c","code":"X1"}`)
	assert.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("tasks", string(OpCreate), "409")))
}

func TestBinder_OptionsAndRoutes(t *testing.T) {
	repo := newRepo(t, setupDB(t), raadmin.RepoConfig{})
	auth := func(c *gin.Context) {
		if c.GetHeader("X-Admin") == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
	b := New[Task, uint](repo, Options[Task]{
		Prefix:          "/admin/tasks",
		Tags:            []string{"tasks"},
		IncludeInSchema: true,
		Disable:         []Operation{OpDelete, OpDeleteMany},
		GinMiddlewares:  []gin.HandlerFunc{auth},
		Logger:          zap.NewNop(),
	})
	router := ginRouter(b)

	w := post(t, router, "/admin/tasks/getList", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/tasks/delete/1", nil)
	req.Header.Set("X-Admin", "1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	routes := b.Routes()
	require.Len(t, routes, 6)
	assert.Equal(t, Route{
		Method:    http.MethodPost,
		Path:      "/admin/tasks/getOne/{id}",
		Operation: OpGetOne,
		Resource:  "tasks",
		Tags:      []string{"tasks"},
	}, routes[1])

	hidden := New[Task, uint](repo, Options[Task]{})
	assert.Len(t, Describe(b, hidden), 6)
	assert.Equal(t, []string{DefaultTag}, hidden.Routes()[0].Tags)
}

type taskDTO struct {
	Label string `json:"label"`
}

func TestBinder_Transform(t *testing.T) {
	b := New[Task, uint](newRepo(t, setupDB(t), raadmin.RepoConfig{}), Options[Task]{
		Transform: func(_ context.Context, src Task) (any, error) {
			return taskDTO{Label: strings.ToUpper(src.Title)}, nil
		},
	})
	router := ginRouter(b)

	w := post(t, router, "/ra/create", nil, `{"title":"a"}`)
	assert.JSONEq(t, `{"data":{"label":"A"},"total":null}`, w.Body.String())

	w = post(t, router, "/ra/getList", nil, "")
	assert.JSONEq(t, `{"data":[{"label":"A"}],"total":1}`, w.Body.String())
}

func TestBinder_Chi(t *testing.T) {
	b := New[Task, uint](newRepo(t, setupDB(t), raadmin.RepoConfig{}), Options[Task]{})
	r := chi.NewRouter()
	b.MountChi(r)

	w := post(t, r, "/ra/create", nil, `{"title":"a","done":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":1,"title":"a","done":true},"total":null}`, w.Body.String())

	w = post(t, r, "/ra/update/1", nil, `{"done":false}`)
	assert.JSONEq(t, `{"data":{"id":1,"title":"a","done":false},"total":null}`, w.Body.String())

	w = post(t, r, "/ra/getList", url.Values{"sort": {`["title","DESC"]`}, "range": {`[0,4]`}}, "")
	assert.JSONEq(t, `{"data":[{"id":1,"title":"a","done":false}],"total":1}`, w.Body.String())

	w = post(t, r, "/ra/delete/1", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = post(t, r, "/ra/getOne/1", nil, "")
	assert.JSONEq(t, `{"data":null,"total":null}`, w.Body.String())

	w = post(t, r, "/ra/getOne/x", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
