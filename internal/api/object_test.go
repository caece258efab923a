package api_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomech/coretex/internal/api"
	"github.com/biomech/coretex/internal/api/apitest"
)

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestFetchAll_Pages(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "dataset", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		total := 5

		var out []item
		for i := page * size; i < min(total, (page+1)*size); i++ {
			out = append(out, item{ID: i})
		}
		if out == nil {
			out = []item{}
		}
		apitest.JSON(w, http.StatusOK, out)
	})

	items, err := api.FetchAll[item](context.Background(), srv.Client(), "dataset", map[string]any{"include_sessions": 1}, 2)
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, 4, items[4].ID)

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	for i, r := range reqs {
		assert.Equal(t, strconv.Itoa(i), r.Query.Get("page"))
		assert.Equal(t, "1", r.Query.Get("include_sessions"))
	}
}

func TestFetchAll_ExactMultipleAndDefaultSize(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "model-queue", apitest.Sequence(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, strconv.Itoa(api.DefaultPageSize), r.URL.Query().Get("page_size"))
			out := make([]item, api.DefaultPageSize)
			apitest.JSON(w, http.StatusOK, out)
		},
		func(w http.ResponseWriter, _ *http.Request) { apitest.JSON(w, http.StatusOK, []item{}) },
	))

	items, err := api.FetchAll[item](context.Background(), srv.Client(), "model-queue", nil, 0)
	require.NoError(t, err)
	assert.Len(t, items, api.DefaultPageSize)
	assert.Equal(t, 2, srv.Count(http.MethodGet, "model-queue"))
}

func TestFetchByID_CreateUpdate(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "dataset/{id}", func(w http.ResponseWriter, _ *http.Request) {
		apitest.JSON(w, http.StatusOK, item{ID: 7, Name: "cats"})
	})
	srv.Handle(http.MethodPost, "dataset", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		apitest.JSON(w, http.StatusOK, item{ID: 8, Name: body["name"].(string)})
	})
	srv.Handle(http.MethodPut, "dataset/{id}", apitest.Status(http.StatusOK))
	srv.Handle(http.MethodPut, "dataset/9", apitest.Status(http.StatusConflict))

	client := srv.Client()
	ctx := context.Background()

	got, err := api.FetchByID[item](ctx, client, "dataset", 7, map[string]any{"include_sessions": 1})
	require.NoError(t, err)
	assert.Equal(t, item{ID: 7, Name: "cats"}, *got)

	created, err := api.Create[item](ctx, client, "dataset", map[string]any{"name": "dogs"})
	require.NoError(t, err)
	assert.Equal(t, "dogs", created.Name)

	require.NoError(t, api.Update(ctx, client, "dataset", 7, map[string]any{"name": "felines"}))
	assert.Error(t, api.Update(ctx, client, "dataset", 9, map[string]any{"name": "x"}))
}

func TestFetchByID_NotFound(t *testing.T) {
	srv := apitest.New(t)
	srv.Handle(http.MethodGet, "dataset/{id}", apitest.Status(http.StatusNotFound))

	_, err := api.FetchByID[item](context.Background(), srv.Client(), "dataset", 1, nil)
	var reqErr *api.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusNotFound, reqErr.Response.StatusCode)
}
