package searxng

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/search"
)

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "news", r.URL.Query().Get("categories"))
		assert.Equal(t, "cafeterías Cusco", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"query":"cafeterías Cusco","answers":["a1"],"results":[
			{"title":"t1","url":"https://1","content":"c1","score":1},
			{"title":"t2","url":"https://2","content":"c2","score":0.5},
			{"title":"t3","url":"https://3","content":"c3","score":0.1}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5)
	resp, err := c.Search(context.Background(), &search.Request{Query: "cafeterías Cusco", Topic: "news", MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "t1", resp.Results[0].Title)
	assert.Equal(t, "a1", resp.Answer)
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	_, err := c.Search(context.Background(), &search.Request{Query: "q"})
	assert.ErrorIs(t, err, search.ErrRateLimited)

	_, err = c.Search(context.Background(), &search.Request{})
	assert.ErrorIs(t, err, search.ErrInvalidQuery)
}
