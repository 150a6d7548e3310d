package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/search"
)

type countingSearcher struct {
	calls atomic.Int32
	err   error
}

func (c *countingSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &search.Response{Results: []search.Result{{Title: "t", URL: "https://x", Content: req.Query}}}, nil
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		client.Close()
		s.Close()
	})
	return s, client
}

func TestSearcher_CachesResponses(t *testing.T) {
	s, client := newRedis(t)
	next := &countingSearcher{}
	c := New(next, client, time.Minute)
	ctx := context.Background()
	req := &search.Request{Query: "pollerías Lima", Depth: "advanced", MaxResults: 4}

	first, err := c.Search(ctx, req)
	require.NoError(t, err)
	second, err := c.Search(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, first, second)
	assert.True(t, s.Exists(Key(req)))

	s.FastForward(2 * time.Minute)
	_, err = c.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestSearcher_DifferentRequestsDifferentKeys(t *testing.T) {
	a := Key(&search.Request{Query: "q", MaxResults: 4})
	b := Key(&search.Request{Query: "q", MaxResults: 5})
	assert.NotEqual(t, a, b)
}

func TestSearcher_ErrorsAreNotCached(t *testing.T) {
	s, client := newRedis(t)
	next := &countingSearcher{err: search.ErrRateLimited}
	c := New(next, client, time.Minute)
	req := &search.Request{Query: "q"}

	_, err := c.Search(context.Background(), req)
	assert.True(t, errors.Is(err, search.ErrRateLimited))
	assert.False(t, s.Exists(Key(req)))
}

func TestSearcher_RedisDownPassesThrough(t *testing.T) {
	s, client := newRedis(t)
	s.Close()
	next := &countingSearcher{}
	c := New(next, client, time.Minute)

	resp, err := c.Search(context.Background(), &search.Request{Query: "q"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, int32(1), next.calls.Load())
}
