package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/search"
)

const keyPrefix = "deep_research:search:"

// Searcher 带 Redis 缓存的搜索装饰器，Redis 故障时直接透传
type Searcher struct {
	next search.Searcher
	rdb  redis.UniversalClient
	ttl  time.Duration
}

// Ensure Searcher implements search.Searcher
var _ search.Searcher = (*Searcher)(nil)

// New 包装一个 Searcher，ttl <= 0 时默认缓存 1 小时
func New(next search.Searcher, rdb redis.UniversalClient, ttl time.Duration) *Searcher {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Searcher{next: next, rdb: rdb, ttl: ttl}
}

// Search implements search.Searcher
func (s *Searcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	key := Key(req)

	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var resp search.Response
		if uerr := json.Unmarshal(raw, &resp); uerr == nil {
			logger.Log.WithField("query", req.Query).Debug("搜索缓存命中")
			return &resp, nil
		}
		logger.Log.WithField("key", key).Warn("搜索缓存数据损坏，忽略")
	case errors.Is(err, redis.Nil):
	default:
		logger.Log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("读取搜索缓存失败")
	}

	resp, err := s.next.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, merr := json.Marshal(resp); merr == nil {
		if serr := s.rdb.Set(ctx, key, data, s.ttl).Err(); serr != nil {
			logger.Log.WithFields(logrus.Fields{"key": key, "error": serr}).Warn("写入搜索缓存失败")
		}
	}
	return resp, nil
}

// Key 计算请求的缓存键
func Key(req *search.Request) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return keyPrefix + hex.EncodeToString(sum[:])
}
