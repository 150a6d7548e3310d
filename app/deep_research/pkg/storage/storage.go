package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
)

// ErrNotFound 会话没有对应的企业画像
var ErrNotFound = errors.New("business profile not found")

// ProfileStore 企业画像只读存储
type ProfileStore interface {
	GetBusinessContext(ctx context.Context, sessionID string) (model.BusinessContext, error)
}

// MemoryStore 进程内画像存储，CLI 和测试使用
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]model.BusinessContext
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]model.BusinessContext)}
}

// Put 写入（覆盖）一个会话的画像
func (m *MemoryStore) Put(sessionID string, bc model.BusinessContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[sessionID] = bc.Clone()
}

func (m *MemoryStore) GetBusinessContext(ctx context.Context, sessionID string) (model.BusinessContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bc, ok := m.profiles[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return bc.Clone(), nil
}

// LoadProfileFile 从 YAML 文件读取画像，键为字段名
func LoadProfileFile(path string) (model.BusinessContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return fromAny(raw), nil
}

// fromAny 将任意标量值转成字符串，nil 值丢弃
func fromAny(raw map[string]any) model.BusinessContext {
	bc := make(model.BusinessContext, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			bc[k] = val
		case float64:
			bc[k] = fmt.Sprintf("%g", val)
		default:
			bc[k] = fmt.Sprint(val)
		}
	}
	return bc
}
