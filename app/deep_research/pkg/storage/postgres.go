package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
)

const getProfileSQL = `SELECT info FROM business_profiles WHERE session_id = $1`

// PostgresStore 从 business_profiles 表读取 JSONB 画像
type PostgresStore struct {
	db *sqlx.DB
}

// Ensure PostgresStore implements ProfileStore
var _ ProfileStore = (*PostgresStore)(nil)

func NewPostgresStore(cfg config.DBConfig) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB 复用已有连接
func NewPostgresStoreWithDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetBusinessContext(ctx context.Context, sessionID string) (model.BusinessContext, error) {
	var info []byte
	if err := s.db.GetContext(ctx, &info, getProfileSQL, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query business profile: %w", err)
	}

	var raw map[string]any
	if len(info) > 0 {
		if err := json.Unmarshal(info, &raw); err != nil {
			return nil, fmt.Errorf("decode business profile: %w", err)
		}
	}
	return fromAny(raw), nil
}
