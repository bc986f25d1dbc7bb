package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SessionRecord 会话记录
// 以 token 的 jti 为 key 存入 Redis，TTL 与 token 有效期一致；
// 删除 key 即撤销会话（logout / 管理员踢出）
type SessionRecord struct {
	UserID    string    `json:"user_id"`
	GroupID   string    `json:"group_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore 会话存储（Redis）
type SessionStore struct {
	kv KV
}

func NewSessionStore(kv KV) *SessionStore {
	return &SessionStore{kv: kv}
}

func sessionKey(jti string) string {
	return "session:" + jti
}

// Put 写入会话记录
func (s *SessionStore) Put(ctx context.Context, jti string, rec SessionRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.kv.Set(ctx, sessionKey(jti), string(data), ttl)
}

// Get 读取会话记录（不存在返回 ErrMiss）
func (s *SessionStore) Get(ctx context.Context, jti string) (*SessionRecord, error) {
	data, err := s.kv.Get(ctx, sessionKey(jti))
	if err != nil {
		return nil, err
	}
	var rec SessionRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &rec, nil
}

// Revoke 撤销会话
func (s *SessionStore) Revoke(ctx context.Context, jti string) error {
	return s.kv.Del(ctx, sessionKey(jti))
}
