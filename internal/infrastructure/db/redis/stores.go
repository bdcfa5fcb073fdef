package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suiichiba/marketplace/internal/core/domain"
)

const flowTTL = 15 * time.Minute

// FlowStore keeps sign-in flows as JSON under flow:<id>. Each save renews
// the TTL, so an abandoned flow disappears after flowTTL.
type FlowStore struct {
	client *redis.Client
}

func NewFlowStore(client *redis.Client) *FlowStore {
	return &FlowStore{client: client}
}

func (s *FlowStore) Get(ctx context.Context, flowID string) (*domain.SignInFlow, error) {
	var f domain.SignInFlow
	if err := getJSON(ctx, s.client, "flow:"+flowID, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *FlowStore) Save(ctx context.Context, flow *domain.SignInFlow) error {
	return setJSON(ctx, s.client, "flow:"+flow.ID, flow, flowTTL)
}

func (s *FlowStore) Delete(ctx context.Context, flowID string) error {
	if err := s.client.Del(ctx, "flow:"+flowID, dispatchKey(flowID)).Err(); err != nil {
		return remoteErr("delete flow", err)
	}
	return nil
}

// ClaimDispatch sets flow:<id>:otp if absent. Concurrent submissions of one
// flow race on this key, so only one of them sends a code.
func (s *FlowStore) ClaimDispatch(ctx context.Context, flowID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, dispatchKey(flowID), time.Now().UTC().Format(time.RFC3339), flowTTL).Result()
	if err != nil {
		return false, remoteErr("claim otp dispatch", err)
	}
	return ok, nil
}

func (s *FlowStore) ReleaseDispatch(ctx context.Context, flowID string) error {
	if err := s.client.Del(ctx, dispatchKey(flowID)).Err(); err != nil {
		return remoteErr("release otp dispatch", err)
	}
	return nil
}

func dispatchKey(flowID string) string {
	return "flow:" + flowID + ":otp"
}

// TokenStore keeps single-use secrets under token:<kind>:<token>.
type TokenStore struct {
	client *redis.Client
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

func (s *TokenStore) Put(ctx context.Context, kind, token, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, tokenKey(kind, token), value, ttl).Err(); err != nil {
		return remoteErr("put token", err)
	}
	return nil
}

func (s *TokenStore) Get(ctx context.Context, kind, token string) (string, error) {
	v, err := s.client.Get(ctx, tokenKey(kind, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrInvalidToken
	}
	if err != nil {
		return "", remoteErr("get token", err)
	}
	return v, nil
}

func (s *TokenStore) Delete(ctx context.Context, kind, token string) error {
	if err := s.client.Del(ctx, tokenKey(kind, token)).Err(); err != nil {
		return remoteErr("delete token", err)
	}
	return nil
}

func tokenKey(kind, token string) string {
	return fmt.Sprintf("token:%s:%s", kind, token)
}

// SessionRegistry stores sessions under session:<id> with a TTL matching the
// session's expiry.
type SessionRegistry struct {
	client *redis.Client
}

func NewSessionRegistry(client *redis.Client) *SessionRegistry {
	return &SessionRegistry{client: client}
}

func (r *SessionRegistry) Save(ctx context.Context, s *domain.Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrSessionExpired
	}
	return setJSON(ctx, r.client, "session:"+s.SessionID, s, ttl)
}

func (r *SessionRegistry) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s domain.Session
	if err := getJSON(ctx, r.client, "session:"+sessionID, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRegistry) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, "session:"+sessionID).Err(); err != nil {
		return remoteErr("delete session", err)
	}
	return nil
}

func getJSON(ctx context.Context, client *redis.Client, key string, dst any) error {
	raw, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return remoteErr("get "+key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func setJSON(ctx context.Context, client *redis.Client, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return remoteErr("set "+key, err)
	}
	return nil
}
