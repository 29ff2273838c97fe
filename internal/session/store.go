// Package session owns the locally persisted login session: access token,
// refresh token and the cached user profile.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Fixed storage keys. All three are written and cleared together.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// State is the persisted session.
type State struct {
	AccessToken  string          `json:"token,omitempty"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	User         json.RawMessage `json:"user,omitempty"`
}

// Empty reports whether no credentials are held.
func (s State) Empty() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// Store persists a session between process runs. Several processes may
// share one store, so refresh results are committed with compare-and-set
// on the refresh token.
// Load returns a zero State when nothing is stored.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
	Clear(ctx context.Context) error
	// SwapAccessToken replaces the access token only while refreshToken is
	// still the stored refresh token. It reports whether it wrote.
	SwapAccessToken(ctx context.Context, refreshToken, access string) (bool, error)
	// ClearIfRefresh clears the session only while refreshToken is still
	// the stored refresh token. It reports whether it cleared.
	ClearIfRefresh(ctx context.Context, refreshToken string) (bool, error)
}

// FileStore keeps the session in a JSON file readable only by the user.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("session: read file: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("session: decode file: %w", err)
	}
	return st, nil
}

func (s *FileStore) Save(ctx context.Context, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("session: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write temp: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("session: replace file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove file: %w", err)
	}
	return nil
}

// SwapAccessToken re-reads the file right before replacing it.
func (s *FileStore) SwapAccessToken(ctx context.Context, refreshToken, access string) (bool, error) {
	st, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	if st.Empty() || st.RefreshToken != refreshToken {
		return false, nil
	}
	st.AccessToken = access
	if err := s.Save(ctx, st); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) ClearIfRefresh(ctx context.Context, refreshToken string) (bool, error) {
	st, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	if st.RefreshToken != refreshToken {
		return false, nil
	}
	return true, s.Clear(ctx)
}

// RedisStore keeps the session in a Redis hash so several portal
// processes can share one login.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a store under the hash key "<prefix>:<profile>".
func NewRedisStore(redisClient *redis.Client, prefix, profile string) *RedisStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{redis: redisClient, key: fmt.Sprintf("%s:%s", prefix, profile)}
}

func (s *RedisStore) Load(ctx context.Context) (State, error) {
	fields, err := s.redis.HGetAll(ctx, s.key).Result()
	if err != nil {
		return State{}, fmt.Errorf("session: redis load: %w", err)
	}
	st := State{
		AccessToken:  fields[KeyToken],
		RefreshToken: fields[KeyRefreshToken],
	}
	if raw := fields[KeyUser]; raw != "" {
		st.User = json.RawMessage(raw)
	}
	return st, nil
}

func (s *RedisStore) Save(ctx context.Context, st State) error {
	values := map[string]any{}
	if st.AccessToken != "" {
		values[KeyToken] = st.AccessToken
	}
	if st.RefreshToken != "" {
		values[KeyRefreshToken] = st.RefreshToken
	}
	if len(st.User) > 0 {
		values[KeyUser] = string(st.User)
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: redis save: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("session: redis clear: %w", err)
	}
	return nil
}

// SwapAccessToken writes inside WATCH/MULTI so a concurrent logout or
// login from another process makes the swap a no-op.
func (s *RedisStore) SwapAccessToken(ctx context.Context, refreshToken, access string) (bool, error) {
	swapped := false
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.storedRefresh(ctx, tx)
		if err != nil {
			return err
		}
		if current == "" || current != refreshToken {
			return nil
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key, KeyToken, access)
			return nil
		}); err != nil {
			return err
		}
		swapped = true
		return nil
	}, s.key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session: redis swap: %w", err)
	}
	return swapped, nil
}

func (s *RedisStore) ClearIfRefresh(ctx context.Context, refreshToken string) (bool, error) {
	cleared := false
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.storedRefresh(ctx, tx)
		if err != nil {
			return err
		}
		if current != refreshToken {
			return nil
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.key)
			return nil
		}); err != nil {
			return err
		}
		cleared = true
		return nil
	}, s.key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session: redis clear: %w", err)
	}
	return cleared, nil
}

func (s *RedisStore) storedRefresh(ctx context.Context, tx *redis.Tx) (string, error) {
	current, err := tx.HGet(ctx, s.key, KeyRefreshToken).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return current, err
}

// MemoryStore keeps the session for the lifetime of the process.
type MemoryStore struct {
	mu sync.Mutex
	st State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st, nil
}

func (s *MemoryStore) Save(ctx context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = st
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = State{}
	return nil
}

func (s *MemoryStore) SwapAccessToken(ctx context.Context, refreshToken, access string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Empty() || s.st.RefreshToken != refreshToken {
		return false, nil
	}
	s.st.AccessToken = access
	return true, nil
}

func (s *MemoryStore) ClearIfRefresh(ctx context.Context, refreshToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.RefreshToken != refreshToken {
		return false, nil
	}
	s.st = State{}
	return true, nil
}
