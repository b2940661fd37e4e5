// Package progress checkpoints the session position in Redis so an
// interrupted recording run can resume at the move it stopped on.
package progress

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lechess/lechess-record/internal/session"
)

const stateTTL = 7 * 24 * time.Hour

// State is the resumable position of one dataset recording run.
type State struct {
	MoveIdx   int       `json:"move_idx"`
	Episodes  int       `json:"episodes"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store struct {
	rdb *redis.Client
}

func NewStore(redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Store{rdb: redis.NewClient(opt)}, nil
}

func NewStoreWithClient(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) key(repoID string) string {
	return "record:progress:" + strings.TrimSpace(repoID)
}

func (s *Store) Save(ctx context.Context, repoID string, st State) error {
	st.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(repoID), raw, stateTTL).Err()
}

// Load returns nil when no progress is stored for repoID.
func (s *Store) Load(ctx context.Context, repoID string) (*State, error) {
	raw, err := s.rdb.Get(ctx, s.key(repoID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) Clear(ctx context.Context, repoID string) error {
	return s.rdb.Del(ctx, s.key(repoID)).Err()
}

// Sink binds the store to one repo id for the session controller.
func (s *Store) Sink(repoID string) session.ProgressSink {
	return &boundSink{store: s, repoID: repoID}
}

type boundSink struct {
	store  *Store
	repoID string
}

func (b *boundSink) SaveProgress(ctx context.Context, moveIdx, episodes int) error {
	return b.store.Save(ctx, b.repoID, State{MoveIdx: moveIdx, Episodes: episodes})
}
