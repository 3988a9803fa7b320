package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/chatwire-ai/chatwire/internal/event"
	"github.com/chatwire-ai/chatwire/internal/logging"
	"github.com/chatwire-ai/chatwire/internal/storage"
	"github.com/chatwire-ai/chatwire/pkg/chat"
	"github.com/chatwire-ai/chatwire/pkg/wire"
)

const maxTitleRunes = 80

// Info is the persisted summary of a session.
type Info struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	MessageCount     int       `json:"messageCount"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// New returns a standalone session that is not backed by a store. An empty
// id gets a generated one.
func New(id string, opts Options) *Session {
	if id == "" {
		id = ulid.Make().String()
	}
	return newSession(id, opts)
}

// Store hands out sessions keyed by id. Concurrent consumers acquiring the
// same id share one *Session, so serialization and snapshots hold across
// all of them. Conversations persist across restarts.
type Store struct {
	storage *storage.Storage
	opts    Options

	mu   sync.Mutex
	live map[string]*liveSession
}

type liveSession struct {
	session *Session
	refs    int
}

// NewStore returns a Store persisting into st. opts applies to every
// session it hands out.
func NewStore(st *storage.Storage, opts Options) *Store {
	return &Store{
		storage: st,
		opts:    opts,
		live:    make(map[string]*liveSession),
	}
}

// Create makes a new session with a generated id and acquires it.
func (st *Store) Create(ctx context.Context) (*Session, error) {
	return st.Acquire(ctx, ulid.Make().String())
}

// Acquire returns the session for id, loading persisted state on first
// acquisition and creating the session if it never existed. Callers must
// Release when done.
func (st *Store) Acquire(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session store: empty id")
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if ls, ok := st.live[id]; ok {
		ls.refs++
		return ls.session, nil
	}

	s, fresh, err := st.load(ctx, id)
	if err != nil {
		return nil, err
	}
	st.live[id] = &liveSession{session: s, refs: 1}

	if fresh {
		st.publish(event.SessionCreated, event.SessionCreatedData{SessionID: id})
	}
	return s, nil
}

// Release drops one reference. The last release evicts the session from the
// live set; its state stays on disk.
func (st *Store) Release(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	ls, ok := st.live[id]
	if !ok {
		return
	}
	ls.refs--
	if ls.refs <= 0 {
		delete(st.live, id)
	}
}

// Delete removes a session from the live set and from disk.
func (st *Store) Delete(ctx context.Context, id string) error {
	st.mu.Lock()
	if ls, ok := st.live[id]; ok {
		ls.session.Stop()
		delete(st.live, id)
	}
	st.mu.Unlock()

	for _, key := range [][]string{{"session", id}, {"messages", id}, {"sidedata", id}} {
		if err := st.storage.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete session %s: %w", id, err)
		}
	}
	st.publish(event.SessionDeleted, event.SessionDeletedData{SessionID: id})
	return nil
}

// List returns the persisted session summaries, most recently updated
// first.
func (st *Store) List(ctx context.Context) ([]Info, error) {
	var infos []Info
	err := st.storage.Scan(ctx, []string{"session"}, func(key string, data json.RawMessage) error {
		var info Info
		if err := json.Unmarshal(data, &info); err != nil {
			logging.Warn().Str("id", key).Err(err).Msg("skipping unreadable session record")
			return nil
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

// Get returns the persisted summary for one session.
func (st *Store) Get(ctx context.Context, id string) (Info, error) {
	var info Info
	if err := st.storage.Get(ctx, []string{"session", id}, &info); err != nil {
		return Info{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return info, nil
}

// load reads persisted state for id, creating the record when absent.
// Callers hold st.mu.
func (st *Store) load(ctx context.Context, id string) (*Session, bool, error) {
	var messages []*chat.Message
	if err := st.storage.Get(ctx, []string{"messages", id}, &messages); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("load messages %s: %w", id, err)
	}
	var sideData []json.RawMessage
	if err := st.storage.Get(ctx, []string{"sidedata", id}, &sideData); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("load side data %s: %w", id, err)
	}

	fresh := false
	var info Info
	err := st.storage.Get(ctx, []string{"session", id}, &info)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fresh = true
		now := time.Now()
		info = Info{ID: id, CreatedAt: now, UpdatedAt: now}
		if err := st.storage.Put(ctx, []string{"session", id}, info); err != nil {
			return nil, false, fmt.Errorf("create session %s: %w", id, err)
		}
	case err != nil:
		return nil, false, fmt.Errorf("load session %s: %w", id, err)
	}

	s := newSession(id, st.opts)
	s.messages = messages
	s.sideData = sideData
	s.usage = wire.Usage{PromptTokens: info.PromptTokens, CompletionTokens: info.CompletionTokens}
	s.afterIdle = st.persist
	return s, fresh, nil
}

// persist writes a session's conversation back to disk. It runs after every
// drained request cycle; failures are logged, not surfaced, so a full disk
// never masks a delivered response.
func (st *Store) persist(s *Session) {
	ctx := context.Background()
	messages := s.Messages()
	sideData := s.SideData()

	if err := st.storage.Put(ctx, []string{"messages", s.ID()}, messages); err != nil {
		logging.Error().Str("session", s.ID()).Err(err).Msg("persist messages failed")
		return
	}
	if err := st.storage.Put(ctx, []string{"sidedata", s.ID()}, sideData); err != nil {
		logging.Error().Str("session", s.ID()).Err(err).Msg("persist side data failed")
		return
	}

	var info Info
	if err := st.storage.Get(ctx, []string{"session", s.ID()}, &info); err != nil {
		now := time.Now()
		info = Info{ID: s.ID(), CreatedAt: now}
	}
	info.MessageCount = len(messages)
	info.UpdatedAt = time.Now()
	if info.Title == "" {
		info.Title = titleFromMessages(messages)
	}
	usage := s.Usage()
	info.PromptTokens = usage.PromptTokens
	info.CompletionTokens = usage.CompletionTokens
	if err := st.storage.Put(ctx, []string{"session", s.ID()}, info); err != nil {
		logging.Error().Str("session", s.ID()).Err(err).Msg("persist session record failed")
		return
	}

	st.publish(event.SessionUpdated, event.SessionUpdatedData{SessionID: s.ID()})
}

func (st *Store) publish(t event.EventType, data any) {
	e := event.Event{Type: t, Data: data}
	if st.opts.Bus != nil {
		st.opts.Bus.PublishSync(e)
		return
	}
	event.PublishSync(e)
}

// titleFromMessages derives a session title from the first non-empty user
// message.
func titleFromMessages(messages []*chat.Message) string {
	for _, m := range messages {
		if m.Role != chat.RoleUser {
			continue
		}
		title := strings.Join(strings.Fields(m.Content), " ")
		if title == "" {
			continue
		}
		r := []rune(title)
		if len(r) > maxTitleRunes {
			title = string(r[:maxTitleRunes-1]) + "…"
		}
		return title
	}
	return ""
}
