package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by store operations that reference an unknown
// conversation id. Callers routinely race a deletion against a pending
// append, so this is a soft failure, never a panic.
var ErrNotFound = errors.New("conversation not found")

// Store owns the durable collection of conversations, indexed by identity and
// by owning book, plus the single active-conversation pointer. All mutations
// appear atomic to readers; persistence is a write-behind side effect that
// never blocks the in-memory mutation.
type Store struct {
	mu sync.RWMutex

	conversations map[uuid.UUID]*Conversation
	// creation order, used as the stable tie-break when updatedAt is equal
	order    []uuid.UUID
	activeID uuid.UUID

	// cosmetic UI preferences that travel in the persisted record
	panelWidth string
	pinned     bool

	writer *writeBehindWriter
	now    func() time.Time
}

type StoreOption func(*Store)

// WithClock overrides the store's time source. Tests use this to drive
// updatedAt and pruning deterministically.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func WithPersister(p Persister) StoreOption {
	return func(s *Store) {
		s.writer = newWriteBehindWriter(p)
	}
}

func NewStore(options ...StoreOption) *Store {
	ret := &Store{
		conversations: map[uuid.UUID]*Conversation{},
		panelWidth:    DefaultPanelWidth,
		now:           time.Now,
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

// Create allocates a fresh conversation for bookKey, seeded with at most one
// message, and makes it the active conversation. It never fails.
func (s *Store) Create(bookKey string, seed *Message) uuid.UUID {
	s.mu.Lock()

	id := uuid.New()
	now := s.now()
	conv := &Conversation{
		ID:        id,
		BookKey:   bookKey,
		Messages:  []*Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if seed != nil {
		conv.Messages = append(conv.Messages, seed)
	}

	s.conversations[id] = conv
	s.order = append(s.order, id)
	s.activeID = id

	rec := s.recordLocked()
	s.mu.Unlock()

	log.Debug().
		Str("conversation_id", id.String()).
		Str("book_key", bookKey).
		Bool("seeded", seed != nil).
		Msg("created conversation")

	s.queuePersist(rec)
	return id
}

// Append adds a message to the conversation and bumps updatedAt. Appending to
// an unknown id reports ErrNotFound and changes nothing.
func (s *Store) Append(id uuid.UUID, msg *Message) error {
	s.mu.Lock()

	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		log.Debug().Str("conversation_id", id.String()).Msg("append to unknown conversation")
		return errors.Wrapf(ErrNotFound, "append to %s", id)
	}

	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = s.now()

	rec := s.recordLocked()
	s.mu.Unlock()

	log.Trace().
		Str("conversation_id", id.String()).
		Str("message_id", msg.ID.String()).
		Str("role", string(msg.Role)).
		Int("message_count", len(conv.Messages)).
		Msg("appended message")

	s.queuePersist(rec)
	return nil
}

func (s *Store) Get(id uuid.UUID) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	return conv, ok
}

// ListForBook returns the conversations belonging to bookKey, most recently
// updated first. Ties preserve creation order. This ordering is the contract
// auto-selection relies on.
func (s *Store) ListForBook(bookKey string) []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ret []*Conversation
	for _, id := range s.order {
		conv := s.conversations[id]
		if conv != nil && conv.BookKey == bookKey {
			ret = append(ret, conv)
		}
	}

	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].UpdatedAt.After(ret[j].UpdatedAt)
	})

	return ret
}

func (s *Store) All() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]*Conversation, 0, len(s.order))
	for _, id := range s.order {
		if conv := s.conversations[id]; conv != nil {
			ret = append(ret, conv)
		}
	}
	return ret
}

// SetActive points the store at a conversation, or clears the pointer when
// given uuid.Nil. Unknown ids report ErrNotFound and leave the pointer alone.
func (s *Store) SetActive(id uuid.UUID) error {
	s.mu.Lock()

	if id != uuid.Nil {
		if _, ok := s.conversations[id]; !ok {
			s.mu.Unlock()
			return errors.Wrapf(ErrNotFound, "set active to %s", id)
		}
	}
	s.activeID = id

	rec := s.recordLocked()
	s.mu.Unlock()

	s.queuePersist(rec)
	return nil
}

func (s *Store) Active() (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.activeID, s.activeID != uuid.Nil
}

func (s *Store) ActiveConversation() (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeID == uuid.Nil {
		return nil, false
	}
	conv, ok := s.conversations[s.activeID]
	return conv, ok
}

// Remove deletes the conversation. If it was active, the active pointer is
// cleared; selecting a replacement is the caller's responsibility.
func (s *Store) Remove(id uuid.UUID) error {
	s.mu.Lock()

	if _, ok := s.conversations[id]; !ok {
		s.mu.Unlock()
		return errors.Wrapf(ErrNotFound, "remove %s", id)
	}

	s.deleteLocked(id)

	rec := s.recordLocked()
	s.mu.Unlock()

	log.Debug().Str("conversation_id", id.String()).Msg("removed conversation")

	s.queuePersist(rec)
	return nil
}

// PruneOlderThan removes every conversation whose updatedAt precedes
// now - ageInDays. It is idempotent and returns the number of conversations
// removed.
func (s *Store) PruneOlderThan(ageInDays int) int {
	s.mu.Lock()

	cutoff := s.now().Add(-time.Duration(ageInDays) * 24 * time.Hour)
	var stale []uuid.UUID
	for id, conv := range s.conversations {
		if !conv.UpdatedAt.After(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		s.deleteLocked(id)
	}

	rec := s.recordLocked()
	s.mu.Unlock()

	if len(stale) > 0 {
		log.Info().
			Int("pruned", len(stale)).
			Int("age_days", ageInDays).
			Msg("pruned old conversations")
		s.queuePersist(rec)
	}

	return len(stale)
}

func (s *Store) SetPanelWidth(width string) {
	s.mu.Lock()
	s.panelWidth = width
	rec := s.recordLocked()
	s.mu.Unlock()

	s.queuePersist(rec)
}

func (s *Store) PanelWidth() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.panelWidth
}

func (s *Store) SetPinned(pinned bool) {
	s.mu.Lock()
	s.pinned = pinned
	rec := s.recordLocked()
	s.mu.Unlock()

	s.queuePersist(rec)
}

func (s *Store) Pinned() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinned
}

// Close flushes any pending write-behind persistence and stops the writer.
func (s *Store) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

func (s *Store) deleteLocked(id uuid.UUID) {
	delete(s.conversations, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeID == id {
		s.activeID = uuid.Nil
	}
}

func (s *Store) queuePersist(rec *Record) {
	if s.writer == nil || rec == nil {
		return
	}
	s.writer.Enqueue(rec)
}
