package conversation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultPanelWidth mirrors the reading surface's initial chat panel width.
const DefaultPanelWidth = "35%"

// Record is the single durable record the store serializes: the conversation
// mapping, the active-conversation pointer, and two cosmetic UI preferences
// that travel alongside for convenience. The selection snapshot is never
// persisted.
type Record struct {
	Conversations        map[string]*Conversation `json:"conversations"`
	ActiveConversationID string                   `json:"activeConversationId,omitempty"`
	PanelWidth           string                   `json:"panelWidth,omitempty"`
	Pinned               bool                     `json:"pinned"`
}

// Persister writes a snapshot of the store to durable storage.
type Persister interface {
	Persist(rec *Record) error
}

// recordLocked snapshots the store into a Record. Callers must hold the
// store lock; the snapshot is a deep copy so the write-behind writer never
// races the next mutation.
func (s *Store) recordLocked() *Record {
	rec := &Record{
		Conversations: map[string]*Conversation{},
		PanelWidth:    s.panelWidth,
		Pinned:        s.pinned,
	}
	for id, conv := range s.conversations {
		rec.Conversations[id.String()] = conv
	}
	if s.activeID != uuid.Nil {
		rec.ActiveConversationID = s.activeID.String()
	}

	return clone.Clone(rec).(*Record)
}

// restoreRecord loads a previously persisted record into an empty store.
// Creation order is rebuilt from createdAt so updatedAt tie-breaks stay
// stable across restarts.
func (s *Store) restoreRecord(rec *Record) error {
	for key, conv := range rec.Conversations {
		id, err := uuid.Parse(key)
		if err != nil {
			return errors.Wrapf(err, "invalid conversation id %s", key)
		}
		conv.ID = id
		if conv.Messages == nil {
			conv.Messages = []*Message{}
		}
		s.conversations[id] = conv
		s.order = append(s.order, id)
	}

	sort.SliceStable(s.order, func(i, j int) bool {
		return s.conversations[s.order[i]].CreatedAt.Before(s.conversations[s.order[j]].CreatedAt)
	})

	if rec.ActiveConversationID != "" {
		id, err := uuid.Parse(rec.ActiveConversationID)
		if err != nil {
			return errors.Wrap(err, "invalid active conversation id")
		}
		if _, ok := s.conversations[id]; ok {
			s.activeID = id
		}
	}

	if rec.PanelWidth != "" {
		s.panelWidth = rec.PanelWidth
	}
	s.pinned = rec.Pinned

	return nil
}

// LoadStore builds a store backed by the JSON record at path, restoring its
// previous contents when the file exists.
func LoadStore(path string, options ...StoreOption) (*Store, error) {
	persister := NewFilePersister(path)
	store := NewStore(append(options, WithPersister(persister))...)

	rec, err := persister.Load()
	if err != nil {
		return nil, err
	}
	if rec != nil {
		if err := store.restoreRecord(rec); err != nil {
			return nil, err
		}
		log.Debug().
			Str("path", path).
			Int("conversations", len(store.conversations)).
			Msg("restored conversation record")
	}

	return store, nil
}

// FilePersister writes the record as a single JSON file, atomically via a
// temp file rename.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Persist(rec *Record) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "could not create record directory")
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not marshal record")
	}

	tmp, err := os.CreateTemp(dir, ".conversations-*.json")
	if err != nil {
		return errors.Wrap(err, "could not create temp record")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "could not write record")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "could not close record")
	}

	return errors.Wrap(os.Rename(tmpName, p.path), "could not replace record")
}

// Load reads the record back, returning nil when none has been written yet.
func (p *FilePersister) Load() (*Record, error) {
	b, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read record")
	}

	rec := &Record{}
	if err := json.Unmarshal(b, rec); err != nil {
		return nil, errors.Wrapf(err, "could not parse record %s", p.path)
	}
	if rec.Conversations == nil {
		rec.Conversations = map[string]*Conversation{}
	}

	return rec, nil
}

var _ Persister = (*FilePersister)(nil)

// writeBehindWriter persists store snapshots on its own goroutine. Enqueue
// replaces any not-yet-written snapshot, so a burst of mutations coalesces
// into a single write and the mutating caller never waits on disk.
type writeBehindWriter struct {
	persister Persister

	mu      sync.Mutex
	pending *Record

	notify chan struct{}
	quit   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

func newWriteBehindWriter(p Persister) *writeBehindWriter {
	w := &writeBehindWriter{
		persister: p,
		notify:    make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *writeBehindWriter) Enqueue(rec *Record) {
	w.mu.Lock()
	w.pending = rec
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *writeBehindWriter) run() {
	defer close(w.done)

	for {
		select {
		case <-w.quit:
			w.flush()
			return
		case <-w.notify:
			w.flush()
		}
	}
}

func (w *writeBehindWriter) flush() {
	w.mu.Lock()
	rec := w.pending
	w.pending = nil
	w.mu.Unlock()

	if rec == nil {
		return
	}
	if err := w.persister.Persist(rec); err != nil {
		log.Warn().Err(err).Msg("failed to persist conversation record")
	}
}

// Close flushes the last snapshot and stops the writer goroutine.
func (w *writeBehindWriter) Close() error {
	w.closeOnce.Do(func() {
		close(w.quit)
	})
	<-w.done
	return nil
}
