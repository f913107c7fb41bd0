package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kalambet/paris/internal/profile"
)

// fileRecord is the on-disk shape of one session in the JSON array.
type fileRecord struct {
	SessionID           string           `json:"session_id"`
	ID                  string           `json:"id,omitempty"`
	Role                profile.Role     `json:"role"`
	Language            profile.Language `json:"language"`
	Data                profile.FieldSet `json:"data"`
	ConversationHistory []profile.Turn   `json:"conversation_history"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// FileStore keeps every session in one JSON file holding an array of
// records. Each Upsert reads, modifies and atomically rewrites the whole
// collection.
//
// An unreadable or corrupt file is treated as empty. It is moved aside
// before the next write so its content is not lost.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore backed by path. The file is created on
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(_ context.Context, key Key) (profile.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	recs, _ := f.load()
	for _, r := range recs {
		if r.SessionID == key.ID && r.Role == key.Role {
			return r.session(), nil
		}
	}
	return profile.Session{}, ErrNotFound
}

func (f *FileStore) Upsert(_ context.Context, key Key, s profile.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	recs, corrupt := f.load()
	if corrupt {
		aside := fmt.Sprintf("%s.corrupt-%d", f.path, time.Now().UnixNano())
		if err := os.Rename(f.path, aside); err != nil {
			return fmt.Errorf("moving corrupt session file aside: %w", err)
		}
		slog.Warn("corrupt session file moved aside", "path", aside)
	}

	rec := toFileRecord(key, s)
	replaced := false
	for i := range recs {
		if recs[i].SessionID == key.ID && recs[i].Role == key.Role {
			recs[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		recs = append(recs, rec)
	}
	return f.save(recs)
}

func (f *FileStore) List(_ context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	recs, _ := f.load()
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = Record{Key: Key{ID: r.SessionID, Role: r.Role}, Session: r.session()}
	}
	sortRecords(out)
	return out, nil
}

// load reads the collection. corrupt is true when the file exists but
// cannot be read or parsed.
func (f *FileStore) load() (recs []fileRecord, corrupt bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("could not read session file, treating as empty", "path", f.path, "error", err)
			return nil, true
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	if err := json.Unmarshal(data, &recs); err != nil {
		slog.Warn("could not parse session file, treating as empty", "path", f.path, "error", err)
		return nil, true
	}
	for i := range recs {
		if recs[i].SessionID == "" {
			recs[i].SessionID = DefaultID
		}
	}
	return recs, false
}

// save writes recs to a temp file in the same directory and renames it over
// the target so readers never see a partial file.
func (f *FileStore) save(recs []fileRecord) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}

	data, err := json.MarshalIndent(recs, "", "    ")
	if err != nil {
		return fmt.Errorf("marshalling sessions: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing sessions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

func toFileRecord(key Key, s profile.Session) fileRecord {
	data := s.Fields
	if data == nil {
		data = profile.FieldSet{}
	}
	history := s.History
	if history == nil {
		history = []profile.Turn{}
	}
	return fileRecord{
		SessionID:           key.ID,
		ID:                  s.ID,
		Role:                key.Role,
		Language:            s.Language,
		Data:                data,
		ConversationHistory: history,
		CreatedAt:           s.CreatedAt.UTC(),
		UpdatedAt:           s.UpdatedAt.UTC(),
	}
}

func (r fileRecord) session() profile.Session {
	s := profile.Session{
		ID:        r.ID,
		Role:      r.Role,
		Language:  r.Language,
		Fields:    r.Data,
		History:   r.ConversationHistory,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if s.Fields == nil {
		s.Fields = profile.FieldSet{}
	}
	return s
}
