// Package store keeps a library of named object streams in SQLite.
//
// Each package is a stream as written by vm/stream, compressed with LZ4
// and stored under a unique name. Storing a name again replaces it.
package store

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/prota/vm"
	"github.com/chazu/prota/vm/stream"
	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the requested package doesn't exist
var ErrNotFound = errors.New("package not found")

var log = commonlog.GetLogger("prota.store")

// Entry describes a stored package.
type Entry struct {
	ID      string
	Name    string
	Format  string // stream format of the package
	Size    int    // uncompressed size in bytes
	Stored  int    // compressed size in bytes
	Created time.Time
}

// Store is a package library backed by a SQLite database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens the store at path, creating the database if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS packages (
		name    TEXT PRIMARY KEY,
		id      TEXT NOT NULL,
		format  TEXT NOT NULL,
		size    INTEGER NOT NULL,
		created INTEGER NOT NULL,
		data    BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened store %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores data under name, replacing any package of that name.
func (s *Store) Put(name string, data []byte) (Entry, error) {
	if name == "" {
		return Entry{}, errors.New("store: empty package name")
	}
	format := stream.Detect(data)
	if format == stream.FormatUnknown {
		return Entry{}, fmt.Errorf("store: %s: %w", name, vm.FrError(vm.ErrBadStreamFormat, vm.Nil))
	}
	blob, err := compress(data)
	if err != nil {
		return Entry{}, fmt.Errorf("compressing %s: %w", name, err)
	}

	e := Entry{
		ID:      uuid.NewString(),
		Name:    name,
		Format:  format.String(),
		Size:    len(data),
		Stored:  len(blob),
		Created: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO packages (name, id, format, size, created, data) VALUES (?, ?, ?, ?, ?, ?)",
		e.Name, e.ID, e.Format, e.Size, e.Created.UnixNano(), blob,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("saving package: %w", err)
	}
	log.Infof("stored %s (%s, %d bytes, %d compressed)", name, e.Format, e.Size, e.Stored)
	return e, nil
}

// Get returns the stream stored under name.
func (s *Store) Get(name string) ([]byte, Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blob []byte
	e := Entry{Name: name}
	var created int64
	err := s.db.QueryRow(
		"SELECT id, format, size, created, data FROM packages WHERE name = ?", name,
	).Scan(&e.ID, &e.Format, &e.Size, &created, &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Entry{}, ErrNotFound
		}
		return nil, Entry{}, fmt.Errorf("querying package: %w", err)
	}
	e.Stored = len(blob)
	e.Created = time.Unix(0, created).UTC()

	data, err := decompress(blob, e.Size)
	if err != nil {
		return nil, Entry{}, fmt.Errorf("decompressing %s: %w", name, err)
	}
	return data, e, nil
}

// List returns every stored package, ordered by name.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT name, id, format, size, created, length(data) FROM packages ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.Name, &e.ID, &e.Format, &e.Size, &created, &e.Stored); err != nil {
			return nil, fmt.Errorf("scanning package: %w", err)
		}
		e.Created = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the package stored under name.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM packages WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting package: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Object graphs
// ---------------------------------------------------------------------------

// Save encodes the graph rooted at root and stores it under name.
func (s *Store) Save(h *vm.Heap, name string, root vm.Value) (Entry, error) {
	data, err := stream.Encode(h, root)
	if err != nil {
		return Entry{}, err
	}
	return s.Put(name, data)
}

// Load reads the package stored under name into h.
func (s *Store) Load(h *vm.Heap, name string) (vm.Value, error) {
	data, _, err := s.Get(name)
	if err != nil {
		return vm.Nil, err
	}
	v, err := stream.Read(h, data)
	if err != nil {
		return vm.Nil, fmt.Errorf("store: %s: %w", name, err)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Compression
// ---------------------------------------------------------------------------

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(blob []byte, size int) ([]byte, error) {
	out := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(out, lz4.NewReader(bytes.NewReader(blob))); err != nil {
		return nil, err
	}
	if out.Len() != size {
		return nil, fmt.Errorf("size %d, want %d", out.Len(), size)
	}
	return out.Bytes(), nil
}
