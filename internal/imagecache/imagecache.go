// Package imagecache is a content-addressed on-disk store for resized story
// images. Assets are keyed by a hash of the source URL and indexed in a
// SQLite table; a bundled placeholder stands in for anything that cannot be
// fetched, so image failures never block story display.
package imagecache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "modernc.org/sqlite"
)

//go:embed default.png
var defaultAsset []byte

// maxImageBytes is the fetch size ceiling; larger responses fall back to
// the placeholder.
const maxImageBytes = 5 << 20

// Store caches fetched images under a content-addressed directory with a
// SQLite index. Entries are never invalidated within a run.
type Store struct {
	dir     string
	readDB  *sql.DB
	writeDB *sql.DB
	client  *http.Client
	log     *slog.Logger

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

func Open(dir string, timeout time.Duration, log *slog.Logger) (*Store, error) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	dbPath := filepath.Join(dir, "index.db")
	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	s := &Store{
		dir:      dir,
		readDB:   readDB,
		writeDB:  writeDB,
		client:   &http.Client{Timeout: timeout},
		log:      log,
		inflight: make(map[string]chan struct{}),
	}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS images (
			hash       TEXT PRIMARY KEY,
			path       TEXT NOT NULL,
			width      INTEGER NOT NULL,
			height     INTEGER NOT NULL,
			fetched_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// Get returns the cached image for url, fetching and resizing it on first
// request. Any failure returns the placeholder resized to the requested
// dimensions; Get never returns an error.
func (s *Store) Get(ctx context.Context, url string, width, height int) []byte {
	if url == "" {
		return s.Placeholder(width, height)
	}
	hash := urlHash(url)

	for {
		if data, ok := s.lookup(hash); ok {
			return data
		}

		s.mu.Lock()
		ch, busy := s.inflight[hash]
		if !busy {
			ch = make(chan struct{})
			s.inflight[hash] = ch
			s.mu.Unlock()
			break
		}
		s.mu.Unlock()
		// Another goroutine is fetching this URL; wait and re-check.
		select {
		case <-ch:
		case <-ctx.Done():
			return s.Placeholder(width, height)
		}
	}

	defer func() {
		s.mu.Lock()
		close(s.inflight[hash])
		delete(s.inflight, hash)
		s.mu.Unlock()
	}()

	data, err := s.fetchAndStore(ctx, url, hash, width, height)
	if err != nil {
		s.log.Warn("image fetch failed, using placeholder", "url", url, "err", err)
		return s.Placeholder(width, height)
	}
	return data
}

// Placeholder returns the bundled default asset resized to the given dimensions.
func (s *Store) Placeholder(width, height int) []byte {
	img, err := imaging.Decode(bytes.NewReader(defaultAsset))
	if err != nil {
		return defaultAsset
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Resize(img, width, height, imaging.Lanczos), imaging.PNG); err != nil {
		return defaultAsset
	}
	return buf.Bytes()
}

func (s *Store) lookup(hash string) ([]byte, bool) {
	var path string
	err := s.readDB.QueryRow("SELECT path FROM images WHERE hash = ?", hash).Scan(&path)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *Store) fetchAndStore(ctx context.Context, url, hash string, width, height int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching image: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("not an image: content-type %q", ct)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(raw) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d byte ceiling", maxImageBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	// Resize and flatten transparency onto white.
	resized := imaging.Resize(img, width, height, imaging.Lanczos)
	flat := imaging.New(width, height, color.White)
	flat = imaging.OverlayCenter(flat, resized, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}

	// Write to a temp path, then rename: readers never see a partial file
	// and duplicate writers cannot corrupt the published asset.
	finalPath := filepath.Join(s.dir, hash+".png")
	tmp, err := os.CreateTemp(s.dir, "img-*.tmp")
	if err != nil {
		return nil, err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	_, err = s.writeDB.Exec(`
		INSERT INTO images (hash, path, width, height, fetched_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, finalPath, width, height, time.Now())
	if err != nil {
		return nil, fmt.Errorf("indexing image: %w", err)
	}

	return buf.Bytes(), nil
}

func urlHash(url string) string {
	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h[:16])
}
