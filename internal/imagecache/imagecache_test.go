package imagecache

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"image/color"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), 2*time.Second, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

func imageServer(t *testing.T, hits *atomic.Int64, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetFetchesResizesAndCaches(t *testing.T) {
	var hits atomic.Int64
	srv := imageServer(t, &hits, "image/png", pngBytes(t, 300, 200))
	s := testStore(t)

	data := s.Get(context.Background(), srv.URL+"/pic.png", 120, 80)
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 80 {
		t.Errorf("expected 120x80, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	// Second request must come from the cache.
	again := s.Get(context.Background(), srv.URL+"/pic.png", 120, 80)
	if !bytes.Equal(data, again) {
		t.Error("expected identical bytes from cache")
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 network call, got %d", hits.Load())
	}
}

func TestGetNonImageContentTypeFallsBack(t *testing.T) {
	var hits atomic.Int64
	srv := imageServer(t, &hits, "text/html", []byte("<html>not an image</html>"))
	s := testStore(t)

	data := s.Get(context.Background(), srv.URL, 64, 64)
	if !bytes.Equal(data, s.Placeholder(64, 64)) {
		t.Error("expected placeholder for non-image response")
	}

	// No cache entry may be created: the URL is refetched next time.
	s.Get(context.Background(), srv.URL, 64, 64)
	if hits.Load() != 2 {
		t.Errorf("expected no cache entry for failed fetch, got %d hits", hits.Load())
	}
}

func TestGetOversizeFallsBack(t *testing.T) {
	big := make([]byte, maxImageBytes+1)
	srv := imageServer(t, nil, "image/png", big)
	s := testStore(t)

	data := s.Get(context.Background(), srv.URL, 64, 64)
	if !bytes.Equal(data, s.Placeholder(64, 64)) {
		t.Error("expected placeholder for oversize response")
	}
}

func TestGetDecodeFailureFallsBack(t *testing.T) {
	srv := imageServer(t, nil, "image/png", []byte("garbage"))
	s := testStore(t)

	data := s.Get(context.Background(), srv.URL, 64, 64)
	if !bytes.Equal(data, s.Placeholder(64, 64)) {
		t.Error("expected placeholder for undecodable image")
	}
}

func TestGetConcurrentRequestsFetchOnce(t *testing.T) {
	var hits atomic.Int64
	srv := imageServer(t, &hits, "image/png", pngBytes(t, 100, 100))
	s := testStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Get(context.Background(), srv.URL+"/same.png", 50, 50)
		}()
	}
	wg.Wait()

	if hits.Load() != 1 {
		t.Errorf("expected one fetch for concurrent requests, got %d", hits.Load())
	}
}

func TestPlaceholderDimensions(t *testing.T) {
	s := testStore(t)
	data := s.Placeholder(90, 45)
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding placeholder: %v", err)
	}
	if img.Bounds().Dx() != 90 || img.Bounds().Dy() != 45 {
		t.Errorf("expected 90x45, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}
