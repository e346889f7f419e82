// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/snapsong/internal/models"
)

// MockExtractor is a test double for [services.Extractor].
//
// Results are keyed by the image bytes; unknown images get Default.
type MockExtractor struct {
	mu      sync.Mutex
	ByImage map[string]models.Extraction
	Default models.Extraction
	Err     error
	Calls   int
}

func (m *MockExtractor) Extract(ctx context.Context, image []byte) (models.Extraction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return models.Extraction{}, m.Err
	}
	if e, ok := m.ByImage[string(image)]; ok {
		return e, nil
	}
	return m.Default, nil
}

// CallCount returns the number of Extract calls.
func (m *MockExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockSearcher is a test double for [services.CatalogSearcher].
type MockSearcher struct {
	mu      sync.Mutex
	Results map[string][]models.Candidate
	Err     error
	Queries []string
}

func (m *MockSearcher) SearchTracks(ctx context.Context, query string) ([]models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Results[query], nil
}

// CallCount returns the number of SearchTracks calls.
func (m *MockSearcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}

// MockOracle is a test double for [services.Oracle].
type MockOracle struct {
	mu       sync.Mutex
	Decision models.MatchDecision
	Err      error
	Calls    int
	Seen     [][]models.Candidate
}

func (m *MockOracle) Disambiguate(ctx context.Context, query string, candidates []models.Candidate) (models.MatchDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Seen = append(m.Seen, candidates)
	if m.Err != nil {
		return models.NoMatch(), m.Err
	}
	return m.Decision, nil
}

// CallCount returns the number of Disambiguate calls.
func (m *MockOracle) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockPlaylists is a test double for [services.PlaylistMutator].
//
// EnsurePlaylist creates the playlist on first use and finds it afterwards, counting creations.
type MockPlaylists struct {
	mu        sync.Mutex
	playlists map[string]models.Playlist
	Ensures   int
	Creations int
	Added     []string // "<playlistID>/<trackID>"
	EnsureErr error
	AddErr    error
}

func (m *MockPlaylists) EnsurePlaylist(ctx context.Context, name string) (models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ensures++
	if m.EnsureErr != nil {
		return models.Playlist{}, m.EnsureErr
	}
	if m.playlists == nil {
		m.playlists = make(map[string]models.Playlist)
	}
	if pl, ok := m.playlists[name]; ok {
		return pl, nil
	}
	m.Creations++
	pl := models.Playlist{ID: "pl-" + name, Name: name}
	m.playlists[name] = pl
	return pl, nil
}

func (m *MockPlaylists) AddTrack(ctx context.Context, playlistID, trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return m.AddErr
	}
	m.Added = append(m.Added, playlistID+"/"+trackID)
	return nil
}

// AddedTracks returns a copy of the recorded additions.
func (m *MockPlaylists) AddedTracks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Added...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// WriteImages creates one file per name in dir whose content is the name itself.
func WriteImages(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatalf("Failed to write image %s: %v", name, err)
		}
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
