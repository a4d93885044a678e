package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roselite-project/roselite/internal/pkgfile"
	"github.com/roselite-project/roselite/internal/slugindex/memory"
)

// fakeDHT is an in-memory dhtStore fake exercising the record/subkey
// contract without pulling in a real libp2p swarm.
type fakeDHT struct {
	mu      sync.Mutex
	counter int
	records map[string]map[int][]byte
}

func newFakeDHT() *fakeDHT {
	return &fakeDHT{records: make(map[string]map[int][]byte)}
}

func (f *fakeDHT) CreateRecord(ctx context.Context, columns int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	rk := fmt.Sprintf("record-%d", f.counter)
	f.records[rk] = make(map[int][]byte)
	return rk, nil
}

func (f *fakeDHT) SetSubkey(ctx context.Context, rk string, idx int, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[rk] == nil {
		f.records[rk] = make(map[int][]byte)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	f.records[rk][idx] = cp
	return nil
}

func (f *fakeDHT) GetSubkey(ctx context.Context, rk string, idx int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[rk][idx], nil
}

// buildTestPackage builds a real signed .veilidpkg archive whose
// payload file is padded to approximately size bytes, so the resulting
// Package.Content exercises the chunking boundaries under test without
// corrupting the tar+gzip stream the way appending raw bytes would.
func buildTestPackage(t *testing.T, size int) *pkgfile.Package {
	t.Helper()

	dir := t.TempDir()
	payload := make([]byte, size)
	_, err := rand.Read(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payload.bin"), payload, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644))

	pkg, err := pkgfile.NewBuilder("Test App", dir).
		Version("1.0.0").
		Description("a test app").
		Developer("tester").
		Entry("index.html").
		Build()
	require.NoError(t, err)
	return pkg
}

func TestPublishSingleRecordSmallPackage(t *testing.T) {
	dht := newFakeDHT()
	s := New(dht, nil, nil)
	pkg := buildTestPackage(t, 100)

	uri, err := s.Publish(context.Background(), pkg)
	require.NoError(t, err)
	assert.NotEmpty(t, uri.AppID)
	assert.Equal(t, "1.0.0", uri.Version)
}

func TestPublishSpansMultipleRecordsForLargeContent(t *testing.T) {
	dht := newFakeDHT()
	s := New(dht, nil, nil)
	pkg := buildTestPackage(t, MaxRecordBytes+1000)

	uri, err := s.Publish(context.Background(), pkg)
	require.NoError(t, err)

	raw, err := dht.GetSubkey(context.Background(), string(uri.AppID), 0)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestPublishRejectsEmptyContent(t *testing.T) {
	dht := newFakeDHT()
	s := New(dht, nil, nil)
	pkg := &pkgfile.Package{}

	_, err := s.Publish(context.Background(), pkg)
	assert.Error(t, err)
}

func TestPublishThenDownloadRoundTrip(t *testing.T) {
	dht := newFakeDHT()
	s := New(dht, nil, nil)
	pkg := buildTestPackage(t, 50_000)

	uri, err := s.Publish(context.Background(), pkg)
	require.NoError(t, err)

	downloaded, err := s.Download(context.Background(), uri.AppID)
	require.NoError(t, err)
	assert.Equal(t, pkg.Content, downloaded.Content)
}

func TestPublishThenDownloadAcrossMultipleRecords(t *testing.T) {
	dht := newFakeDHT()
	s := New(dht, nil, nil)
	pkg := buildTestPackage(t, MaxRecordBytes*2+500)

	uri, err := s.Publish(context.Background(), pkg)
	require.NoError(t, err)

	downloaded, err := s.Download(context.Background(), uri.AppID)
	require.NoError(t, err)
	assert.Equal(t, len(pkg.Content), len(downloaded.Content))
	assert.Equal(t, pkg.Content, downloaded.Content)
}

func TestDownloadMissingAppReturnsNotFound(t *testing.T) {
	dht := newFakeDHT()
	s := New(dht, nil, nil)

	_, err := s.Download(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestGetAppReturnsMetadataWithoutDownloadingContent(t *testing.T) {
	dht := newFakeDHT()
	s := New(dht, nil, nil)
	pkg := buildTestPackage(t, 1000)

	uri, err := s.Publish(context.Background(), pkg)
	require.NoError(t, err)

	info, err := s.GetApp(context.Background(), uri.AppID)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Test App", info.Name)
}

func TestPublishUpdatesSlugIndex(t *testing.T) {
	dht := newFakeDHT()
	idx := memory.New()
	s := New(dht, idx, nil)
	pkg := buildTestPackage(t, 1000)

	uri, err := s.Publish(context.Background(), pkg)
	require.NoError(t, err)

	info, err := idx.Get(context.Background(), uri.AppID)
	require.NoError(t, err)
	assert.Equal(t, "Test App", info.Name)
}

func TestChunkBytesPartitionsEvenly(t *testing.T) {
	data := make([]byte, 2*ChunkSize)
	chunks := chunkBytes(data, ChunkSize)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], ChunkSize)
	assert.Len(t, chunks[1], ChunkSize)
}

func TestChunkBytesHandlesShortFinalChunk(t *testing.T) {
	data := make([]byte, ChunkSize+100)
	chunks := chunkBytes(data, ChunkSize)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[1], 100)
}
