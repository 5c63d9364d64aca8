package vectorindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pdfchat/internal/domain"
)

func chunks(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		out[i] = domain.Chunk{Order: i, Text: t}
	}
	return out
}

func newIndex(t *testing.T, store Store, metric Metric) *Index {
	t.Helper()
	ix, err := New(store, Options{Name: "test", Metric: metric}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return ix
}

func TestSearchOrdersByScoreAndBreaksTiesByOrder(t *testing.T) {
	ix := newIndex(t, NewFileStore(t.TempDir()), MetricCosine)
	h, err := ix.Build(context.Background(),
		chunks("a", "b", "c", "d"),
		[][]float32{{1, 0}, {0, 1}, {2, 0}, {1, 1}},
		BuildMeta{Model: "m"},
	)
	require.NoError(t, err)

	res, err := h.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	// a and c are both perfectly aligned; a was indexed first
	assert.Equal(t, "a", res[0].Text)
	assert.Equal(t, "c", res[1].Text)
	assert.Equal(t, "d", res[2].Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	assert.GreaterOrEqual(t, res[1].Score, res[2].Score)
}

func TestSearchReturnsAllWhenFewerThanK(t *testing.T) {
	ix := newIndex(t, NewFileStore(t.TempDir()), MetricCosine)
	h, err := ix.Build(context.Background(), chunks("x", "y"), [][]float32{{1, 0}, {0, 1}}, BuildMeta{})
	require.NoError(t, err)

	res, err := h.Search([]float32{1, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := newIndex(t, NewFileStore(t.TempDir()), MetricCosine)
	h, err := ix.Build(context.Background(), nil, nil, BuildMeta{})
	require.NoError(t, err)

	res, err := h.Search([]float32{1, 2, 3}, 4)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix := newIndex(t, NewFileStore(t.TempDir()), MetricCosine)
	h, err := ix.Build(context.Background(), chunks("x"), [][]float32{{1, 0}}, BuildMeta{})
	require.NoError(t, err)

	_, err = h.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestMetrics(t *testing.T) {
	vectors := [][]float32{{3, 0}, {1, 0}, {0, 5}}
	cases := []struct {
		metric Metric
		want   []string
	}{
		{MetricDot, []string{"far", "near", "other"}},
		{MetricL2, []string{"near", "far", "other"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.metric), func(t *testing.T) {
			ix := newIndex(t, NewFileStore(t.TempDir()), tc.metric)
			h, err := ix.Build(context.Background(), chunks("far", "near", "other"), vectors, BuildMeta{})
			require.NoError(t, err)
			res, err := h.Search([]float32{1, 0}, 3)
			require.NoError(t, err)
			got := make([]string, len(res))
			for i, r := range res {
				got[i] = r.Text
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ix := newIndex(t, store, MetricCosine)
	_, err := ix.Build(context.Background(), chunks("a", "b"), [][]float32{{1, 0}, {1}}, BuildMeta{})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	ok, err := ix.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ix.Build(context.Background(), chunks("a"), nil, BuildMeta{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRebuildReplacesContents(t *testing.T) {
	dir := t.TempDir()
	ix := newIndex(t, NewFileStore(dir), MetricCosine)
	ctx := context.Background()

	_, err := ix.Build(ctx, chunks("old one", "old two"), [][]float32{{1, 0}, {0.9, 0.1}}, BuildMeta{Model: "m"})
	require.NoError(t, err)
	_, err = ix.Build(ctx, chunks("new one"), [][]float32{{0, 1}}, BuildMeta{Model: "m"})
	require.NoError(t, err)

	// a fresh reader sees only the second build
	reader := newIndex(t, NewFileStore(dir), MetricCosine)
	h, err := reader.Load(ctx, Compat{Model: "m"})
	require.NoError(t, err)
	res, err := h.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "new one", res[0].Text)
}

func TestLoadWithoutBuild(t *testing.T) {
	ix := newIndex(t, NewFileStore(t.TempDir()), MetricCosine)
	_, err := ix.Load(context.Background(), Compat{})
	assert.ErrorIs(t, err, domain.ErrNoIndex)

	ok, err := ix.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadChecksCompatibility(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	_, err := newIndex(t, NewFileStore(dir), MetricCosine).Build(ctx, chunks("a"), [][]float32{{1, 0, 0}}, BuildMeta{Model: "model-a", Truncated: 3})
	require.NoError(t, err)

	reader := newIndex(t, NewFileStore(dir), MetricCosine)
	_, err = reader.Load(ctx, Compat{Model: "model-b"})
	assert.ErrorIs(t, err, domain.ErrIncompatibleIndex)

	_, err = reader.Load(ctx, Compat{Model: "model-a", Dimension: 4})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	h, err := reader.Load(ctx, Compat{Model: "model-a", Dimension: 3})
	require.NoError(t, err)
	info := h.Info()
	assert.Equal(t, 3, info.Dimension)
	assert.Equal(t, 1, info.ChunkCount)
	assert.Equal(t, 3, info.Truncated)
	assert.Equal(t, "cosine", info.Metric)
	assert.NotEmpty(t, info.BuildID)
}

func TestLoadCorruptArtifact(t *testing.T) {
	store := &memStore{data: map[string][]byte{}}
	ctx := context.Background()
	_, err := newIndex(t, store, MetricCosine).Build(ctx, chunks("a"), [][]float32{{1}}, BuildMeta{})
	require.NoError(t, err)

	raw := store.data["test"]
	raw[len(raw)-1] ^= 0xff

	_, err = newIndex(t, store, MetricCosine).Load(ctx, Compat{})
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestBuildFailureKeepsPreviousIndex(t *testing.T) {
	store := &memStore{data: map[string][]byte{}}
	ctx := context.Background()
	ix := newIndex(t, store, MetricCosine)
	_, err := ix.Build(ctx, chunks("kept"), [][]float32{{1}}, BuildMeta{})
	require.NoError(t, err)

	store.putErr = errors.New("disk full")
	_, err = ix.Build(ctx, chunks("lost"), [][]float32{{1}}, BuildMeta{})
	assert.ErrorIs(t, err, domain.ErrPersistence)

	h, err := ix.Load(ctx, Compat{})
	require.NoError(t, err)
	res, err := h.Search([]float32{1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "kept", res[0].Text)
}

func TestLoadFollowsSharedStore(t *testing.T) {
	ctx := context.Background()
	sqliteStore, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	stores := map[string]Store{
		"file":   NewFileStore(t.TempDir()),
		"sqlite": sqliteStore,
		"memory": &memStore{data: map[string][]byte{}},
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			writer := newIndex(t, store, MetricCosine)
			reader := newIndex(t, store, MetricCosine)

			_, err := writer.Build(ctx, chunks("old corpus"), [][]float32{{1, 0}}, BuildMeta{Model: "m"})
			require.NoError(t, err)
			h, err := reader.Load(ctx, Compat{})
			require.NoError(t, err)
			res, err := h.Search([]float32{1, 0}, 1)
			require.NoError(t, err)
			assert.Equal(t, "old corpus", res[0].Text)

			_, err = writer.Build(ctx, chunks("fresh", "corpus with two chunks"), [][]float32{{1, 0}, {0, 1}}, BuildMeta{Model: "m"})
			require.NoError(t, err)
			h, err = reader.Load(ctx, Compat{})
			require.NoError(t, err)
			assert.Equal(t, 2, h.Len())
			res, err = h.Search([]float32{1, 0}, 1)
			require.NoError(t, err)
			assert.Equal(t, "fresh", res[0].Text)

			require.NoError(t, writer.Remove(ctx))
			_, err = reader.Load(ctx, Compat{})
			assert.ErrorIs(t, err, domain.ErrNoIndex)
			_, err = writer.Load(ctx, Compat{})
			assert.ErrorIs(t, err, domain.ErrNoIndex)
		})
	}
}

func TestLoadSeesArtifactDeletedOutOfBand(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ix := newIndex(t, NewFileStore(dir), MetricCosine)
	_, err := ix.Build(ctx, chunks("a"), [][]float32{{1}}, BuildMeta{})
	require.NoError(t, err)
	_, err = ix.Load(ctx, Compat{})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "test")))

	_, err = ix.Load(ctx, Compat{})
	assert.ErrorIs(t, err, domain.ErrNoIndex)
	ok, err := ix.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadReusesCachedHandleWhileUnchanged(t *testing.T) {
	ctx := context.Background()
	ix := newIndex(t, NewFileStore(t.TempDir()), MetricCosine)
	_, err := ix.Build(ctx, chunks("a"), [][]float32{{1}}, BuildMeta{})
	require.NoError(t, err)

	first, err := ix.Load(ctx, Compat{})
	require.NoError(t, err)
	second, err := ix.Load(ctx, Compat{})
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestNewRejectsUnknownMetric(t *testing.T) {
	_, err := New(NewFileStore(t.TempDir()), Options{Metric: "manhattan"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	sqliteStore, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "db", "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	stores := map[string]Store{
		"file":   NewFileStore(t.TempDir()),
		"sqlite": sqliteStore,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "idx")
			assert.ErrorIs(t, err, ErrNotFound)
			ok, err := store.Exists(ctx, "idx")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Put(ctx, "idx", []byte("first")))
			require.NoError(t, store.Put(ctx, "idx", []byte("second")))

			data, err := store.Get(ctx, "idx")
			require.NoError(t, err)
			assert.Equal(t, []byte("second"), data)
			ok, err = store.Exists(ctx, "idx")
			require.NoError(t, err)
			assert.True(t, ok)

			v1, err := store.Version(ctx, "idx")
			require.NoError(t, err)
			require.NoError(t, store.Put(ctx, "idx", []byte("third")))
			v2, err := store.Version(ctx, "idx")
			require.NoError(t, err)
			assert.NotEqual(t, v1, v2)

			require.NoError(t, store.Delete(ctx, "idx"))
			require.NoError(t, store.Delete(ctx, "idx"))
			_, err = store.Version(ctx, "idx")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.Get(ctx, "idx")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "idx", []byte("first")))
			v3, err := store.Version(ctx, "idx")
			require.NoError(t, err)
			assert.NotEqual(t, v1, v3)
			assert.NotEqual(t, v2, v3)
		})
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, store.Put(context.Background(), "idx", []byte("data")))

	matches, err := filepath.Glob(filepath.Join(dir, "idx", ".index-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "indexes/faiss_index/index.gob", objectKey("indexes", DefaultName))
	assert.Equal(t, "faiss_index/index.gob", objectKey("", DefaultName))
}

type memStore struct {
	data     map[string][]byte
	versions map[string]int
	seq      int
	putErr   error
}

func (m *memStore) Get(_ context.Context, name string) ([]byte, error) {
	d, ok := m.data[name]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memStore) Put(_ context.Context, name string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.data[name] = data
	if m.versions == nil {
		m.versions = map[string]int{}
	}
	m.seq++
	m.versions[name] = m.seq
	return nil
}

func (m *memStore) Exists(_ context.Context, name string) (bool, error) {
	_, ok := m.data[name]
	return ok, nil
}

func (m *memStore) Version(_ context.Context, name string) (string, error) {
	if _, ok := m.data[name]; !ok {
		return "", ErrNotFound
	}
	return strconv.Itoa(m.versions[name]), nil
}

func (m *memStore) Delete(_ context.Context, name string) error {
	delete(m.data, name)
	delete(m.versions, name)
	return nil
}
