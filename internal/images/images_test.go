package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/livereload"
	"git.home.luguber.info/inful/assetpipe/internal/testutil"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	task     *Task
	root     string
	cache    *SQLiteCache
	notified *atomic.Int32
}

func newFixture(t *testing.T, files map[string]string) fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.Source = filepath.Join(t.TempDir(), "src")
	testutil.WriteTree(t, cfg.Paths.Source, files)

	cache, err := OpenSQLiteCache(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	var notified atomic.Int32
	task := NewTask(cfg, func() (Cache, error) { return cache, nil },
		livereload.NotifierFunc(func(k livereload.Kind) {
			assert.Equal(t, livereload.KindImage, k)
			notified.Add(1)
		}), nil)
	return fixture{task: task, root: cfg.Paths.Source, cache: cache, notified: &notified}
}

func TestImagesOptimizeAndMirror(t *testing.T) {
	raw := samplePNG(t)
	f := newFixture(t, map[string]string{
		"images/src/logo.png":       string(raw),
		"images/src/icons/a.svg":    `<svg xmlns="http://www.w3.org/2000/svg"  width="10"  height="10"> <!-- c --> <rect width="10" height="10"/> </svg>`,
		"images/src/docs/notes.txt": "copied verbatim",
	})

	require.NoError(t, f.task.Run(context.Background()))

	fa := testutil.NewFileAssertions(t, f.root)
	fa.AssertFileExists("images/dist/logo.png").
		AssertFileExists("images/dist/icons/a.svg").
		AssertFileContains("images/dist/docs/notes.txt", "copied verbatim").
		AssertFileNotContains("images/dist/icons/a.svg", "<!--")

	out, err := os.ReadFile(filepath.Join(f.root, "images", "dist", "logo.png"))
	require.NoError(t, err)
	assert.Less(t, len(out), len(raw))
	_, err = png.Decode(bytes.NewReader(out))
	require.NoError(t, err, "optimized output must remain a valid PNG")

	rec, ok, err := f.cache.Get(context.Background(), "images/src/logo.png")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(len(raw)), rec.Size)
	assert.Equal(t, int64(len(out)), rec.OptimizedSize)
	assert.Equal(t, int32(1), f.notified.Load())
}

func TestImagesSkipUnchanged(t *testing.T) {
	f := newFixture(t, map[string]string{"images/src/logo.png": string(samplePNG(t))})
	require.NoError(t, f.task.Run(context.Background()))

	mtime := testutil.Backdate(t, f.root, "images/dist/logo.png")
	require.NoError(t, f.task.Run(context.Background()))

	testutil.NewFileAssertions(t, f.root).AssertModTime("images/dist/logo.png", mtime)
	assert.Equal(t, int32(1), f.notified.Load(), "a run without writes must not reload")
}

func TestImagesReprocessWhenChangedOrMissing(t *testing.T) {
	f := newFixture(t, map[string]string{"images/src/notes.txt": "v1"})
	require.NoError(t, f.task.Run(context.Background()))

	testutil.WriteTree(t, f.root, map[string]string{"images/src/notes.txt": "v2"})
	require.NoError(t, f.task.Run(context.Background()))
	testutil.NewFileAssertions(t, f.root).AssertFileContains("images/dist/notes.txt", "v2")

	require.NoError(t, os.Remove(filepath.Join(f.root, "images", "dist", "notes.txt")))
	require.NoError(t, f.task.Run(context.Background()))
	testutil.NewFileAssertions(t, f.root).AssertFileExists("images/dist/notes.txt")
	assert.Equal(t, int32(3), f.notified.Load())
}

func TestImagesRemoveOrphanedOutput(t *testing.T) {
	f := newFixture(t, map[string]string{
		"images/src/keep.txt":     "keep",
		"images/src/old/gone.txt": "gone",
	})
	require.NoError(t, f.task.Run(context.Background()))
	testutil.NewFileAssertions(t, f.root).AssertFileExists("images/dist/old/gone.txt")

	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "images", "src", "old")))
	require.NoError(t, f.task.Run(context.Background()))

	testutil.NewFileAssertions(t, f.root).
		AssertFileNotExists("images/dist/old/gone.txt").
		AssertFileNotExists("images/dist/old").
		AssertFileExists("images/dist/keep.txt")
	_, ok, err := f.cache.Get(context.Background(), "images/src/old/gone.txt")
	require.NoError(t, err)
	assert.False(t, ok, "cache record of a deleted source must be dropped")
	assert.Equal(t, int32(2), f.notified.Load(), "removing output triggers a reload")

	require.NoError(t, os.Remove(filepath.Join(f.root, "images", "src", "keep.txt")))
	require.NoError(t, f.task.Run(context.Background()))
	testutil.NewFileAssertions(t, f.root).AssertFileNotExists("images/dist/keep.txt")
}

func TestSourcePathInvertsDistPath(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, "images/dist/a/b.png", f.task.DistPath("images/src/a/b.png"))
	assert.Equal(t, "images/src/a/b.png", f.task.SourcePath("images/dist/a/b.png"))
}

func TestImagesDecodeErrorIsFatal(t *testing.T) {
	f := newFixture(t, map[string]string{"images/src/broken.png": "not a png"})

	err := f.task.Run(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryImage))
	assert.True(t, ferrors.HasSeverity(err, ferrors.SeverityFatal))
}

func TestSQLiteCachePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "images.db")
	c, err := OpenSQLiteCache(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(context.Background(), Record{Path: "a.png", SourceHash: "h1", Size: 3}))
	require.NoError(t, c.Put(context.Background(), Record{Path: "a.png", SourceHash: "h2", Size: 4}))
	require.NoError(t, c.Close())

	c, err = OpenSQLiteCache(path)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	rec, ok, err := c.Get(context.Background(), "a.png")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "h2", rec.SourceHash)
	assert.Equal(t, int64(4), rec.Size)

	_, ok, err = c.Get(context.Background(), "missing.png")
	require.NoError(t, err)
	assert.False(t, ok)
}
