package catalog_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/featgen/catalog"
	"github.com/syssam/featgen/compiler/load"
	"github.com/syssam/featgen/question"
)

const pbeTask = "c0_PasswordBasedEncryption"

// modelDir lays out the PBE model and its questionnaire the way LoadDir
// expects them.
func modelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	copyFile(t, "../compiler/load/testdata/pbe.yaml", filepath.Join(dir, "pbe.yaml"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, catalog.QuestionsDir), 0o755))
	copyFile(t, "../question/testdata/pbe_questions.yaml", filepath.Join(dir, catalog.QuestionsDir, "pbe.yaml"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("models"), 0o644))
	return dir
}

func copyFile(t *testing.T, from, to string) {
	t.Helper()
	data, err := os.ReadFile(from)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(to, data, 0o644))
}

func TestLoadDir(t *testing.T) {
	c, err := catalog.LoadDir(context.Background(), modelDir(t))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	entries := c.Entries()
	assert.Equal(t, "c0_PASS", entries[0].Task)
	assert.Nil(t, entries[0].Questions)
	assert.Equal(t, pbeTask, entries[1].Task)
	assert.Equal(t, "Encrypt data based on a password", entries[1].Description)
	require.NotNil(t, entries[1].Questions)
	assert.Len(t, entries[1].Questions.Questions, 3)

	_, ok := c.Get("c0_Unknown")
	assert.False(t, ok)
}

func TestLoadDirWithoutQuestions(t *testing.T) {
	dir := t.TempDir()
	copyFile(t, "../compiler/load/testdata/pbe.yaml", filepath.Join(dir, "pbe.yaml"))
	c, err := catalog.LoadDir(context.Background(), dir)
	require.NoError(t, err)
	e, ok := c.Get(pbeTask)
	require.True(t, ok)
	assert.Nil(t, e.Questions)
}

func TestEntryGenerator(t *testing.T) {
	c, err := catalog.LoadDir(context.Background(), modelDir(t))
	require.NoError(t, err)
	e, ok := c.Get(pbeTask)
	require.True(t, ok)

	answers, err := e.Questions.Select(map[int]string{0: "SHA-256"})
	require.NoError(t, err)
	g, err := e.Generator()
	require.NoError(t, err)
	constrained := g.Generate(context.Background(), answers)
	require.NoError(t, constrained.Err())
	assert.Equal(t, 3, constrained.Len())

	g, err = e.Generator()
	require.NoError(t, err)
	defaults, err := e.Questions.Select(nil)
	require.NoError(t, err)
	fresh := g.Generate(context.Background(), defaults)
	require.NoError(t, fresh.Err())
	assert.Equal(t, 9, fresh.Len())
}

func TestNewErrors(t *testing.T) {
	m, err := load.ReadFile("../compiler/load/testdata/pbe.yaml")
	require.NoError(t, err)
	a := &load.File{Path: "a.yaml", Model: m}
	b := &load.File{Path: "b.yaml", Model: m}

	_, err = catalog.New([]*load.File{a, b})
	assert.ErrorContains(t, err, "declared in a.yaml and b.yaml")

	_, err = catalog.New([]*load.File{a}, &question.Questionnaire{Task: "c0_Unknown"})
	assert.ErrorContains(t, err, "unknown task")

	q := &question.Questionnaire{Task: pbeTask}
	_, err = catalog.New([]*load.File{a}, q, q)
	assert.ErrorContains(t, err, "two questionnaires")
}

func TestWatch(t *testing.T) {
	dir := modelDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *catalog.Catalog, 4)
	done := make(chan error, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() {
		done <- catalog.Watch(ctx, dir, 20*time.Millisecond, logger, func(c *catalog.Catalog) { reloads <- c })
	}()

	model := `tasks:
  - name: c0_Hashing
    description: Hash data
nodes:
  - name: c0_Hashing
`
	// The watcher may not be registered yet when the first write lands.
	require.Eventually(t, func() bool {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "hashing.yaml"), []byte(model), 0o644))
		select {
		case c := <-reloads:
			_, ok := c.Get("c0_Hashing")
			return ok && c.Len() == 3
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchMissingDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := catalog.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), time.Millisecond, logger, func(*catalog.Catalog) {})
	assert.Error(t, err)
}
