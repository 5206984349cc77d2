package fanout

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/harrison/far/internal/logger"
	"github.com/harrison/far/internal/models"
	"github.com/harrison/far/internal/pattern"
	"github.com/harrison/far/internal/replace"
	"github.com/harrison/far/internal/seq"
	"github.com/harrison/far/internal/walk"
)

// recorder collects outcomes from concurrent workers.
type recorder struct {
	mu       sync.Mutex
	outcomes []models.Outcome
}

func (r *recorder) Report(o models.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) byStatus(status string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var paths []string
	for _, o := range r.outcomes {
		if o.Status == status {
			paths = append(paths, o.Path)
		}
	}
	sort.Strings(paths)
	return paths
}

func results(paths ...string) seq.Iterator[walk.Result] {
	items := make([]walk.Result, len(paths))
	for i, p := range paths {
		items[i] = walk.Result{Path: p}
	}
	return seq.FromSlice(items)
}

func TestRunDispatchesEveryPath(t *testing.T) {
	var mu sync.Mutex
	var handled []string
	handler := func(path string) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, path)
		return nil
	}

	rec := &recorder{}
	ex := New(handler, rec, Options{Workers: 4, KeepDuplicates: true})
	summary := ex.Run(context.Background(), results("/a", "/b", "/c", "/d", "/e"))

	sort.Strings(handled)
	assert.Equal(t, []string{"/a", "/b", "/c", "/d", "/e"}, handled)
	assert.Equal(t, int64(5), summary.Replaced)
	assert.Equal(t, int64(5), summary.Total())
	assert.Equal(t, int64(0), summary.Failures())
	assert.Len(t, rec.byStatus(models.StatusReplaced), 5)
}

func TestRunIsolatesFailures(t *testing.T) {
	handler := func(path string) error {
		switch path {
		case "/big":
			return &replace.Error{Kind: replace.KindTooBig, Path: path, Op: "gate", Err: replace.ErrFileTooBig}
		case "/bin":
			return &replace.Error{Kind: replace.KindNotPrintable, Path: path, Op: "gate", Err: replace.ErrFileNotPrintable}
		case "/io":
			return errors.New("disk on fire")
		case "/panic":
			panic("boom")
		}
		return nil
	}

	rec := &recorder{}
	ex := New(handler, rec, Options{Workers: 2, KeepDuplicates: true})
	summary := ex.Run(context.Background(), results("/ok1", "/big", "/bin", "/io", "/panic", "/ok2"))

	assert.Equal(t, []string{"/ok1", "/ok2"}, rec.byStatus(models.StatusReplaced))
	assert.Equal(t, []string{"/big"}, rec.byStatus(models.StatusTooBig))
	assert.Equal(t, []string{"/bin"}, rec.byStatus(models.StatusNotPrintable))
	assert.Equal(t, []string{"/io", "/panic"}, rec.byStatus(models.StatusFailed))
	assert.Equal(t, int64(2), summary.Failures())
	assert.Equal(t, int64(6), summary.Total())
}

func TestRunReportsTraversalErrors(t *testing.T) {
	items := seq.FromSlice([]walk.Result{
		{Path: "/ok"},
		{Path: "/locked", Err: &walk.Error{Op: "open", Path: "/locked", Err: os.ErrPermission}},
		{Path: "/ok2"},
	})

	rec := &recorder{}
	ex := New(func(string) error { return nil }, rec, Options{KeepDuplicates: true})
	summary := ex.Run(context.Background(), items)

	assert.Equal(t, []string{"/locked"}, rec.byStatus(models.StatusWalkError))
	assert.Equal(t, int64(2), summary.Replaced)
	assert.Equal(t, int64(1), summary.WalkErrors)
	assert.Equal(t, int64(1), summary.Failures())
}

func TestRunReportsPathOfBareTraversalError(t *testing.T) {
	items := seq.FromSlice([]walk.Result{
		{Err: &walk.Error{Op: "open", Path: "/t/locked", Err: os.ErrPermission}},
	})

	var buf bytes.Buffer
	console := logger.NewConsoleLogger(&buf, "info")
	rec := &recorder{}
	ex := New(func(string) error { return nil }, Tee(console, rec), Options{})
	summary := ex.Run(context.Background(), items)

	assert.Equal(t, int64(1), summary.WalkErrors)
	assert.Equal(t, []string{"/t/locked"}, rec.byStatus(models.StatusWalkError))
	assert.Contains(t, buf.String(), "[ERROR] /t/locked: open: permission denied\n")
	assert.NotContains(t, buf.String(), "[ERROR] : ")
}

func TestRunReportsWalkerErrorsWithTheirDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.MkdirAll(locked, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(locked, "f"), []byte("abc"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.txt"), []byte("abc"), 0644))
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	w, err := walk.New(root)
	require.NoError(t, err)
	defer w.Close()

	var buf bytes.Buffer
	console := logger.NewConsoleLogger(&buf, "info")
	rec := &recorder{}
	ex := New(func(string) error { return nil }, Tee(console, rec), Options{})
	summary := ex.Run(context.Background(), w)

	assert.Equal(t, int64(1), summary.Replaced)
	assert.Equal(t, []string{locked}, rec.byStatus(models.StatusWalkError))
	assert.Contains(t, buf.String(), "[ERROR] "+locked+": open: permission denied\n")
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	const limit = 3
	var inFlight, peak atomic.Int64
	handler := func(string) error {
		n := inFlight.Inc()
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Dec()
		return nil
	}

	paths := make([]string, 30)
	for i := range paths {
		paths[i] = filepath.Join("/f", string(rune('a'+i)))
	}

	ex := New(handler, nil, Options{Workers: limit, KeepDuplicates: true})
	summary := ex.Run(context.Background(), results(paths...))

	assert.Equal(t, int64(30), summary.Replaced)
	assert.LessOrEqual(t, peak.Load(), int64(limit))
	assert.Equal(t, limit, ex.Workers())
}

func TestRunStopsPullingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var handled atomic.Int64

	pulled := 0
	items := seq.Func[walk.Result](func() (walk.Result, bool) {
		pulled++
		if pulled == 3 {
			cancel()
		}
		return walk.Result{Path: filepath.Join("/f", string(rune('a'+pulled)))}, true
	})

	ex := New(func(string) error { handled.Inc(); return nil }, nil, Options{Workers: 1, KeepDuplicates: true})
	summary := ex.Run(ctx, items)

	assert.Equal(t, 3, pulled)
	assert.Equal(t, int64(3), handled.Load())
	assert.Equal(t, int64(3), summary.Replaced)
}

func TestRunDeduplicatesOverlappingRoots(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	file := filepath.Join(dir, "sub", "f")
	require.NoError(t, os.WriteFile(file, []byte("abc"), 0644))

	walkers, err := walk.NewAll([]string{dir, filepath.Join(dir, "sub")})
	require.NoError(t, err)
	items := seq.Flatten[walk.Result, *walk.Walker](seq.FromSlice(walkers))
	defer items.Close()

	var handled atomic.Int64
	rec := &recorder{}
	ex := New(func(string) error { handled.Inc(); return nil }, rec, Options{})
	summary := ex.Run(context.Background(), items)

	assert.Equal(t, int64(1), handled.Load())
	assert.Equal(t, int64(1), summary.Replaced)
	assert.Equal(t, int64(1), summary.Duplicates)
	assert.Equal(t, int64(0), summary.Failures())
}

func TestRunEndToEndReplacement(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1"), []byte("xabcyabcz"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "2"), []byte("abc"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin"), []byte{0xff, 0x00, 'a', 'b', 'c'}, 0644))

	w, err := walk.New(dir)
	require.NoError(t, err)
	defer w.Close()

	s := pattern.Substitution{Pattern: pattern.MustCompile("abc", pattern.Options{}), Replacement: "def"}
	r := replace.New(replace.DefaultMaxSize)
	handler := func(path string) error {
		return r.Run(replace.Task{Path: path, Substituter: s, Mode: replace.ModeLines})
	}

	rec := &recorder{}
	summary := New(handler, rec, Options{}).Run(context.Background(), w)

	one, err := os.ReadFile(filepath.Join(dir, "1"))
	require.NoError(t, err)
	two, err := os.ReadFile(filepath.Join(dir, "a", "2"))
	require.NoError(t, err)

	assert.Equal(t, "xdefydefz", string(one))
	assert.Equal(t, "def", string(two))
	assert.Equal(t, int64(2), summary.Replaced)
	assert.Equal(t, int64(1), summary.NotPrintable)
	assert.Equal(t, int64(0), summary.Failures())
}

func TestClassifyReplaceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"too big", &replace.Error{Kind: replace.KindTooBig, Err: replace.ErrFileTooBig}, models.StatusTooBig},
		{"not printable", &replace.Error{Kind: replace.KindNotPrintable, Err: replace.ErrFileNotPrintable}, models.StatusNotPrintable},
		{"io", &replace.Error{Kind: replace.KindIO, Err: os.ErrPermission}, models.StatusFailed},
		{"substitute", &replace.Error{Kind: replace.KindSubstitute, Err: errors.New("timeout")}, models.StatusFailed},
		{"foreign", errors.New("other"), models.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyReplaceError(tt.err))
		})
	}
}

func TestTeeForwardsToEveryReporter(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	tee := Tee(a, nil, b)

	tee.Report(models.Outcome{Path: "/x", Status: models.StatusReplaced})

	assert.Equal(t, []string{"/x"}, a.byStatus(models.StatusReplaced))
	assert.Equal(t, []string{"/x"}, b.byStatus(models.StatusReplaced))
}
