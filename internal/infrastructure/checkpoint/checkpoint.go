// Package checkpoint stores tagged entity documents as JSON lines, one file per kind.
package checkpoint

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/usecase"
)

const maxLineSize = 4 << 20

// files lists checkpoint files in replay order. Players come first so roster
// memberships and match results always find their references.
var files = []struct {
	kind entity.Kind
	name string
}{
	{kind: entity.KindPlayer, name: "players.jsonl"},
	{kind: entity.KindRoster, name: "teams.jsonl"},
	{kind: entity.KindMatch, name: "matches.jsonl"},
}

func fileName(kind entity.Kind) (string, error) {
	for _, f := range files {
		if f.kind == kind {
			return f.name, nil
		}
	}
	return "", fmt.Errorf("no checkpoint file for %s", kind)
}

// Writer appends documents to the checkpoint files under dir.
type Writer struct {
	dir   string
	mu    sync.Mutex
	open  map[entity.Kind]*os.File
	lines int
}

var _ usecase.CheckpointSink = (*Writer)(nil)

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Writer{dir: dir, open: make(map[entity.Kind]*os.File)}, nil
}

func (w *Writer) Append(ctx context.Context, kind entity.Kind, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.file(kind)
	if err != nil {
		return err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.Write(doc)
	_ = buf.WriteByte('\n')
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append %s checkpoint: %w", kind, err)
	}
	w.lines++
	return nil
}

func (w *Writer) file(kind entity.Kind) (*os.File, error) {
	if f, ok := w.open[kind]; ok {
		return f, nil
	}
	name, err := fileName(kind)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s checkpoint: %w", kind, err)
	}
	w.open[kind] = f
	return f, nil
}

// Lines is the number of documents appended since the writer was created.
func (w *Writer) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for kind, f := range w.open {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s checkpoint: %w", kind, err))
		}
		delete(w.open, kind)
	}
	return errors.Join(errs...)
}

// Read yields every document under dir in replay order. Missing files are skipped,
// blank lines are ignored.
func Read(ctx context.Context, dir string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for _, f := range files {
			if !readFile(ctx, filepath.Join(dir, f.name), yield) {
				return
			}
		}
	}
}

func readFile(ctx context.Context, path string, yield func([]byte, error) bool) bool {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true
		}
		yield(nil, fmt.Errorf("open checkpoint: %w", err))
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return false
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !yield(append([]byte(nil), line...), nil) {
			return false
		}
	}
	if err := scanner.Err(); err != nil {
		yield(nil, fmt.Errorf("read %s: %w", filepath.Base(path), err))
		return false
	}
	return true
}
