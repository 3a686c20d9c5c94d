package control

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// FileSource watches a directory for dropped command files: an operator
// (or a script) writes one text command into a new file under the
// watched directory, and it is parsed and handed to Dispatch. This
// reuses fsnotify purely as a command-drop trigger; it never parses
// configuration out of the files it watches.
type FileSource struct {
	dir      string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	Dispatch func(Command)
}

// NewFileSource starts watching dir. Dispatch must be set before Run is
// called.
func NewFileSource(dir string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &FileSource{dir: dir, watcher: w, logger: logger.With("component", "control.filesource", "dir", dir)}, nil
}

// Run processes filesystem events until ctx is cancelled, parsing each
// newly written file as one command and deleting it afterward. Parse
// errors are logged, not propagated: a malformed drop must not stop the
// watcher from serving subsequent commands.
func (f *FileSource) Run(ctx context.Context) {
	defer f.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			f.handle(ev.Name)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Error("control filesource watch error", "err", err)
		}
	}
}

func (f *FileSource) handle(path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		f.logger.Warn("control filesource: could not read dropped command", "path", path, "err", err)
		return
	}
	defer os.Remove(path)

	line := strings.TrimSpace(string(data))
	if line == "" {
		return
	}
	cmd, err := Parse(line)
	if err != nil {
		f.logger.Warn("control filesource: rejected command", "path", path, "err", err)
		return
	}
	if f.Dispatch != nil {
		f.Dispatch(cmd)
	}
}
