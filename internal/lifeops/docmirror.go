package lifeops

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const mirrorSettleWindow = 2 * time.Second

// Mirror watches a local directory whose first-level subdirectories are
// named after document types; files dropped into them are uploaded to the
// matching remote subfolder. The reverse direction is not mirrored.
type Mirror struct {
	store  *DocumentStore
	root   string
	log    Logger
	settle time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewMirror(store *DocumentStore, root string, log Logger) *Mirror {
	if log == nil {
		log = nopLogger{}
	}
	return &Mirror{
		store:   store,
		root:    strings.TrimSpace(root),
		log:     log,
		settle:  mirrorSettleWindow,
		pending: map[string]*time.Timer{},
	}
}

// Run blocks until ctx is cancelled. Type directories missing at start are
// created so the watch covers them from the beginning.
func (m *Mirror) Run(ctx context.Context) error {
	if m.root == "" {
		return ErrInvalidInput
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	defer m.stopPending()

	for _, entry := range docTypeFolders {
		dir := filepath.Join(m.root, string(entry.Type))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}
	if err := watcher.Add(m.root); err != nil {
		return err
	}
	m.log.Printf("mirroring %s", m.root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			m.handleEvent(ctx, watcher, event)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Printf("mirror watch error: %v", watchErr)
		}
	}
}

func (m *Mirror) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		// A new first-level directory only matters if it names a type.
		if filepath.Dir(event.Name) == m.root && docTypeValid(DocType(filepath.Base(event.Name))) {
			if err := watcher.Add(event.Name); err != nil {
				m.log.Printf("mirror: watch %s: %v", event.Name, err)
			}
		}
		return
	}

	docType := DocType(filepath.Base(filepath.Dir(event.Name)))
	if !docTypeValid(docType) {
		return
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}
	m.scheduleUpload(ctx, event.Name, docType)
}

// scheduleUpload arms, or re-arms, the per-file timer. Editors fire
// several writes while saving; the upload runs once the file has been
// quiet for the whole settle window, so the last write is the one that
// ships.
func (m *Mirror) scheduleUpload(ctx context.Context, path string, docType DocType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok := m.pending[path]; ok {
		timer.Reset(m.settle)
		return
	}
	m.pending[path] = time.AfterFunc(m.settle, func() {
		m.mu.Lock()
		delete(m.pending, path)
		m.mu.Unlock()
		m.upload(ctx, path, docType)
	})
}

func (m *Mirror) upload(ctx context.Context, path string, docType DocType) {
	content, err := os.ReadFile(path)
	if err != nil || len(content) == 0 {
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	title := filepath.Base(path)
	if err := m.store.Upload(ctx, title, docType, content, contentType); err != nil {
		m.log.Printf("mirror: upload %s: %v", path, err)
		return
	}
	m.log.Printf("mirror: uploaded %s as %s", path, docType)
}

func (m *Mirror) stopPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, timer := range m.pending {
		timer.Stop()
		delete(m.pending, path)
	}
}
