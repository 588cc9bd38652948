package lifeops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lifeops-dev/lifeops/internal/remote"
)

const mirrorTestSettle = 20 * time.Millisecond

func mirrorHarness(t *testing.T) (*Mirror, *fakeRemote, *fsnotify.Watcher, string) {
	t.Helper()
	fake := newFakeRemote()
	store, _ := newTestDocumentStore(fake)
	root := t.TempDir()
	for _, entry := range docTypeFolders {
		if err := os.MkdirAll(filepath.Join(root, string(entry.Type)), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	t.Cleanup(func() { watcher.Close() })
	mirror := NewMirror(store, root, nil)
	mirror.settle = mirrorTestSettle
	t.Cleanup(mirror.stopPending)
	return mirror, fake, watcher, root
}

func writeMirrorFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func uploadedFiles(fake *fakeRemote) map[string]string {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	files := map[string]string{}
	for _, file := range fake.files {
		if file.mime != remote.MimeFolder && !file.trashed {
			files[file.name] = string(file.content)
		}
	}
	return files
}

func waitForUploads(t *testing.T, fake *fakeRemote, want int) map[string]string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		files := uploadedFiles(fake)
		if len(files) >= want {
			return files
		}
		if time.Now().After(deadline) {
			t.Fatalf("uploads: %v, want %d", files, want)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestMirrorUploadsDroppedFile(t *testing.T) {
	mirror, fake, watcher, root := mirrorHarness(t)
	path := filepath.Join(root, "resume", "resume-2025.pdf")
	writeMirrorFile(t, path, "%PDF-1.4")

	mirror.handleEvent(context.Background(), watcher, fsnotify.Event{Name: path, Op: fsnotify.Create})

	files := waitForUploads(t, fake, 1)
	if files["resume-2025.pdf"] != "%PDF-1.4" {
		t.Fatalf("uploaded: %v", files)
	}
	mirror.mu.Lock()
	remaining := len(mirror.pending)
	mirror.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("%d timers left pending", remaining)
	}
}

func TestMirrorUploadsLastWriteInBurst(t *testing.T) {
	mirror, fake, watcher, root := mirrorHarness(t)
	path := filepath.Join(root, "career", "cover.txt")
	ctx := context.Background()

	writeMirrorFile(t, path, "draft one")
	mirror.handleEvent(ctx, watcher, fsnotify.Event{Name: path, Op: fsnotify.Write})
	writeMirrorFile(t, path, "draft two")
	mirror.handleEvent(ctx, watcher, fsnotify.Event{Name: path, Op: fsnotify.Write})

	files := waitForUploads(t, fake, 1)
	if files["cover.txt"] != "draft two" {
		t.Fatalf("uploaded content: %q", files["cover.txt"])
	}
	time.Sleep(3 * mirrorTestSettle)
	if files := uploadedFiles(fake); len(files) != 1 {
		t.Fatalf("%d uploads for one save burst", len(files))
	}
}

func TestMirrorSkipsDotfilesAndForeignDirs(t *testing.T) {
	mirror, fake, watcher, root := mirrorHarness(t)
	ctx := context.Background()

	dotfile := filepath.Join(root, "resume", ".resume.pdf.swp")
	writeMirrorFile(t, dotfile, "x")
	mirror.handleEvent(ctx, watcher, fsnotify.Event{Name: dotfile, Op: fsnotify.Create})

	foreignDir := filepath.Join(root, "scratch")
	if err := os.MkdirAll(foreignDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	foreign := filepath.Join(foreignDir, "notes.txt")
	writeMirrorFile(t, foreign, "x")
	mirror.handleEvent(ctx, watcher, fsnotify.Event{Name: foreign, Op: fsnotify.Create})

	time.Sleep(3 * mirrorTestSettle)
	if files := uploadedFiles(fake); len(files) != 0 {
		t.Fatalf("unexpected uploads: %v", files)
	}
}

func TestMirrorSkipsEmptyFiles(t *testing.T) {
	mirror, fake, watcher, root := mirrorHarness(t)
	path := filepath.Join(root, "project", "empty.md")
	writeMirrorFile(t, path, "")

	mirror.handleEvent(context.Background(), watcher, fsnotify.Event{Name: path, Op: fsnotify.Create})
	time.Sleep(3 * mirrorTestSettle)
	if files := uploadedFiles(fake); len(files) != 0 {
		t.Fatalf("empty file uploaded: %v", files)
	}
}
