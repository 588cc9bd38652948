package lifeops

import (
	"context"
	"errors"
	"testing"

	"github.com/lifeops-dev/lifeops/internal/remote"
)

func newTestDocumentStore(fake *fakeRemote) (*DocumentStore, *MemoryCache) {
	cache := NewMemoryCache()
	resolver := NewResolver(fake, fake, cache, nil)
	store := NewDocumentStore(DocumentStoreOptions{
		Drive:    fake,
		Resolver: resolver,
		Cache:    cache,
	})
	return store, cache
}

func TestDocumentSyncBuildsTree(t *testing.T) {
	fake := newFakeRemote()
	store, cache := newTestDocumentStore(fake)

	documents, err := store.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(documents) != 0 {
		t.Fatalf("fresh tree holds %d documents", len(documents))
	}

	// Root plus one folder per type.
	folders := 0
	for _, file := range fake.files {
		if file.mime == remote.MimeFolder && !file.trashed {
			folders++
		}
	}
	if folders != len(docTypeFolders)+1 {
		t.Fatalf("%d folders, want %d", folders, len(docTypeFolders)+1)
	}
	if _, ok, _ := cache.Get(KeyDocumentsRootID); !ok {
		t.Fatal("root id not cached")
	}
	if _, ok, _ := cache.Get(KeyDocumentsSubfolders); !ok {
		t.Fatal("subfolder map not cached")
	}
}

func TestDocumentCreateAndSync(t *testing.T) {
	fake := newFakeRemote()
	store, _ := newTestDocumentStore(fake)
	ctx := context.Background()

	created, err := store.Create(ctx, "resume-2025.pdf", DocTypeResume, []byte("%PDF"), "application/pdf")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Type != DocTypeResume || created.FolderID == "" {
		t.Fatalf("created: %+v", created)
	}

	documents, err := store.Sync(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(documents) != 1 || documents[0].ID != created.ID || documents[0].Type != DocTypeResume {
		t.Fatalf("synced: %+v", documents)
	}
}

func TestDocumentCreateEmptyContent(t *testing.T) {
	fake := newFakeRemote()
	store, _ := newTestDocumentStore(fake)

	created, err := store.Create(context.Background(), "Cover letter", DocTypeCareer, nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.MimeType != remote.MimeDocument {
		t.Fatalf("empty content should create a native document, got %q", created.MimeType)
	}
}

func TestDocumentValidation(t *testing.T) {
	store, _ := newTestDocumentStore(newFakeRemote())
	ctx := context.Background()

	if _, err := store.Create(ctx, " ", DocTypeResume, nil, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank title: %v", err)
	}
	if _, err := store.Create(ctx, "x", DocType("invoices"), nil, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown type: %v", err)
	}
	if err := store.Rename(ctx, "missing", "y"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rename missing: %v", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestDocumentDeleteTrashes(t *testing.T) {
	fake := newFakeRemote()
	store, _ := newTestDocumentStore(fake)
	ctx := context.Background()

	created, err := store.Create(ctx, "old-resume.pdf", DocTypeResume, []byte("x"), "application/pdf")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	file, ok := fake.files[created.ID]
	if !ok || !file.trashed {
		t.Fatal("document should be trashed, not removed")
	}
	if len(store.Documents()) != 0 {
		t.Fatalf("local list: %+v", store.Documents())
	}
}

func TestDocumentSyncMergesDuplicateRoots(t *testing.T) {
	fake := newFakeRemote()
	store, _ := newTestDocumentStore(fake)
	ctx := context.Background()

	canonical, _ := fake.CreateFolder(ctx, documentsRootName, "")
	duplicate, _ := fake.CreateFolder(ctx, documentsRootName, "")
	stray, _ := fake.CreateFile(ctx, remote.DriveFile{Name: "stray.pdf", Parents: []string{duplicate}}, []byte("x"), "application/pdf")

	if _, err := store.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !fake.files[duplicate].trashed {
		t.Fatal("duplicate root not trashed")
	}
	if !hasParent(fake.files[stray.ID], canonical) {
		t.Fatalf("stray file parents: %v", fake.files[stray.ID].parents)
	}
}

func TestDocumentSyncMergesLateDuplicateSubfolder(t *testing.T) {
	fake := newFakeRemote()
	store, cache := newTestDocumentStore(fake)
	ctx := context.Background()

	if _, err := store.Sync(ctx); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	rootID, _, _ := cache.Get(KeyDocumentsRootID)
	canonical := store.subfolders[DocTypeResume]

	// A duplicate subfolder appears after the tree was first resolved.
	duplicate, _ := fake.CreateFolder(ctx, "Resumes", rootID)
	stray, _ := fake.CreateFile(ctx, remote.DriveFile{Name: "late.pdf", Parents: []string{duplicate}}, []byte("x"), "application/pdf")

	documents, err := store.Sync(ctx)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if !fake.files[duplicate].trashed {
		t.Fatal("duplicate subfolder not trashed on a later sync")
	}
	if !hasParent(fake.files[stray.ID], canonical) {
		t.Fatalf("stray file parents: %v", fake.files[stray.ID].parents)
	}
	if len(documents) != 1 || documents[0].Title != "late.pdf" {
		t.Fatalf("after merge: %+v", documents)
	}
}

func TestDocumentTreeWarmStartsFromCache(t *testing.T) {
	fake := newFakeRemote()
	first, cache := newTestDocumentStore(fake)
	ctx := context.Background()

	if _, err := first.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}

	// A fresh process with the same cache must reuse the resolved tree
	// instead of searching for every subfolder again.
	resolver := NewResolver(fake, fake, cache, nil)
	second := NewDocumentStore(DocumentStoreOptions{Drive: fake, Resolver: resolver, Cache: cache})
	fake.mu.Lock()
	fake.searchCalls = 0
	fake.mu.Unlock()

	if err := second.Upload(ctx, "warm.pdf", DocTypeResume, []byte("x"), "application/pdf"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	fake.mu.Lock()
	searches := fake.searchCalls
	fake.mu.Unlock()
	if searches != 0 {
		t.Fatalf("%d folder searches on a warm start", searches)
	}
	if second.subfolders[DocTypeResume] != first.subfolders[DocTypeResume] {
		t.Fatal("warm start resolved a different subfolder")
	}
}

func TestDocumentStoreRecoversTrashedRoot(t *testing.T) {
	fake := newFakeRemote()
	store, _ := newTestDocumentStore(fake)
	ctx := context.Background()

	if _, err := store.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	oldRoot := store.rootID

	fake.mu.Lock()
	fake.files[oldRoot].trashed = true
	fake.mu.Unlock()

	if err := store.Upload(ctx, "after.pdf", DocTypeProject, []byte("x"), "application/pdf"); err != nil {
		t.Fatalf("upload after trash: %v", err)
	}
	if store.rootID == oldRoot {
		t.Fatalf("still bound to trashed root %s", oldRoot)
	}
	documents, err := store.Sync(ctx)
	if err != nil {
		t.Fatalf("sync after recovery: %v", err)
	}
	if len(documents) != 1 || documents[0].Title != "after.pdf" {
		t.Fatalf("after recovery: %+v", documents)
	}
}

func TestDocumentUploadSkipsLocalList(t *testing.T) {
	fake := newFakeRemote()
	store, _ := newTestDocumentStore(fake)
	ctx := context.Background()

	if err := store.Upload(ctx, "dropped.pdf", DocTypeProject, []byte("x"), "application/pdf"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(store.Documents()) != 0 {
		t.Fatal("upload should not touch the local list")
	}
	documents, err := store.Sync(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(documents) != 1 || documents[0].Title != "dropped.pdf" || documents[0].Type != DocTypeProject {
		t.Fatalf("after sync: %+v", documents)
	}
}
