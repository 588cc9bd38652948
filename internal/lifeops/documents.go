package lifeops

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/lifeops-dev/lifeops/internal/remote"
)

const documentsRootName = "Job Documents"

type DocType string

const (
	DocTypeResume  DocType = "resume"
	DocTypeCareer  DocType = "career"
	DocTypeProject DocType = "project"
)

// docTypeFolders maps each document type to its subfolder name under the
// root; declaration order fixes the sync order.
var docTypeFolders = []struct {
	Type DocType
	Name string
}{
	{DocTypeResume, "Resumes"},
	{DocTypeCareer, "Career"},
	{DocTypeProject, "Projects"},
}

func docTypeValid(t DocType) bool {
	for _, entry := range docTypeFolders {
		if entry.Type == t {
			return true
		}
	}
	return false
}

// Document is one file in the mirrored folder tree.
type Document struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Type     DocType `json:"type"`
	MimeType string  `json:"mimeType,omitempty"`
	Created  string  `json:"created,omitempty"`
	Modified string  `json:"modified,omitempty"`
	FolderID string  `json:"folderId"`
}

// DocumentStore mirrors the job-document folder tree: one root container
// with exactly one canonical subfolder per declared type. Duplicate
// subfolders (like duplicate roots) are merged by the resolver on sync.
type DocumentStore struct {
	drive    DriveClient
	resolver *Resolver
	cache    Cache
	notifier Notifier
	log      Logger

	mu         sync.Mutex
	syncing    bool
	saving     bool
	rootID     string
	subfolders map[DocType]string
	documents  []Document
}

type DocumentStoreOptions struct {
	Drive    DriveClient
	Resolver *Resolver
	Cache    Cache
	Notifier Notifier
	Logger   Logger
}

func NewDocumentStore(opts DocumentStoreOptions) *DocumentStore {
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &DocumentStore{
		drive:    opts.Drive,
		resolver: opts.Resolver,
		cache:    opts.Cache,
		notifier: opts.Notifier,
		log:      logger,
	}
}

func (s *DocumentStore) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

func (s *DocumentStore) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Documents returns the current mirrored list without touching the remote.
func (s *DocumentStore) Documents() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Document(nil), s.documents...)
}

// Sync resolves the root and every typed subfolder, then lists their
// contents. Duplicate containers found along the way are merged and
// trashed by the resolver.
func (s *DocumentStore) Sync(ctx context.Context) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncing = true
	defer func() { s.syncing = false }()

	// Sync re-resolves the whole tree so duplicate subfolders that
	// appeared since the last pass get merged, not just on the first one.
	if err := s.ensureTree(ctx, true); err != nil {
		return nil, err
	}

	documents := make([]Document, 0)
	for _, entry := range docTypeFolders {
		folderID := s.subfolders[entry.Type]
		children, err := s.drive.ListChildren(ctx, folderID, "")
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if child.MimeType == remote.MimeFolder {
				continue
			}
			documents = append(documents, Document{
				ID:       child.ID,
				Title:    child.Name,
				Type:     entry.Type,
				MimeType: child.MimeType,
				Created:  child.CreatedTime,
				Modified: child.ModifiedTime,
				FolderID: folderID,
			})
		}
	}
	s.documents = documents
	s.notify()
	return append([]Document(nil), documents...), nil
}

// Create uploads a new document into the subfolder for its type. Empty
// content creates a metadata-only file (a blank native document).
func (s *DocumentStore) Create(ctx context.Context, title string, docType DocType, content []byte, contentType string) (Document, error) {
	if strings.TrimSpace(title) == "" || !docTypeValid(docType) {
		return Document{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = true
	defer func() { s.saving = false }()

	if err := s.ensureTree(ctx, false); err != nil {
		return Document{}, err
	}
	folderID := s.subfolders[docType]

	meta := remote.DriveFile{Name: title, Parents: []string{folderID}}
	if len(content) == 0 {
		meta.MimeType = remote.MimeDocument
	}
	created, err := s.drive.CreateFile(ctx, meta, content, contentType)
	if err != nil {
		return Document{}, err
	}

	document := Document{
		ID:       created.ID,
		Title:    title,
		Type:     docType,
		MimeType: created.MimeType,
		Created:  created.CreatedTime,
		Modified: created.ModifiedTime,
		FolderID: folderID,
	}
	s.documents = append(s.documents, document)
	s.notify()
	return document, nil
}

func (s *DocumentStore) Rename(ctx context.Context, documentID, title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = true
	defer func() { s.saving = false }()

	index := s.indexOf(documentID)
	if index < 0 {
		return ErrNotFound
	}
	if err := s.drive.RenameFile(ctx, documentID, title); err != nil {
		return err
	}
	s.documents[index].Title = title
	s.notify()
	return nil
}

// Delete trashes the file; nothing is ever hard-deleted.
func (s *DocumentStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = true
	defer func() { s.saving = false }()

	index := s.indexOf(documentID)
	if index < 0 {
		return ErrNotFound
	}
	if err := s.drive.TrashFile(ctx, documentID); err != nil {
		return err
	}
	s.documents = append(s.documents[:index], s.documents[index+1:]...)
	s.notify()
	return nil
}

// Upload is the mirror path: place a local file's bytes into the subfolder
// for docType without touching the in-memory list (the next Sync picks the
// file up).
func (s *DocumentStore) Upload(ctx context.Context, title string, docType DocType, content []byte, contentType string) error {
	if strings.TrimSpace(title) == "" || !docTypeValid(docType) {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureTree(ctx, false); err != nil {
		return err
	}
	meta := remote.DriveFile{Name: title, Parents: []string{s.subfolders[docType]}}
	_, err := s.drive.CreateFile(ctx, meta, content, contentType)
	return err
}

// documentTree is the cached shape of the resolved folder tree. The
// subfolder ids are only valid for the root they were resolved under.
type documentTree struct {
	RootID     string             `json:"rootId"`
	Subfolders map[DocType]string `json:"subfolders"`
}

// ensureTree resolves the root folder on every call (the resolver's probe
// rediscovers a root trashed out-of-band) and the typed subfolders once
// per root, warm-started from the cache across restarts. force skips the
// memo and the cache so duplicate subfolders get merged. Callers hold the
// mutex.
func (s *DocumentStore) ensureTree(ctx context.Context, force bool) error {
	rootID, err := s.resolver.Folder(ctx, KeyDocumentsRootID, documentsRootName, "")
	if err != nil {
		return err
	}
	if !force {
		if rootID == s.rootID && len(s.subfolders) == len(docTypeFolders) {
			return nil
		}
		if tree, ok := s.loadTree(); ok && tree.RootID == rootID && len(tree.Subfolders) == len(docTypeFolders) {
			s.rootID = rootID
			s.subfolders = tree.Subfolders
			return nil
		}
	}
	subfolders := make(map[DocType]string, len(docTypeFolders))
	for _, entry := range docTypeFolders {
		// Subfolder ids live under the root container, so they carry no
		// cache key of their own; re-resolution after a root change finds
		// or recreates them.
		folderID, err := s.resolver.Folder(ctx, "", entry.Name, rootID)
		if err != nil {
			return err
		}
		subfolders[entry.Type] = folderID
	}
	if data, err := json.Marshal(documentTree{RootID: rootID, Subfolders: subfolders}); err == nil {
		if err := s.cache.Put(KeyDocumentsSubfolders, string(data)); err != nil {
			return err
		}
	}
	s.rootID = rootID
	s.subfolders = subfolders
	return nil
}

func (s *DocumentStore) loadTree() (documentTree, bool) {
	raw, ok, err := s.cache.Get(KeyDocumentsSubfolders)
	if err != nil || !ok || raw == "" {
		return documentTree{}, false
	}
	var tree documentTree
	if json.Unmarshal([]byte(raw), &tree) != nil {
		return documentTree{}, false
	}
	return tree, true
}

func (s *DocumentStore) indexOf(documentID string) int {
	for i, document := range s.documents {
		if document.ID == documentID {
			return i
		}
	}
	return -1
}

func (s *DocumentStore) notify() {
	if s.notifier != nil {
		s.notifier.Notify("documents")
	}
}
