package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	MimeFolder      = "application/vnd.google-apps.folder"
	MimeDocument    = "application/vnd.google-apps.document"
	MimeSpreadsheet = "application/vnd.google-apps.spreadsheet"
)

type DriveFile struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name,omitempty"`
	MimeType     string   `json:"mimeType,omitempty"`
	CreatedTime  string   `json:"createdTime,omitempty"`
	ModifiedTime string   `json:"modifiedTime,omitempty"`
	Parents      []string `json:"parents,omitempty"`
	Trashed      bool     `json:"trashed,omitempty"`
}

// GetFile is the cheap existence probe for a cached folder or file id.
func (c *Client) GetFile(ctx context.Context, fileID string) (DriveFile, error) {
	endpoint := fmt.Sprintf("%s/files/%s?fields=id,name,mimeType,trashed,parents", c.driveBase, url.PathEscape(fileID))
	var out DriveFile
	if err := c.doJSON(ctx, "drive", http.MethodGet, endpoint, nil, &out); err != nil {
		return DriveFile{}, err
	}
	return out, nil
}

// SearchFiles runs a files.list query. orderBy may be empty; callers that
// need deterministic duplicate selection pass "createdTime".
func (c *Client) SearchFiles(ctx context.Context, query, orderBy string) ([]DriveFile, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("fields", "files(id,name,mimeType,createdTime,modifiedTime,parents)")
	if orderBy != "" {
		q.Set("orderBy", orderBy)
	}
	endpoint := fmt.Sprintf("%s/files?%s", c.driveBase, q.Encode())
	var out struct {
		Files []DriveFile `json:"files"`
	}
	if err := c.doJSON(ctx, "drive", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// ListChildren lists non-trashed children of a folder, optionally filtered
// by mime type.
func (c *Client) ListChildren(ctx context.Context, folderID, mimeType string) ([]DriveFile, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false", escapeQueryTerm(folderID))
	if mimeType != "" {
		query += fmt.Sprintf(" and mimeType='%s'", mimeType)
	}
	return c.SearchFiles(ctx, query, "modifiedTime desc")
}

func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := DriveFile{Name: name, MimeType: MimeFolder}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	var out DriveFile
	endpoint := c.driveBase + "/files"
	if err := c.doJSON(ctx, "drive", http.MethodPost, endpoint, meta, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateFile creates a file from metadata, with an optional media payload
// (multipart upload when content is non-empty).
func (c *Client) CreateFile(ctx context.Context, meta DriveFile, content []byte, contentType string) (DriveFile, error) {
	var out DriveFile
	if len(content) == 0 {
		endpoint := c.driveBase + "/files"
		if err := c.doJSON(ctx, "drive", http.MethodPost, endpoint, meta, &out); err != nil {
			return DriveFile{}, err
		}
		return out, nil
	}
	endpoint := c.uploadBase + "/files?uploadType=multipart"
	if err := c.doMultipart(ctx, "drive", http.MethodPost, endpoint, meta, content, contentType, &out); err != nil {
		return DriveFile{}, err
	}
	return out, nil
}

func (c *Client) RenameFile(ctx context.Context, fileID, name string) error {
	endpoint := fmt.Sprintf("%s/files/%s", c.driveBase, url.PathEscape(fileID))
	return c.doJSON(ctx, "drive", http.MethodPatch, endpoint, map[string]string{"name": name}, nil)
}

func (c *Client) MoveFile(ctx context.Context, fileID, addParent, removeParent string) error {
	q := url.Values{}
	if addParent != "" {
		q.Set("addParents", addParent)
	}
	if removeParent != "" {
		q.Set("removeParents", removeParent)
	}
	endpoint := fmt.Sprintf("%s/files/%s?%s", c.driveBase, url.PathEscape(fileID), q.Encode())
	return c.doJSON(ctx, "drive", http.MethodPatch, endpoint, map[string]any{}, nil)
}

// TrashFile soft-deletes; nothing in this codebase hard-deletes remote data.
func (c *Client) TrashFile(ctx context.Context, fileID string) error {
	endpoint := fmt.Sprintf("%s/files/%s", c.driveBase, url.PathEscape(fileID))
	return c.doJSON(ctx, "drive", http.MethodPatch, endpoint, map[string]bool{"trashed": true}, nil)
}

// FolderQuery builds the files.list query for folders with a given name,
// optionally scoped to a parent.
func FolderQuery(name, parentID string) string {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQueryTerm(name), MimeFolder)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", escapeQueryTerm(parentID))
	}
	return query
}

// FileByNameQuery builds the files.list query for non-folder files by exact
// name and mime type.
func FileByNameQuery(name, mimeType string) string {
	return fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQueryTerm(name), mimeType)
}

func escapeQueryTerm(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	return strings.ReplaceAll(term, `'`, `\'`)
}
