package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Rishie123/billprocessor/config"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveService archives bill images into one Drive folder per party under a
// configured root folder.
type DriveService struct {
	files  *drive.FilesService
	rootID string
}

func NewDriveService(ctx context.Context, cfg *config.DriveConfig, opts ...option.ClientOption) (*DriveService, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &DriveService{
		files:  svc.Files,
		rootID: cfg.RootFolderID,
	}, nil
}

// EnsureFolder resolves the party folder under the archive root, creating it
// on first encounter. The name match is exact and case sensitive, unlike
// worksheet resolution, so "Acme" and "ACME" can end up with two folders but
// one shared sheet. Duplicate folders are possible; the first match wins.
func (s *DriveService) EnsureFolder(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("'%s' in parents and name = '%s' and mimeType = '%s' and trashed = false",
		s.rootID, escapeDriveQuery(name), folderMimeType)

	list, err := s.files.List().
		Context(ctx).
		Q(query).
		Spaces("drive").
		Fields("files(id, name)").
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to list folders: %w", err)
	}

	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	folder := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{s.rootID},
	}
	created, err := s.files.Create(folder).Context(ctx).Fields("id").Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}
	return created.Id, nil
}

// UploadBill stores the image in the party folder and returns the link a
// human can open to view it. Repeated uploads of the same filename create
// separate files side by side; nothing is overwritten.
func (s *DriveService) UploadBill(ctx context.Context, folderID, fileName string, data []byte, mimeType string) (string, error) {
	meta := &drive.File{
		Name:    fileName,
		Parents: []string{folderID},
	}

	created, err := s.files.Create(meta).
		Context(ctx).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		Fields("id, webViewLink").
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return created.WebViewLink, nil
}

// escapeDriveQuery escapes a name for use inside a Drive query literal.
func escapeDriveQuery(name string) string {
	name = strings.ReplaceAll(name, `\`, `\\`)
	return strings.ReplaceAll(name, `'`, `\'`)
}
