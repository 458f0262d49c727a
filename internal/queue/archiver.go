package queue

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/services/drive"
)

// ArchiveFolderName is the subfolder superseded artifacts are moved into
const ArchiveFolderName = "Archive"

// postFilePattern matches artifact names produced by ArtifactFileName,
// capturing the post number from the leading "Post {N}_" prefix
var postFilePattern = regexp.MustCompile(`^Post (\d+)_`)

// FolderLister is the slice of Drive the archiver needs beyond the resolver
type FolderLister interface {
	ListFiles(ctx context.Context, folderID string) ([]drive.File, error)
	MoveFile(ctx context.Context, fileID, oldParentID, newParentID string) error
}

// Archiver moves a dealer's artifacts for inactive posts into the dealer's
// Archive subfolder.
type Archiver struct {
	store    FolderLister
	resolver interfaces.FolderResolver
	logger   arbor.ILogger
}

// NewArchiver creates an archival sweep
func NewArchiver(store FolderLister, resolver interfaces.FolderResolver, logger arbor.ILogger) *Archiver {
	return &Archiver{
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
}

// Archive scans the dealer folder for video artifacts whose encoded post
// number is not in activePosts and moves them into {folderPath}/Archive,
// creating it if needed. One file's move failure never aborts the rest.
// Returns the number of files moved.
func (a *Archiver) Archive(ctx context.Context, dealerFolderPath string, activePosts map[int]bool) (int, error) {
	folderID, err := a.resolver.Resolve(ctx, dealerFolderPath)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve dealer folder: %w", err)
	}

	files, err := a.store.ListFiles(ctx, folderID)
	if err != nil {
		return 0, fmt.Errorf("failed to list dealer folder: %w", err)
	}

	var candidates []drive.File
	for _, f := range files {
		if !strings.HasPrefix(f.MimeType, "video/") {
			continue
		}
		post, ok := parsePostNumber(f.Name)
		if !ok || activePosts[post] {
			continue
		}
		candidates = append(candidates, f)
	}

	if len(candidates) == 0 {
		return 0, nil
	}

	archiveID, err := a.resolver.Resolve(ctx, dealerFolderPath+"/"+ArchiveFolderName)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve archive folder: %w", err)
	}

	moved := 0
	for _, f := range candidates {
		if err := a.store.MoveFile(ctx, f.ID, folderID, archiveID); err != nil {
			a.logger.Warn().Err(err).
				Str("file", f.Name).
				Str("folder", dealerFolderPath).
				Msg("Failed to archive artifact, continuing")
			continue
		}
		moved++
		a.logger.Debug().Str("file", f.Name).Msg("Artifact archived")
	}
	return moved, nil
}

// parsePostNumber extracts N from a "Post {N}_..." artifact name
func parsePostNumber(name string) (int, bool) {
	m := postFilePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	post, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return post, true
}
