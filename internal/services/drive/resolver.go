package drive

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
)

// Resolver maps slash-delimited logical paths (e.g. "Dealers/Acme Heating")
// to Drive folder IDs under a fixed root, creating missing segments.
//
// Two defenses keep the folder tree duplicate-free:
//
//  1. In-process: concurrent Resolve calls for the same path collapse onto a
//     single in-flight resolution via a keyed wait map.
//  2. Cross-process: after creating a folder the resolver re-queries; if a
//     concurrent creator raced us, the oldest-created folder wins and our
//     own losing copy is deleted best-effort. The tree self-heals on the
//     next resolution even when that cleanup fails.
type Resolver struct {
	store  FolderStore
	rootID string
	logger arbor.ILogger

	mu       sync.Mutex
	inflight map[string]*resolution
}

type resolution struct {
	done     chan struct{}
	folderID string
	err      error
}

// NewResolver creates a folder path resolver rooted at rootFolderID.
func NewResolver(store FolderStore, rootFolderID string, logger arbor.ILogger) interfaces.FolderResolver {
	return &Resolver{
		store:    store,
		rootID:   rootFolderID,
		logger:   logger,
		inflight: make(map[string]*resolution),
	}
}

// Resolve returns the folder ID for the given path, creating every missing
// segment. Safe to call concurrently with the same path.
func (r *Resolver) Resolve(ctx context.Context, path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return r.rootID, nil
	}

	r.mu.Lock()
	if res, ok := r.inflight[path]; ok {
		r.mu.Unlock()
		select {
		case <-res.done:
			return res.folderID, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	res := &resolution{done: make(chan struct{})}
	r.inflight[path] = res
	r.mu.Unlock()

	res.folderID, res.err = r.resolvePath(ctx, path)

	// Remove the entry before signalling so late arrivals after a failure
	// start a fresh resolution instead of inheriting the error forever
	r.mu.Lock()
	delete(r.inflight, path)
	r.mu.Unlock()
	close(res.done)

	return res.folderID, res.err
}

func (r *Resolver) resolvePath(ctx context.Context, path string) (string, error) {
	currentID := r.rootID
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		id, err := r.resolveSegment(ctx, currentID, segment)
		if err != nil {
			// Callers retry the whole path, never resume mid-walk
			return "", fmt.Errorf("failed to resolve segment %q of %q: %w", segment, path, err)
		}
		currentID = id
	}
	return currentID, nil
}

func (r *Resolver) resolveSegment(ctx context.Context, parentID, name string) (string, error) {
	folders, err := r.store.FindFolders(ctx, parentID, name)
	if err != nil {
		return "", err
	}
	if len(folders) > 0 {
		return oldestFolder(folders).ID, nil
	}

	created, err := r.store.CreateFolder(ctx, parentID, name)
	if err != nil {
		return "", err
	}

	// Re-query immediately: another process may have observed "not found"
	// at the same time and also created this folder
	folders, err = r.store.FindFolders(ctx, parentID, name)
	if err != nil {
		return "", err
	}
	if len(folders) <= 1 {
		return created.ID, nil
	}

	winner := oldestFolder(folders)
	if winner.ID != created.ID {
		r.logger.Info().
			Str("name", name).
			Str("winner", winner.ID).
			Str("loser", created.ID).
			Msg("Concurrent folder creation detected, keeping oldest")

		if err := r.store.DeleteFile(ctx, created.ID); err != nil && !IsNotFound(err) {
			// Best-effort cleanup; the duplicate is harmless and a future
			// resolution of the same path repairs it
			r.logger.Warn().Err(err).Str("folder_id", created.ID).Msg("Failed to delete losing duplicate folder")
		}
	}
	return winner.ID, nil
}

// oldestFolder picks the deterministic winner among duplicates: earliest
// CreatedTime, ties broken by ID so every process agrees.
func oldestFolder(folders []File) File {
	winner := folders[0]
	for _, f := range folders[1:] {
		if f.CreatedTime.Before(winner.CreatedTime) ||
			(f.CreatedTime.Equal(winner.CreatedTime) && f.ID < winner.ID) {
			winner = f
		}
	}
	return winner
}
