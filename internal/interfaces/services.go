package interfaces

import (
	"context"
)

// RenderSubmission is the provider's acknowledgement of an accepted render
type RenderSubmission struct {
	RenderID string
	Status   string
}

// RenderStatus is the provider's view of an in-flight or finished render
type RenderStatus struct {
	Status string // "planned", "rendering", "succeeded", "failed"
	URL    string // Artifact CDN URL when succeeded
	Error  string // Provider error message when failed
}

// RendererClient - the external video renderer (Creatomate)
type RendererClient interface {
	// Submit requests an async render of templateID with the given text and
	// image substitutions, returning the provider's render identifier
	Submit(ctx context.Context, templateID string, modifications map[string]string) (*RenderSubmission, error)

	// GetStatus polls a render by provider identifier (backup path for
	// dropped webhooks)
	GetStatus(ctx context.Context, renderID string) (*RenderStatus, error)

	// Download fetches the finished artifact bytes from the provider CDN
	Download(ctx context.Context, url string) ([]byte, error)
}

// FolderResolver resolves slash-delimited logical paths to remote folder IDs,
// creating missing segments. Safe for concurrent use across goroutines and
// across independent process instances sharing the same backing store.
type FolderResolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

// ScheduleSource supplies the post numbers that are currently active in the
// content schedule; artifacts for other posts are archived.
type ScheduleSource interface {
	ActivePostNumbers(ctx context.Context) (map[int]bool, error)
}

// SchedulerService manages periodic background tasks
type SchedulerService interface {
	Register(name, schedule string, handler func(ctx context.Context) error) error
	Start() error
	Stop() error
}
