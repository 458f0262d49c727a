package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/services/drive"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// memStorage is an in-memory StorageManager for exercising queue logic
// without a database
type memStorage struct {
	mu      sync.Mutex
	jobs    map[string]*models.RenderJob
	batches map[string]*models.RenderBatch
	dealers map[string]*models.Dealer
}

func newMemStorage() *memStorage {
	return &memStorage{
		jobs:    make(map[string]*models.RenderJob),
		batches: make(map[string]*models.RenderBatch),
		dealers: make(map[string]*models.Dealer),
	}
}

func (m *memStorage) JobStorage() interfaces.JobStorage       { return (*memJobStorage)(m) }
func (m *memStorage) BatchStorage() interfaces.BatchStorage   { return (*memBatchStorage)(m) }
func (m *memStorage) DealerStorage() interfaces.DealerStorage { return (*memDealerStorage)(m) }
func (m *memStorage) Close() error                            { return nil }

type memJobStorage memStorage

func (s *memJobStorage) CreateJob(ctx context.Context, job *models.RenderJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job already exists: %s", job.ID)
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *memJobStorage) GetJob(ctx context.Context, jobID string) (*models.RenderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	copied := *job
	return &copied, nil
}

func (s *memJobStorage) GetJobByRenderID(ctx context.Context, renderID string) (*models.RenderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.RenderID == renderID {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memJobStorage) GetPendingJobs(ctx context.Context, limit int) ([]*models.RenderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*models.RenderJob
	for _, job := range s.jobs {
		if job.Status == models.JobStatusPending {
			copied := *job
			pending = append(pending, &copied)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *memJobStorage) GetJobsByBatch(ctx context.Context, batchID string) ([]*models.RenderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []*models.RenderJob
	for _, job := range s.jobs {
		if job.BatchID == batchID {
			copied := *job
			jobs = append(jobs, &copied)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func (s *memJobStorage) GetStaleProcessingJobs(ctx context.Context, threshold time.Duration) ([]*models.RenderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-threshold)
	var stale []*models.RenderJob
	for _, job := range s.jobs {
		if job.Status == models.JobStatusProcessing && job.ProcessingStartedAt != nil && job.ProcessingStartedAt.Before(cutoff) {
			copied := *job
			stale = append(stale, &copied)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ID < stale[j].ID })
	return stale, nil
}

func (s *memJobStorage) UpdateJob(ctx context.Context, jobID string, mutate func(*models.RenderJob) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job not found: %s", jobID)
	}
	copied := *job
	if err := mutate(&copied); err != nil {
		return err
	}
	s.jobs[jobID] = &copied
	return nil
}

func (s *memJobStorage) CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, job := range s.jobs {
		if job.Status == status {
			count++
		}
	}
	return count, nil
}

type memBatchStorage memStorage

func (s *memBatchStorage) CreateBatch(ctx context.Context, batch *models.RenderBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[batch.ID]; exists {
		return fmt.Errorf("batch already exists: %s", batch.ID)
	}
	copied := *batch
	s.batches[batch.ID] = &copied
	return nil
}

func (s *memBatchStorage) GetBatch(ctx context.Context, batchID string) (*models.RenderBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch not found: %s", batchID)
	}
	copied := *batch
	return &copied, nil
}

func (s *memBatchStorage) SaveBatch(ctx context.Context, batch *models.RenderBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *batch
	s.batches[batch.ID] = &copied
	return nil
}

func (s *memBatchStorage) ListBatches(ctx context.Context, limit int) ([]*models.RenderBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var batches []*models.RenderBatch
	for _, batch := range s.batches {
		copied := *batch
		batches = append(batches, &copied)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].CreatedAt.After(batches[j].CreatedAt) })
	if limit > 0 && len(batches) > limit {
		batches = batches[:limit]
	}
	return batches, nil
}

type memDealerStorage memStorage

func (s *memDealerStorage) SaveDealer(ctx context.Context, dealer *models.Dealer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *dealer
	s.dealers[dealer.DealerNo] = &copied
	return nil
}

func (s *memDealerStorage) GetDealer(ctx context.Context, dealerNo string) (*models.Dealer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dealer, ok := s.dealers[dealerNo]
	if !ok {
		return nil, fmt.Errorf("dealer not found: %s", dealerNo)
	}
	copied := *dealer
	return &copied, nil
}

func (s *memDealerStorage) GetDealersByProgramStatus(ctx context.Context, programStatus string) ([]*models.Dealer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dealers []*models.Dealer
	for _, dealer := range s.dealers {
		if dealer.ProgramStatus == programStatus {
			copied := *dealer
			dealers = append(dealers, &copied)
		}
	}
	sort.Slice(dealers, func(i, j int) bool { return dealers[i].DealerNo < dealers[j].DealerNo })
	return dealers, nil
}

// fakeRenderer scripts provider responses per call
type fakeRenderer struct {
	mu          sync.Mutex
	submitCalls int
	submitFn    func(call int, templateID string, modifications map[string]string) (*interfaces.RenderSubmission, error)
	statusFn    func(renderID string) (*interfaces.RenderStatus, error)
	downloadFn  func(url string) ([]byte, error)
}

func (f *fakeRenderer) Submit(ctx context.Context, templateID string, modifications map[string]string) (*interfaces.RenderSubmission, error) {
	f.mu.Lock()
	f.submitCalls++
	call := f.submitCalls
	f.mu.Unlock()
	if f.submitFn != nil {
		return f.submitFn(call, templateID, modifications)
	}
	return &interfaces.RenderSubmission{RenderID: fmt.Sprintf("render-%d", call), Status: "planned"}, nil
}

func (f *fakeRenderer) GetStatus(ctx context.Context, renderID string) (*interfaces.RenderStatus, error) {
	if f.statusFn != nil {
		return f.statusFn(renderID)
	}
	return &interfaces.RenderStatus{Status: "rendering"}, nil
}

func (f *fakeRenderer) Download(ctx context.Context, url string) ([]byte, error) {
	if f.downloadFn != nil {
		return f.downloadFn(url)
	}
	return []byte("video-bytes"), nil
}

// fakeResolver maps logical paths straight to folder IDs
type fakeResolver struct {
	mu      sync.Mutex
	folders map[string]string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{folders: make(map[string]string)}
}

func (r *fakeResolver) Resolve(ctx context.Context, path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.folders[path]; ok {
		return id, nil
	}
	id := fmt.Sprintf("folder-%d", len(r.folders)+1)
	r.folders[path] = id
	return id, nil
}

// fakeDrive records uploads and serves folder listings for the archiver
type fakeDrive struct {
	mu      sync.Mutex
	uploads []uploadRecord
	files   map[string][]drive.File // folderID -> contents
	moves   []moveRecord
	moveErr error
}

type uploadRecord struct {
	folderID string
	name     string
	mimeType string
	size     int
}

type moveRecord struct {
	fileID    string
	oldParent string
	newParent string
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{files: make(map[string][]drive.File)}
}

func (d *fakeDrive) UploadFile(ctx context.Context, folderID, name, mimeType string, data []byte) (*drive.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uploads = append(d.uploads, uploadRecord{folderID: folderID, name: name, mimeType: mimeType, size: len(data)})
	return &drive.File{ID: fmt.Sprintf("file-%d", len(d.uploads)), Name: name, WebViewLink: "https://drive.example/" + name}, nil
}

func (d *fakeDrive) ListFiles(ctx context.Context, folderID string) ([]drive.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]drive.File{}, d.files[folderID]...), nil
}

func (d *fakeDrive) MoveFile(ctx context.Context, fileID, oldParentID, newParentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.moveErr != nil {
		return d.moveErr
	}
	d.moves = append(d.moves, moveRecord{fileID: fileID, oldParent: oldParentID, newParent: newParentID})
	return nil
}

// fakeSchedule serves a fixed active post set
type fakeSchedule struct {
	active map[int]bool
	err    error
}

func (s *fakeSchedule) ActivePostNumbers(ctx context.Context) (map[int]bool, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.active, nil
}

func testDealer(no, name string) *models.Dealer {
	return &models.Dealer{
		DealerNo:      no,
		DisplayName:   name,
		Phone:         "555-0100",
		Website:       "https://" + no + ".example.com",
		LogoURL:       "https://cdn.example.com/" + no + ".png",
		ProgramStatus: models.ProgramStatusFull,
		UpdatedAt:     time.Now(),
	}
}
