package queue

import (
	"context"
	"testing"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/models"
)

func makeJob(id, batchID string, status models.JobStatus) *models.RenderJob {
	return &models.RenderJob{
		ID:         id,
		BatchID:    batchID,
		DealerNo:   "d-" + id,
		DealerName: "Dealer " + id,
		PostNumber: 7,
		TemplateID: "tmpl-1",
		Status:     status,
	}
}

func TestComputeBatchState(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []models.JobStatus
		wantStatus models.BatchStatus
	}{
		{
			name:       "all pending",
			statuses:   []models.JobStatus{models.JobStatusPending, models.JobStatusPending},
			wantStatus: models.BatchStatusQueued,
		},
		{
			name:       "mixed in flight",
			statuses:   []models.JobStatus{models.JobStatusCompleted, models.JobStatusProcessing, models.JobStatusPending},
			wantStatus: models.BatchStatusProcessing,
		},
		{
			name:       "all completed",
			statuses:   []models.JobStatus{models.JobStatusCompleted, models.JobStatusCompleted},
			wantStatus: models.BatchStatusCompleted,
		},
		{
			name:       "all failed",
			statuses:   []models.JobStatus{models.JobStatusFailed, models.JobStatusFailed},
			wantStatus: models.BatchStatusFailed,
		},
		{
			name:       "two succeed one fails",
			statuses:   []models.JobStatus{models.JobStatusCompleted, models.JobStatusCompleted, models.JobStatusFailed},
			wantStatus: models.BatchStatusPartialFailure,
		},
		{
			name:       "empty batch stays queued",
			statuses:   nil,
			wantStatus: models.BatchStatusQueued,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var jobs []*models.RenderJob
			for i, status := range tt.statuses {
				jobs = append(jobs, makeJob(string(rune('a'+i)), "b1", status))
			}

			state := ComputeBatchState(jobs)
			if state.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", state.Status, tt.wantStatus)
			}
			if state.Completed+state.Failed+state.Pending+state.Processing != len(jobs) {
				t.Errorf("counters sum to %d, want %d",
					state.Completed+state.Failed+state.Pending+state.Processing, len(jobs))
			}
		})
	}
}

func TestComputeBatchStateRollups(t *testing.T) {
	completed1 := makeJob("a", "b1", models.JobStatusCompleted)
	completed1.Metadata = &models.RenderMetadata{SizeBytes: 1000, DurationSeconds: 10, CostUnits: 2}
	completed2 := makeJob("b", "b1", models.JobStatusCompleted)
	completed2.Metadata = &models.RenderMetadata{SizeBytes: 3000, DurationSeconds: 30, CostUnits: 4}
	failed := makeJob("c", "b1", models.JobStatusFailed)

	state := ComputeBatchState([]*models.RenderJob{completed1, completed2, failed})

	if state.TotalBytes != 4000 {
		t.Errorf("TotalBytes = %d, want 4000", state.TotalBytes)
	}
	if state.TotalCostUnits != 6 {
		t.Errorf("TotalCostUnits = %v, want 6", state.TotalCostUnits)
	}
	if state.AvgRenderSeconds != 20 {
		t.Errorf("AvgRenderSeconds = %v, want 20", state.AvgRenderSeconds)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	agg := NewAggregator(storage, testLogger())

	batch := models.NewRenderBatch("b1", 7, "tmpl-1", 3)
	if err := storage.BatchStorage().CreateBatch(ctx, batch); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	for _, job := range []*models.RenderJob{
		makeJob("j1", "b1", models.JobStatusCompleted),
		makeJob("j2", "b1", models.JobStatusCompleted),
		makeJob("j3", "b1", models.JobStatusFailed),
	} {
		if err := storage.JobStorage().CreateJob(ctx, job); err != nil {
			t.Fatalf("create job: %v", err)
		}
	}

	// Recompute repeatedly: duplicate webhook deliveries re-trigger this and
	// the counters must come out identical, never accumulated.
	for i := 0; i < 3; i++ {
		if err := agg.Recompute(ctx, "b1"); err != nil {
			t.Fatalf("recompute %d: %v", i, err)
		}
	}

	got, err := storage.BatchStorage().GetBatch(ctx, "b1")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if got.CompletedJobs != 2 || got.FailedJobs != 1 || got.PendingJobs != 0 || got.ProcessingJobs != 0 {
		t.Errorf("counters = %d/%d/%d/%d, want 2/1/0/0",
			got.CompletedJobs, got.FailedJobs, got.PendingJobs, got.ProcessingJobs)
	}
	if got.Status != models.BatchStatusPartialFailure {
		t.Errorf("status = %s, want %s", got.Status, models.BatchStatusPartialFailure)
	}
	if got.CompletedAt == nil {
		t.Error("terminal batch missing CompletedAt")
	}
	if got.StartedAt == nil {
		t.Error("non-queued batch missing StartedAt")
	}
}

func TestRecomputeSetsTimestampsOnce(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	agg := NewAggregator(storage, testLogger())

	batch := models.NewRenderBatch("b1", 7, "tmpl-1", 1)
	if err := storage.BatchStorage().CreateBatch(ctx, batch); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if err := storage.JobStorage().CreateJob(ctx, makeJob("j1", "b1", models.JobStatusCompleted)); err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := agg.Recompute(ctx, "b1"); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	first, _ := storage.BatchStorage().GetBatch(ctx, "b1")

	if err := agg.Recompute(ctx, "b1"); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	second, _ := storage.BatchStorage().GetBatch(ctx, "b1")

	if !first.CompletedAt.Equal(*second.CompletedAt) {
		t.Error("CompletedAt changed on idempotent recompute")
	}
	if !first.StartedAt.Equal(*second.StartedAt) {
		t.Error("StartedAt changed on idempotent recompute")
	}
}
