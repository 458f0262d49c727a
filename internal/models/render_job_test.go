package models

import (
	"testing"
)

func processingJob(t *testing.T) *RenderJob {
	t.Helper()
	dealer := &Dealer{
		DealerNo:      "1001",
		DisplayName:   "Arctic Air",
		Phone:         "555-0100",
		LogoURL:       "https://cdn.example.com/1001.png",
		ProgramStatus: ProgramStatusFull,
	}
	job := NewRenderJob("j1", "b1", dealer, 7, "tmpl-1")
	job.MarkProcessing("r1")
	return job
}

func TestNewRenderJobDefaults(t *testing.T) {
	dealer := &Dealer{DealerNo: "1001", DisplayName: "Arctic Air"}
	job := NewRenderJob("j1", "b1", dealer, 7, "tmpl-1")

	if job.Status != JobStatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.DealerName != "Arctic Air" {
		t.Errorf("dealer name = %q, want display name denormalized", job.DealerName)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if err := job.Validate(); err != nil {
		t.Errorf("valid job failed validation: %v", err)
	}
}

func TestMarkProcessing(t *testing.T) {
	job := processingJob(t)

	if job.Status != JobStatusProcessing {
		t.Errorf("status = %s, want processing", job.Status)
	}
	if job.RenderID != "r1" {
		t.Errorf("render ID = %q, want r1", job.RenderID)
	}
	if job.ProcessingStartedAt == nil {
		t.Error("ProcessingStartedAt not set")
	}
}

func TestApplyFailureRetriesUntilCeiling(t *testing.T) {
	const maxRetries = 3
	job := processingJob(t)

	// First two failures requeue
	for attempt := 1; attempt <= 2; attempt++ {
		job.ApplyFailure("render error", maxRetries)
		if job.Status != JobStatusPending {
			t.Fatalf("attempt %d: status = %s, want pending", attempt, job.Status)
		}
		if job.RetryCount != attempt {
			t.Fatalf("attempt %d: retry count = %d", attempt, job.RetryCount)
		}
		if job.RenderID != "" || job.RenderURL != "" || job.ProcessingStartedAt != nil {
			t.Fatalf("attempt %d: provider identifiers not cleared", attempt)
		}
		job.MarkProcessing("r-next")
	}

	// Third failure hits the ceiling
	job.ApplyFailure("render error", maxRetries)
	if job.Status != JobStatusFailed {
		t.Errorf("status = %s, want failed at ceiling", job.Status)
	}
	if job.RetryCount != maxRetries {
		t.Errorf("retry count = %d, want %d", job.RetryCount, maxRetries)
	}
	if job.CompletedAt == nil {
		t.Error("failed job missing CompletedAt")
	}
	if !job.IsTerminal() {
		t.Error("failed job not terminal")
	}
}

func TestFailuresThenSuccessKeepsRetryCount(t *testing.T) {
	job := processingJob(t)

	job.ApplyFailure("transient error", 3)
	job.MarkProcessing("r2")
	job.ApplyFailure("transient error", 3)
	job.MarkProcessing("r3")

	meta := &RenderMetadata{SizeBytes: 100, DurationSeconds: 5, CostUnits: 1}
	job.MarkCompleted("file-1", "https://drive.example/file-1", "Dealers/Arctic Air/Post 7_Arctic Air.mp4", meta)

	if job.Status != JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2 (attempt history is preserved)", job.RetryCount)
	}
	if job.DriveFileID != "file-1" {
		t.Errorf("drive file ID = %q", job.DriveFileID)
	}
}

func TestResetRequiresTerminalState(t *testing.T) {
	job := processingJob(t)
	if err := job.Reset(); err == nil {
		t.Error("reset of processing job should fail")
	}

	job.ApplyFailure("boom", 1)
	if err := job.Reset(); err != nil {
		t.Fatalf("reset of failed job: %v", err)
	}

	if job.Status != JobStatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.RetryCount != 0 || job.LastError != "" || job.RenderID != "" {
		t.Error("reset did not clear retry state")
	}
	if job.CompletedAt != nil {
		t.Error("reset did not clear CompletedAt")
	}
}

func TestRenderJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RenderJob)
		wantErr bool
	}{
		{"valid", func(j *RenderJob) {}, false},
		{"missing id", func(j *RenderJob) { j.ID = "" }, true},
		{"missing batch", func(j *RenderJob) { j.BatchID = "" }, true},
		{"missing dealer", func(j *RenderJob) { j.DealerNo = "" }, true},
		{"missing template", func(j *RenderJob) { j.TemplateID = "" }, true},
		{"zero post number", func(j *RenderJob) { j.PostNumber = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := processingJob(t)
			tt.mutate(job)
			err := job.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDealerRenderReady(t *testing.T) {
	ready := &Dealer{DisplayName: "Arctic Air", Phone: "555-0100", LogoURL: "https://cdn.example.com/logo.png"}
	if !ready.RenderReady() {
		t.Error("complete dealer reported not ready")
	}

	for _, mutate := range []func(*Dealer){
		func(d *Dealer) { d.DisplayName = "" },
		func(d *Dealer) { d.Phone = "" },
		func(d *Dealer) { d.LogoURL = "" },
	} {
		d := *ready
		mutate(&d)
		if d.RenderReady() {
			t.Error("dealer with missing render field reported ready")
		}
	}
}
