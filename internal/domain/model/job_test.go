package model

import (
	"encoding/json"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestJobStatus_Valid(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, true},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatus("running"), false},
		{JobStatus(""), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("Valid(%q): expected %v, got %v", tt.status, tt.want, got)
		}
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	if JobStatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if !JobStatusCompleted.Terminal() {
		t.Error("completed must be terminal")
	}
	if !JobStatusFailed.Terminal() {
		t.Error("failed must be terminal")
	}
}

func TestSubmitJobRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SubmitJobRequest
		wantErr bool
	}{
		{
			name: "valid minimal",
			req:  SubmitJobRequest{SubjectReference: "s3://bucket/img.jpg"},
		},
		{
			name: "valid with parameters",
			req: SubmitJobRequest{
				SubjectReference: "s3://bucket/img.jpg",
				Parameters:       json.RawMessage(`{"top_k": 10}`),
			},
		},
		{
			name:    "missing subject reference",
			req:     SubmitJobRequest{},
			wantErr: true,
		},
		{
			name:    "whitespace subject reference",
			req:     SubmitJobRequest{SubjectReference: "   "},
			wantErr: true,
		},
		{
			name: "malformed parameters",
			req: SubmitJobRequest{
				SubjectReference: "s3://bucket/img.jpg",
				Parameters:       json.RawMessage(`not json`),
			},
			wantErr: true,
		},
		{
			name: "negative top_k",
			req: SubmitJobRequest{
				SubjectReference: "s3://bucket/img.jpg",
				Parameters:       json.RawMessage(`{"top_k": -1}`),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(): expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompleteJobRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CompleteJobRequest
		wantErr bool
	}{
		{
			name: "success outcome",
			req: CompleteJobRequest{
				CorrelationID: "abc",
				Result:        json.RawMessage(`{"matches": []}`),
			},
		},
		{
			name: "failure outcome",
			req: CompleteJobRequest{
				CorrelationID: "abc",
				FailureReason: strPtr("no face detected"),
			},
		},
		{
			name:    "missing correlation id",
			req:     CompleteJobRequest{Result: json.RawMessage(`{}`)},
			wantErr: true,
		},
		{
			name:    "neither outcome",
			req:     CompleteJobRequest{CorrelationID: "abc"},
			wantErr: true,
		},
		{
			name: "both outcomes",
			req: CompleteJobRequest{
				CorrelationID: "abc",
				Result:        json.RawMessage(`{}`),
				FailureReason: strPtr("boom"),
			},
			wantErr: true,
		},
		{
			name: "blank failure reason counts as absent",
			req: CompleteJobRequest{
				CorrelationID: "abc",
				FailureReason: strPtr("  "),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(): expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompleteJobRequest_Succeeded(t *testing.T) {
	success := CompleteJobRequest{CorrelationID: "x", Result: json.RawMessage(`{}`)}
	if !success.Succeeded() {
		t.Error("expected success outcome")
	}

	failure := CompleteJobRequest{CorrelationID: "x", FailureReason: strPtr("boom")}
	if failure.Succeeded() {
		t.Error("expected failure outcome")
	}
}

func TestViewOf(t *testing.T) {
	now := time.Now()
	job := &SearchJob{
		CorrelationID: "abc",
		Status:        JobStatusCompleted,
		ResultPayload: json.RawMessage(`{"matches":[{"face_id":"f1","suspect_id":"s1","distance":0.12}]}`),
		CreatedAt:     now.Add(-time.Minute),
		CompletedAt:   &now,
	}

	view := ViewOf(job)

	if view.CorrelationID != "abc" {
		t.Errorf("unexpected correlation id: %q", view.CorrelationID)
	}
	if view.Status != JobStatusCompleted {
		t.Errorf("unexpected status: %q", view.Status)
	}
	if string(view.Result) != string(job.ResultPayload) {
		t.Errorf("result payload not carried through: %s", view.Result)
	}
	if view.CompletedAt == nil || !view.CompletedAt.Equal(now) {
		t.Error("completed_at not carried through")
	}
	if view.FailureReason != nil {
		t.Error("failure reason must be absent for completed jobs")
	}
}

func TestJobView_PendingOmitsOptionalFields(t *testing.T) {
	view := ViewOf(&SearchJob{
		CorrelationID: "abc",
		Status:        JobStatusPending,
	})

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}

	for _, absent := range []string{"result", "failure_reason", "completed_at"} {
		if _, ok := fields[absent]; ok {
			t.Errorf("expected %q to be omitted for pending jobs", absent)
		}
	}
}
