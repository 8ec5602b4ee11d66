package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-vision/facesearch-go/internal/domain/model"
)

func TestNewReporterValidation(t *testing.T) {
	_, err := NewReporter(Config{})
	assert.Error(t, err)
}

func TestReportSuccess(t *testing.T) {
	var gotToken string
	var gotOutcome model.CompleteJobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotToken = r.Header.Get(TokenHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOutcome))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reporter, err := NewReporter(Config{CallbackURL: srv.URL, Token: "secret"})
	require.NoError(t, err)

	result := &model.SearchResult{Matches: []model.Match{
		{FaceID: "f-1", SuspectID: "s-1", Distance: 0.2, S3Path: "s3://faces/f-1.jpg"},
	}}
	require.NoError(t, reporter.ReportSuccess(context.Background(), "corr-1", result))

	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, "corr-1", gotOutcome.CorrelationID)
	assert.Nil(t, gotOutcome.FailureReason)

	var decoded model.SearchResult
	require.NoError(t, json.Unmarshal(gotOutcome.Result, &decoded))
	require.Len(t, decoded.Matches, 1)
	assert.Equal(t, "f-1", decoded.Matches[0].FaceID)
}

func TestReportFailure(t *testing.T) {
	var gotOutcome model.CompleteJobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOutcome))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reporter, err := NewReporter(Config{CallbackURL: srv.URL})
	require.NoError(t, err)

	require.NoError(t, reporter.ReportFailure(context.Background(), "corr-2", "embedding service unavailable"))
	assert.Equal(t, "corr-2", gotOutcome.CorrelationID)
	require.NotNil(t, gotOutcome.FailureReason)
	assert.Equal(t, "embedding service unavailable", *gotOutcome.FailureReason)
	assert.Nil(t, gotOutcome.Result)
}

func TestReportSuccessRequiresResult(t *testing.T) {
	reporter, err := NewReporter(Config{CallbackURL: "http://localhost:8080/jobs/callback"})
	require.NoError(t, err)

	assert.Error(t, reporter.ReportSuccess(context.Background(), "corr-3", nil))
}

func TestReportRequiresCorrelationID(t *testing.T) {
	reporter, err := NewReporter(Config{CallbackURL: "http://localhost:8080/jobs/callback"})
	require.NoError(t, err)

	assert.Error(t, reporter.ReportFailure(context.Background(), "  ", "reason"))
}

func TestReportRetriesUntilAccepted(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reporter, err := NewReporter(Config{CallbackURL: srv.URL, RetryLimit: 3})
	require.NoError(t, err)

	require.NoError(t, reporter.ReportFailure(context.Background(), "corr-4", "transient"))
	assert.Equal(t, 3, calls)
}
