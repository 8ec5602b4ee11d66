package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nexus-vision/facesearch-go/config"
	"github.com/nexus-vision/facesearch-go/internal/core"
	"github.com/nexus-vision/facesearch-go/internal/data"
	"github.com/nexus-vision/facesearch-go/internal/domain/correlation"
	"github.com/nexus-vision/facesearch-go/internal/domain/model"
	"github.com/nexus-vision/facesearch-go/internal/mocks"
	"github.com/nexus-vision/facesearch-go/internal/service"
)

const testCorrelationID = "7f0c8f2e-0b9f-4a57-90dd-0de1f7a2b101"

type routerFixture struct {
	repo       *mocks.MockJobRepository
	dispatcher *mocks.MockDispatcher
	handler    http.Handler
}

func newRouterFixture(t *testing.T, callbackToken string) *routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	dispatcher := mocks.NewMockDispatcher(ctrl)

	ids, err := correlation.NewUUIDGenerator()
	require.NoError(t, err)

	svc, err := service.NewJobService(service.JobServiceOptions{
		Repo:       repo,
		Dispatcher: dispatcher,
		IDs:        ids,
		Worker:     config.WorkerConfig{DefaultTopK: 5, MaxTopK: 100},
	})
	require.NoError(t, err)

	return &routerFixture{
		repo:       repo,
		dispatcher: dispatcher,
		handler:    NewRouter(RouterServices{Jobs: svc, CallbackToken: callbackToken}),
	}
}

func (f *routerFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestSubmitJobAccepted(t *testing.T) {
	f := newRouterFixture(t, "")

	f.repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.CreateJobParams) (*model.SearchJob, error) {
			return &model.SearchJob{
				CorrelationID:    params.CorrelationID,
				Status:           model.JobStatusPending,
				SubjectReference: params.SubjectReference,
				Parameters:       params.Parameters,
				CreatedAt:        time.Now().UTC(),
			}, nil
		})
	f.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(nil)

	rec := f.do(http.MethodPost, "/jobs", `{"subject_reference":"s3://subjects/a.jpg","parameters":{"top_k":10}}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var res service.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, correlation.Validate(res.CorrelationID), "acknowledgement carries a valid correlation id")
	assert.Equal(t, model.JobStatusPending, res.Status)
}

func TestSubmitJobValidationError(t *testing.T) {
	f := newRouterFixture(t, "")

	rec := f.do(http.MethodPost, "/jobs", `{"subject_reference":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitJobRejectsUnknownFields(t *testing.T) {
	f := newRouterFixture(t, "")

	rec := f.do(http.MethodPost, "/jobs", `{"subject":"s3://a.jpg"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_json")
}

func TestCallbackAppliesOutcome(t *testing.T) {
	f := newRouterFixture(t, "")

	f.repo.EXPECT().
		Complete(gomock.Any(), testCorrelationID, gomock.Any()).
		Return(true, nil)

	body := `{"correlation_id":"` + testCorrelationID + `","result":{"matches":[]}}`
	rec := f.do(http.MethodPost, "/jobs/callback", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"applied":true}`, rec.Body.String())
}

func TestCallbackIdempotentOnTerminalJob(t *testing.T) {
	f := newRouterFixture(t, "")

	f.repo.EXPECT().
		Complete(gomock.Any(), testCorrelationID, gomock.Any()).
		Return(false, nil)

	body := `{"correlation_id":"` + testCorrelationID + `","result":{"matches":[]}}`
	rec := f.do(http.MethodPost, "/jobs/callback", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"applied":false}`, rec.Body.String())
}

func TestCallbackUnknownJob(t *testing.T) {
	f := newRouterFixture(t, "")

	f.repo.EXPECT().
		Fail(gomock.Any(), testCorrelationID, "no face detected").
		Return(false, data.ErrJobNotFound)

	body := `{"correlation_id":"` + testCorrelationID + `","failure_reason":"no face detected"}`
	rec := f.do(http.MethodPost, "/jobs/callback", body, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallbackRejectsAmbiguousOutcome(t *testing.T) {
	f := newRouterFixture(t, "")

	body := `{"correlation_id":"` + testCorrelationID + `","result":{"matches":[]},"failure_reason":"boom"}`
	rec := f.do(http.MethodPost, "/jobs/callback", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackTokenRequired(t *testing.T) {
	f := newRouterFixture(t, "sekrit")

	body := `{"correlation_id":"` + testCorrelationID + `","result":{"matches":[]}}`

	rec := f.do(http.MethodPost, "/jobs/callback", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/jobs/callback", body, map[string]string{CallbackTokenHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.repo.EXPECT().
		Complete(gomock.Any(), testCorrelationID, gomock.Any()).
		Return(true, nil)
	rec = f.do(http.MethodPost, "/jobs/callback", body, map[string]string{CallbackTokenHeader: "sekrit"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallbackTokenOnlyGuardsCallback(t *testing.T) {
	f := newRouterFixture(t, "sekrit")

	f.repo.EXPECT().Stats(gomock.Any()).Return(&model.JobStats{}, nil)

	rec := f.do(http.MethodGet, "/jobs/stats", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "poll endpoints stay open without the callback token")
}

func TestGetJobPending(t *testing.T) {
	f := newRouterFixture(t, "")

	f.repo.EXPECT().GetByCorrelationID(gomock.Any(), testCorrelationID).Return(&model.SearchJob{
		CorrelationID: testCorrelationID,
		Status:        model.JobStatusPending,
	}, nil)

	rec := f.do(http.MethodGet, "/jobs/"+testCorrelationID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view model.JobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.JobStatusPending, view.Status)
	assert.Nil(t, view.Result)
	assert.Nil(t, view.FailureReason)
}

func TestGetJobCompletedIncludesResult(t *testing.T) {
	f := newRouterFixture(t, "")

	completedAt := time.Now().UTC()
	f.repo.EXPECT().GetByCorrelationID(gomock.Any(), testCorrelationID).Return(&model.SearchJob{
		CorrelationID: testCorrelationID,
		Status:        model.JobStatusCompleted,
		ResultPayload: json.RawMessage(`{"matches":[{"face_id":"f-1","suspect_id":"s-1","distance":0.2,"s3_path":"s3://faces/f-1.jpg"}]}`),
		CompletedAt:   &completedAt,
	}, nil)

	rec := f.do(http.MethodGet, "/jobs/"+testCorrelationID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view model.JobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.JobStatusCompleted, view.Status)
	assert.NotNil(t, view.Result)
	assert.NotNil(t, view.CompletedAt)
}

func TestGetJobNotFound(t *testing.T) {
	f := newRouterFixture(t, "")

	f.repo.EXPECT().
		GetByCorrelationID(gomock.Any(), testCorrelationID).
		Return(nil, data.ErrJobNotFound)

	rec := f.do(http.MethodGet, "/jobs/"+testCorrelationID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobMalformedID(t *testing.T) {
	f := newRouterFixture(t, "")

	// Malformed ids are indistinguishable from unknown ones to a poller.
	rec := f.do(http.MethodGet, "/jobs/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	f := newRouterFixture(t, "")

	f.repo.EXPECT().Stats(gomock.Any()).Return(&model.JobStats{Pending: 1, Completed: 2, Failed: 3}, nil)

	rec := f.do(http.MethodGet, "/jobs/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pending":1,"completed":2,"failed":3}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	f := newRouterFixture(t, "")

	rec := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
