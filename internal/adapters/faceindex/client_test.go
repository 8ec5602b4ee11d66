package faceindex

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

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestSearchSuccess(t *testing.T) {
	var gotReq searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"matches":[
			{"face_id":"f-1","suspect_id":"s-1","distance":0.12,"s3_path":"s3://faces/f-1.jpg"},
			{"face_id":"f-2","suspect_id":"s-2","distance":0.48,"s3_path":"s3://faces/f-2.jpg"}
		]}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	matches, err := client.Search(context.Background(), []float64{0.1, 0.2}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, model.Match{FaceID: "f-1", SuspectID: "s-1", Distance: 0.12, S3Path: "s3://faces/f-1.jpg"}, matches[0])
	assert.Equal(t, []float64{0.1, 0.2}, gotReq.Embedding)
	assert.Equal(t, 5, gotReq.TopK)
}

func TestSearchValidation(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://localhost:9091"})
	require.NoError(t, err)

	_, err = client.Search(context.Background(), nil, 5)
	assert.ErrorContains(t, err, "embedding")

	_, err = client.Search(context.Background(), []float64{0.1}, 0)
	assert.ErrorContains(t, err, "top_k")
}

func TestSearchEmptyMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"matches":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	matches, err := client.Search(context.Background(), []float64{0.1}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Search(context.Background(), []float64{0.1}, 3)
	assert.ErrorContains(t, err, "status 503")
}
