package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoboflowBackend_Infer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, roboflowInferPath, r.URL.Path)

		var req roboflowRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "teeth_annotation_sl_techno/1", req.ModelID)
		assert.Equal(t, "secret", req.APIKey)
		assert.InDelta(t, 0.2, req.Confidence, 1e-9)
		assert.Equal(t, "base64", req.Image.Type)
		assert.Equal(t, "aGVsbG8=", req.Image.Value)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predictions":[
			{"x":100,"y":50,"width":20,"height":10,"confidence":0.91,"class":"17","class_id":7},
			{"x":30,"y":40,"width":6,"height":8,"confidence":0.5,"class":"12"}
		],"image":{"width":640,"height":480}}`))
	}))
	defer server.Close()

	backend, err := NewRoboflowBackend(server.URL+"/", "teeth_annotation_sl_techno/1", "secret", []string{"11", "12"})
	require.NoError(t, err)

	sets, err := backend.Infer(context.Background(), "data:image/jpeg;base64,aGVsbG8=", 0.2)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	preds := sets[0].Predictions
	require.Len(t, preds, 2)
	assert.Equal(t, 7, preds[0].ClassID)
	assert.Equal(t, 100.0, preds[0].X)
	assert.Equal(t, 10.0, preds[0].Height)
	// no class_id, falls back to the names list
	assert.Equal(t, 1, preds[1].ClassID)
}

func TestRoboflowBackend_ListResponseAndURLImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req roboflowRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "url", req.Image.Type)
		assert.Equal(t, "https://example.com/teeth.jpg", req.Image.Value)
		_, _ = w.Write([]byte(`[{"predictions":[]},{"predictions":[{"x":1,"y":1,"width":1,"height":1,"class_id":3}]}]`))
	}))
	defer server.Close()

	backend, err := NewRoboflowBackend(server.URL, "m/1", "", nil)
	require.NoError(t, err)
	sets, err := backend.Infer(context.Background(), "https://example.com/teeth.jpg", 0.2)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Empty(t, sets[0].Predictions)
	assert.Len(t, sets[1].Predictions, 1)
}

func TestRoboflowBackend_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Could not decode image"}`))
	}))
	defer server.Close()

	backend, err := NewRoboflowBackend(server.URL, "m/1", "", nil)
	require.NoError(t, err)
	_, err = backend.Infer(context.Background(), "garbage", 0.2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not decode image")
}

func TestRoboflowBackend_BadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	backend, err := NewRoboflowBackend(server.URL, "m/1", "", nil)
	require.NoError(t, err)
	_, err = backend.Infer(context.Background(), "aGVsbG8=", 0.2)
	assert.Error(t, err)
}

func TestNewRoboflowBackend_EmptyURL(t *testing.T) {
	_, err := NewRoboflowBackend("", "m/1", "", nil)
	assert.Error(t, err)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "bad", errorMessage([]byte(`{"message":"bad"}`)))
	assert.Equal(t, "missing field", errorMessage([]byte(`{"detail":"missing field"}`)))
	assert.Equal(t, "plain text", errorMessage([]byte(" plain text\n")))
}
