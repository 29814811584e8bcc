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

func TestPredictWindow_SendsBase64Frames(t *testing.T) {
	var gotPath string
	var gotBody struct {
		Frames []string `json:"frames"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":               "hello",
			"confidence":         0.87,
			"model_version":      "v2",
			"processing_time_ms": 120,
		})
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL)
	res, err := eng.PredictWindow(context.Background(), [][]byte{{1, 2}, {3, 4}})
	require.NoError(t, err)

	assert.Equal(t, "/predict/window", gotPath)
	assert.Len(t, gotBody.Frames, 2)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, 0.87, res.Confidence)
	assert.Equal(t, "v2", res.ModelVersion)
	assert.Equal(t, int64(120), res.ProcessingTimeMs)
}

func TestPredictWindow_RejectsMalformedOutput(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing confidence", `{"text":"hi"}`},
		{"confidence above one", `{"text":"hi","confidence":1.7}`},
		{"negative confidence", `{"text":"hi","confidence":-0.2}`},
		{"not json", `<html>busy</html>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			eng := NewHTTPEngine(srv.URL)
			_, err := eng.PredictWindow(context.Background(), [][]byte{{1}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "malformed output")
		})
	}
}

func TestPredictWindow_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	eng := NewHTTPEngine(srv.URL)
	_, err := eng.PredictWindow(context.Background(), [][]byte{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
