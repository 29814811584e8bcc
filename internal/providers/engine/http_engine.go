package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HTTPEngine talks to the pose-estimation/inference service over HTTP.
// Endpoints: POST /predict/video and /predict/frames (multipart),
// POST /predict/window (JSON, base64 frames).
type HTTPEngine struct {
	baseURL string
	client  *http.Client
}

func NewHTTPEngine(baseURL string) *HTTPEngine {
	return &HTTPEngine{
		baseURL: baseURL,
		// Per-call deadlines come from ctx; this is a hard upper bound.
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (e *HTTPEngine) Close() error { return nil }

type engineResponse struct {
	Text             string   `json:"text"`
	Confidence       *float64 `json:"confidence"`
	ModelVersion     string   `json:"model_version"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

func (e *HTTPEngine) PredictVideo(ctx context.Context, videoPath string) (*Result, error) {
	return e.postFiles(ctx, "/predict/video", []string{videoPath})
}

func (e *HTTPEngine) PredictFrames(ctx context.Context, framePaths []string) (*Result, error) {
	if len(framePaths) == 0 {
		return nil, fmt.Errorf("empty frame batch")
	}
	return e.postFiles(ctx, "/predict/frames", framePaths)
}

func (e *HTTPEngine) PredictWindow(ctx context.Context, frames [][]byte) (*Result, error) {
	encoded := make([]string, len(frames))
	for i, f := range frames {
		encoded[i] = base64.StdEncoding.EncodeToString(f)
	}
	body, err := json.Marshal(map[string]any{"frames": encoded})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/predict/window", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return e.do(req)
}

func (e *HTTPEngine) postFiles(ctx context.Context, path string, filePaths []string) (*Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, fp := range filePaths {
		f, err := os.Open(fp)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fp, err)
		}
		part, err := mw.CreateFormFile("files", filepath.Base(fp))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return e.do(req)
}

func (e *HTTPEngine) do(req *http.Request) (*Result, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, fmt.Errorf("engine returned %d: %s", resp.StatusCode, string(body))
	}

	var out engineResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("engine returned malformed output: %w", err)
	}
	// A response without a bounded confidence is garbage; never let it
	// become a persisted Prediction.
	if out.Confidence == nil || *out.Confidence < 0 || *out.Confidence > 1 {
		return nil, fmt.Errorf("engine returned malformed output: confidence out of range")
	}

	return &Result{
		Text:             out.Text,
		Confidence:       *out.Confidence,
		ModelVersion:     out.ModelVersion,
		ProcessingTimeMs: out.ProcessingTimeMs,
	}, nil
}
