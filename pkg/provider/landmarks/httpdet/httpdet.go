// Package httpdet provides a landmark detector backed by a local HTTP
// inference sidecar. It implements the landmarks.Detector interface.
//
// The sidecar accepts a JSON POST with a base64-encoded image and responds
// with either a landmark set or face_detected=false. Running inference out of
// process keeps the heavyweight vision model out of this binary.
package httpdet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cadenza-ai/cadenza/pkg/provider/landmarks"
)

// Compile-time assertion that Detector satisfies the landmarks interface.
var _ landmarks.Detector = (*Detector)(nil)

const defaultTimeout = 5 * time.Second

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithHTTPClient overrides the HTTP client used for sidecar requests.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Detector) { d.client = client }
}

// Detector calls a landmark inference sidecar over HTTP.
type Detector struct {
	url    string
	client *http.Client
}

// New creates a Detector pointing at the sidecar's detect endpoint
// (e.g., "http://localhost:8002/landmarks").
func New(url string, opts ...Option) (*Detector, error) {
	if url == "" {
		return nil, errors.New("httpdet: url must not be empty")
	}
	d := &Detector{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

type detectRequest struct {
	Image string `json:"image"` // base64-encoded JPEG/PNG
}

type detectResponse struct {
	FaceDetected bool             `json:"face_detected"`
	Landmarks    *landmarks.Frame `json:"landmarks,omitempty"`
}

// Detect sends the encoded frame to the sidecar and decodes the landmark set.
// A response with face_detected=false yields (nil, nil).
func (d *Detector) Detect(ctx context.Context, image []byte) (*landmarks.Frame, error) {
	reqBody, err := json.Marshal(detectRequest{
		Image: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, fmt.Errorf("httpdet: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("httpdet: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpdet: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("httpdet: sidecar returned %d: %s", resp.StatusCode, body)
	}

	var dr detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("httpdet: decode response: %w", err)
	}

	if !dr.FaceDetected || dr.Landmarks == nil {
		return nil, nil
	}
	return dr.Landmarks, nil
}
