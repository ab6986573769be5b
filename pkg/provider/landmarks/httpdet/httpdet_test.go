package httpdet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestDetect_FaceFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s; want POST", r.Method)
		}
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			t.Errorf("image is not valid base64: %v", err)
		}
		if string(decoded) != "fake-jpeg" {
			t.Errorf("decoded image = %q; want fake-jpeg", decoded)
		}

		_, _ = w.Write([]byte(`{
			"face_detected": true,
			"landmarks": {
				"nose_tip": {"x": 0.5, "y": 0.6},
				"left_eye": {
					"inner_corner": {"x": 0.42, "y": 0.4},
					"outer_corner": {"x": 0.3, "y": 0.4},
					"iris": {"x": 0.36, "y": 0.4}
				},
				"right_eye": {
					"inner_corner": {"x": 0.58, "y": 0.4},
					"outer_corner": {"x": 0.7, "y": 0.4},
					"iris": {"x": 0.64, "y": 0.4}
				}
			}
		}`))
	}))
	t.Cleanup(srv.Close)

	d, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frame, err := d.Detect(context.Background(), []byte("fake-jpeg"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if frame == nil {
		t.Fatal("frame is nil; want landmark set")
	}
	if frame.NoseTip.X != 0.5 || frame.NoseTip.Y != 0.6 {
		t.Errorf("nose tip = %+v; want (0.5, 0.6)", frame.NoseTip)
	}
	if frame.LeftEye.Iris.X != 0.36 {
		t.Errorf("left iris x = %v; want 0.36", frame.LeftEye.Iris.X)
	}
	if frame.RightEye.OuterCorner.X != 0.7 {
		t.Errorf("right outer corner x = %v; want 0.7", frame.RightEye.OuterCorner.X)
	}
}

func TestDetect_NoFace(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"face_detected": false}`))
	}))
	t.Cleanup(srv.Close)

	d, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frame, err := d.Detect(context.Background(), []byte("fake-jpeg"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if frame != nil {
		t.Errorf("frame = %+v; want nil when no face is detected", frame)
	}
}

func TestDetect_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	d, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := d.Detect(context.Background(), []byte("x")); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestDetect_CancelledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"face_detected": false}`))
	}))
	t.Cleanup(srv.Close)

	d, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Detect(ctx, []byte("x")); err == nil {
		t.Error("expected error for cancelled context")
	}
}
