package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/refresh"
	"github.com/Sternrassler/plantcare/pkg/resolver"
)

type stubResolver struct {
	last   resolver.Request
	result care.Result
}

func (s *stubResolver) Resolve(_ context.Context, req resolver.Request) care.Result {
	s.last = req
	return s.result
}

type stubQueue struct {
	jobs []refresh.Job
	err  error
}

func (q *stubQueue) Enqueue(job refresh.Job) error {
	if q.err != nil {
		return q.err
	}
	if strings.TrimSpace(job.ScientificName) == "" {
		return resolver.ErrInvalidName
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newTestRouter(res *stubResolver, q *stubQueue, ready error) http.Handler {
	return newRouter(&handlers{
		resolver: res,
		queue:    q,
		ready:    func(context.Context) error { return ready },
		logger:   zerolog.Nop(),
	})
}

func serve(t *testing.T, h http.Handler, method, target, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	resp := w.Result()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := newTestRouter(&stubResolver{}, &stubQueue{}, nil)
	if resp, body := serve(t, h, "GET", "/ready", ""); resp.StatusCode != http.StatusOK || body != "OK" {
		t.Errorf("ready = %d %q, want 200 OK", resp.StatusCode, body)
	}

	h = newTestRouter(&stubResolver{}, &stubQueue{}, errors.New("redis: connection refused"))
	if resp, _ := serve(t, h, "GET", "/ready", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("not ready = %d, want 503", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(&stubResolver{}, &stubQueue{}, nil)
	resp, body := serve(t, h, "GET", "/metrics", "")

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(body, "plantcare_refresh_queue_depth") {
		t.Error("Expected metrics output to contain plantcare_refresh_queue_depth")
	}
}

func TestCareEndpoint(t *testing.T) {
	found := care.Found(care.SourceStructured, &care.Details{PHMinimum: care.FloatPtr(6.5)})

	tests := []struct {
		name       string
		target     string
		result     care.Result
		wantStatus int
		wantReq    resolver.Request
	}{
		{
			name:       "resolved",
			target:     "/v1/care?name=Ficus+lyrata&common_name=Fig&family=Moraceae&provider=structured&force=true",
			result:     found,
			wantStatus: http.StatusOK,
			wantReq: resolver.Request{
				ScientificName: "Ficus lyrata", CommonName: "Fig", Family: "Moraceae",
				Provider: care.SourceStructured, ForceRefresh: true,
			},
		},
		{
			name:       "default provider left to resolver",
			target:     "/v1/care?name=Ficus+lyrata",
			result:     found,
			wantStatus: http.StatusOK,
			wantReq:    resolver.Request{ScientificName: "Ficus lyrata"},
		},
		{
			name:       "exhausted",
			target:     "/v1/care?name=Unknown+plantus",
			result:     care.NotFound(resolver.ErrAllProvidersExhausted.Error()),
			wantStatus: http.StatusNotFound,
			wantReq:    resolver.Request{ScientificName: "Unknown plantus"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &stubResolver{result: tt.result}
			resp, body := serve(t, newTestRouter(res, &stubQueue{}, nil), "GET", tt.target, "")

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
			if res.last != tt.wantReq {
				t.Errorf("request = %+v, want %+v", res.last, tt.wantReq)
			}

			var got care.Result
			if err := json.Unmarshal([]byte(body), &got); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if got.Success != tt.result.Success || got.Source != tt.result.Source {
				t.Errorf("result = %+v, want %+v", got, tt.result)
			}
		})
	}
}

func TestCareEndpoint_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{name: "missing name", target: "/v1/care?name=%20"},
		{name: "unknown provider", target: "/v1/care?name=Ficus&provider=wikipedia"},
		{name: "bad force", target: "/v1/care?name=Ficus&force=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &stubResolver{}
			resp, _ := serve(t, newTestRouter(res, &stubQueue{}, nil), "GET", tt.target, "")
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if res.last.ScientificName != "" {
				t.Error("resolver must not be called for a bad request")
			}
		})
	}
}

func TestRefreshEndpoint(t *testing.T) {
	q := &stubQueue{}
	h := newTestRouter(&stubResolver{}, q, nil)

	resp, body := serve(t, h, "POST", "/v1/refresh", `{"scientific_name":"Ficus lyrata","provider":"trefle"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%s)", resp.StatusCode, body)
	}
	if len(q.jobs) != 1 || q.jobs[0].Provider != care.SourceStructured {
		t.Errorf("jobs = %+v, want one structured job", q.jobs)
	}

	tests := []struct {
		name       string
		queueErr   error
		body       string
		wantStatus int
	}{
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "empty name", body: `{"scientific_name":""}`, wantStatus: http.StatusBadRequest},
		{name: "bad provider", body: `{"scientific_name":"x","provider":"nope"}`, wantStatus: http.StatusBadRequest},
		{name: "duplicate", queueErr: refresh.ErrDuplicate, body: `{"scientific_name":"x"}`, wantStatus: http.StatusConflict},
		{name: "full", queueErr: refresh.ErrQueueFull, body: `{"scientific_name":"x"}`, wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&stubResolver{}, &stubQueue{err: tt.queueErr}, nil)
			if resp, _ := serve(t, h, "POST", "/v1/refresh", tt.body); resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestParseProvider(t *testing.T) {
	if src, err := parseProvider(" "); err != nil || src != "" {
		t.Errorf("parseProvider(blank) = %q, %v; want empty", src, err)
	}
	if src, err := parseProvider("gemini"); err != nil || src != care.SourceGenerative {
		t.Errorf("parseProvider(gemini) = %q, %v; want generative", src, err)
	}
	if _, err := parseProvider("wikipedia"); err == nil {
		t.Error("parseProvider(wikipedia) should fail")
	}
}
