package greenhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/config"
	"github.com/ilkoid/teplitsa-ai/pkg/sensors"
	"golang.org/x/time/rate"
)

// mockHTTPClient подменяет HTTP слой в тестах.
type mockHTTPClient struct {
	handler  func(req *http.Request) (*http.Response, error)
	requests []*http.Request
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.requests = append(m.requests, req)
	return m.handler(req)
}

func jsonResponse(status int, body any) (*http.Response, error) {
	payload, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(payload)),
		Header:     make(http.Header),
	}, nil
}

func newTestClient(mock *mockHTTPClient) *Client {
	return &Client{
		baseURL:       "http://controller.local",
		apiKey:        "test-key",
		httpClient:    mock,
		retryAttempts: 3,
		limiter:       rate.NewLimiter(rate.Inf, 1),
	}
}

func TestReadingRequestShape(t *testing.T) {
	mock := &mockHTTPClient{
		handler: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(200, sensors.Reading{
				Sensor: "air_temp", Value: 23.5, Unit: "C",
			})
		},
	}
	client := newTestClient(mock)

	reading, err := client.Reading(context.Background(), "air_temp")
	if err != nil {
		t.Fatalf("Reading() error: %v", err)
	}
	if reading.Value != 23.5 || reading.Unit != "C" {
		t.Errorf("unexpected reading: %+v", reading)
	}

	req := mock.requests[0]
	if req.URL.Path != "/api/v1/sensors/air_temp" {
		t.Errorf("path = %q", req.URL.Path)
	}
	if got := req.Header.Get("X-API-Key"); got != "test-key" {
		t.Errorf("X-API-Key = %q", got)
	}
}

func TestReadingEmptyID(t *testing.T) {
	client := newTestClient(&mockHTTPClient{})
	if _, err := client.Reading(context.Background(), ""); err == nil {
		t.Error("expected error for empty sensor id")
	}
}

func TestActuatePostsState(t *testing.T) {
	mock := &mockHTTPClient{
		handler: func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			if !strings.Contains(string(body), `"state":true`) {
				t.Errorf("request body = %s", body)
			}
			return jsonResponse(200, ActuateResult{
				Actuator: "vent_fan", State: true, Applied: true,
			})
		},
	}
	client := newTestClient(mock)

	res, err := client.Actuate(context.Background(), "vent_fan", true)
	if err != nil {
		t.Fatalf("Actuate() error: %v", err)
	}
	if !res.Applied {
		t.Error("expected Applied=true")
	}
	if mock.requests[0].Method != http.MethodPost {
		t.Errorf("method = %s", mock.requests[0].Method)
	}
}

func TestRetryOnNetworkError(t *testing.T) {
	calls := 0
	mock := &mockHTTPClient{
		handler: func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("connection refused")
			}
			return jsonResponse(200, []sensors.Reading{{Sensor: "co2", Value: 800, Unit: "ppm"}})
		},
	}
	client := newTestClient(mock)

	readings, err := client.Readings(context.Background())
	if err != nil {
		t.Fatalf("Readings() error after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(readings) != 1 || readings[0].Sensor != "co2" {
		t.Errorf("unexpected readings: %+v", readings)
	}
}

func TestRetryExhaustion(t *testing.T) {
	mock := &mockHTTPClient{
		handler: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
	}
	client := newTestClient(mock)

	_, err := client.Readings(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("error = %v", err)
	}
	if len(mock.requests) != 3 {
		t.Errorf("attempts = %d, want 3", len(mock.requests))
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	calls := 0
	mock := &mockHTTPClient{
		handler: func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				resp, _ := jsonResponse(http.StatusTooManyRequests, map[string]string{"error": "slow down"})
				resp.Header.Set("Retry-After", "0")
				return resp, nil
			}
			return jsonResponse(200, Status{GrowthStage: "flowering"})
		},
	}
	client := newTestClient(mock)

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if status.GrowthStage != "flowering" {
		t.Errorf("growth stage = %q", status.GrowthStage)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestClassifyError(t *testing.T) {
	client := newTestClient(&mockHTTPClient{})

	tests := []struct {
		err  error
		want ErrorType
	}{
		{errors.New("status 401, body: unauthorized"), ErrAuthFailed},
		{errors.New("context deadline exceeded"), ErrTimeout},
		{errors.New("dial tcp: connection refused"), ErrNetwork},
		{errors.New("status 429, Too Many Requests"), ErrRateLimit},
		{errors.New("something odd"), ErrUnknown},
		{nil, ErrUnknown},
	}

	for _, tt := range tests {
		if got := client.ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestNewFromConfigDefaults(t *testing.T) {
	c, err := NewFromConfig(config.GreenhouseConfig{})
	if err != nil {
		t.Fatalf("NewFromConfig() error: %v", err)
	}
	if c.baseURL == "" {
		t.Error("expected default base URL")
	}
	if c.retryAttempts <= 0 {
		t.Errorf("retryAttempts = %d", c.retryAttempts)
	}

	c2, err := NewFromConfig(config.GreenhouseConfig{BaseURL: "http://gh.local/"})
	if err != nil {
		t.Fatalf("NewFromConfig() error: %v", err)
	}
	if c2.baseURL != "http://gh.local" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", c2.baseURL)
	}
}

// --- SnapshotProvider ---

type fakeStatusReader struct {
	readings    []sensors.Reading
	readingsErr error
	status      Status
	statusErr   error
}

func (f *fakeStatusReader) Readings(ctx context.Context) ([]sensors.Reading, error) {
	return f.readings, f.readingsErr
}

func (f *fakeStatusReader) Status(ctx context.Context) (Status, error) {
	return f.status, f.statusErr
}

func newTestProvider(t *testing.T, reader statusReader, now time.Time) *SnapshotProvider {
	t.Helper()
	start, _ := parseClockTime("06:00")
	end, _ := parseClockTime("22:00")
	return &SnapshotProvider{
		client:   reader,
		dayStart: start,
		dayEnd:   end,
		now:      func() time.Time { return now },
	}
}

func TestSnapshotDaytime(t *testing.T) {
	noon := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	reader := &fakeStatusReader{
		readings: []sensors.Reading{{Sensor: "air_temp", Value: 24.1, Unit: "C"}},
		status:   Status{GrowthStage: "vegetative"},
	}

	snap, err := newTestProvider(t, reader, noon).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if snap.IsDarkPeriod {
		t.Error("noon must not be a dark period")
	}
	if !snap.CurrentTime.Equal(noon) {
		t.Errorf("CurrentTime = %v", snap.CurrentTime)
	}
	if snap.GrowthStage != "vegetative" {
		t.Errorf("GrowthStage = %q", snap.GrowthStage)
	}
	if len(snap.Readings) != 1 {
		t.Errorf("readings = %d", len(snap.Readings))
	}
}

func TestSnapshotDarkPeriod(t *testing.T) {
	tests := []struct {
		name string
		hour int
		min  int
		dark bool
	}{
		{"before dawn", 5, 59, true},
		{"day start boundary", 6, 0, false},
		{"evening", 21, 59, false},
		{"day end boundary", 22, 0, true},
		{"midnight", 0, 0, true},
	}

	reader := &fakeStatusReader{readings: []sensors.Reading{{Sensor: "co2", Value: 750, Unit: "ppm"}}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2026, 8, 29, tt.hour, tt.min, 0, 0, time.UTC)
			snap, err := newTestProvider(t, reader, now).Snapshot(context.Background())
			if err != nil {
				t.Fatalf("Snapshot() error: %v", err)
			}
			if snap.IsDarkPeriod != tt.dark {
				t.Errorf("%02d:%02d dark = %v, want %v", tt.hour, tt.min, snap.IsDarkPeriod, tt.dark)
			}
		})
	}
}

func TestSnapshotOvernightPhotoperiod(t *testing.T) {
	// Досветка с 18:00 до 10:00 следующего дня: темно с 10:00 до 18:00
	start, _ := parseClockTime("18:00")
	end, _ := parseClockTime("10:00")
	p := &SnapshotProvider{
		client:   &fakeStatusReader{readings: []sensors.Reading{{Sensor: "air_temp", Value: 20, Unit: "C"}}},
		dayStart: start,
		dayEnd:   end,
	}

	tests := []struct {
		hour int
		dark bool
	}{
		{9, false},
		{12, true},
		{17, true},
		{19, false},
		{2, false},
	}
	for _, tt := range tests {
		now := time.Date(2026, 8, 29, tt.hour, 0, 0, 0, time.UTC)
		if got := p.isDark(now); got != tt.dark {
			t.Errorf("isDark(%02d:00) = %v, want %v", tt.hour, got, tt.dark)
		}
	}
}

func TestSnapshotReadingsFailure(t *testing.T) {
	reader := &fakeStatusReader{readingsErr: errors.New("connection refused")}
	_, err := newTestProvider(t, reader, time.Now()).Snapshot(context.Background())
	if err == nil {
		t.Fatal("expected error when readings are unavailable")
	}
}

func TestSnapshotStatusFailureIsNotFatal(t *testing.T) {
	reader := &fakeStatusReader{
		readings:  []sensors.Reading{{Sensor: "humidity", Value: 62, Unit: "%"}},
		statusErr: errors.New("status endpoint down"),
	}

	snap, err := newTestProvider(t, reader, time.Now()).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if snap.GrowthStage != "" {
		t.Errorf("GrowthStage = %q, want empty", snap.GrowthStage)
	}
	if len(snap.Readings) != 1 {
		t.Errorf("readings = %d", len(snap.Readings))
	}
}
