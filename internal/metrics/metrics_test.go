package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetQueueLength(t *testing.T) {
	SetQueueLength(3)
	if got := testutil.ToFloat64(queueLength); got != 3 {
		t.Errorf("Expected queue length 3, got %f", got)
	}

	SetQueueLength(0)
	if got := testutil.ToFloat64(queueLength); got != 0 {
		t.Errorf("Expected queue length 0, got %f", got)
	}
}

func TestRecordUtterance(t *testing.T) {
	utterancesTotal.Reset()
	utteranceDuration.Reset()

	RecordUtterance("finished", 12)
	RecordUtterance("finished", 30)
	RecordUtterance("cancelled", 2)

	if got := testutil.ToFloat64(utterancesTotal.WithLabelValues("finished")); got != 2 {
		t.Errorf("Expected 2 finished utterances, got %f", got)
	}
	if got := testutil.ToFloat64(utterancesTotal.WithLabelValues("cancelled")); got != 1 {
		t.Errorf("Expected 1 cancelled utterance, got %f", got)
	}
	if count := testutil.CollectAndCount(utteranceDuration); count == 0 {
		t.Error("Expected non-zero histogram observations")
	}
}

func TestRecordPersist(t *testing.T) {
	persistTotal.Reset()

	RecordPersist(nil)
	RecordPersist(errors.New("disk full"))
	RecordPersist(nil)

	if got := testutil.ToFloat64(persistTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("Expected 2 successful writes, got %f", got)
	}
	if got := testutil.ToFloat64(persistTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("Expected 1 failed write, got %f", got)
	}
}

func TestSetSpeaking(t *testing.T) {
	SetSpeaking(true)
	if got := testutil.ToFloat64(engineSpeaking); got != 1 {
		t.Errorf("Expected speaking gauge 1, got %f", got)
	}
	SetSpeaking(false)
	if got := testutil.ToFloat64(engineSpeaking); got != 0 {
		t.Errorf("Expected speaking gauge 0, got %f", got)
	}
}

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register failed: %v", err)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	RecordEnqueued(2)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(body), "readaloud_queue_enqueued_total") {
		t.Error("Expected enqueued counter in exposition output")
	}
}
