package changes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nepal-guide-hub/discovery/internal/searcher/cache"
	"github.com/nepal-guide-hub/discovery/pkg/kafka"
	"github.com/nepal-guide-hub/discovery/pkg/resilience"
)

type fakeProducer struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (f *fakeProducer) PublishBatch(ctx context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		event      cache.InvalidationEvent
		wantFields []string
	}{
		{"kind and id", cache.InvalidationEvent{Kind: "Packages ", ID: 10, Reason: "price change"}, nil},
		{"whole catalog", cache.InvalidationEvent{Reason: "nightly import"}, nil},
		{"unknown kind", cache.InvalidationEvent{Kind: "hotels", Reason: "x"}, []string{"kind"}},
		{"id without kind", cache.InvalidationEvent{ID: 3, Reason: "x"}, []string{"id"}},
		{"negative id", cache.InvalidationEvent{Kind: "guides", ID: -1, Reason: "x"}, []string{"id"}},
		{"blank reason", cache.InvalidationEvent{Kind: "agencies", Reason: "  "}, []string{"reason"}},
		{"long reason", cache.InvalidationEvent{Reason: strings.Repeat("r", maxReasonLength+1)}, []string{"reason"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := tt.event
			err := Validate(&event)
			if tt.wantFields == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			for _, f := range tt.wantFields {
				if _, ok := ve.Fields[f]; !ok {
					t.Errorf("missing field %q in %v", f, ve.Fields)
				}
			}
			if len(ve.Fields) != len(tt.wantFields) {
				t.Errorf("fields = %v, want %v", ve.Fields, tt.wantFields)
			}
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	event := cache.InvalidationEvent{Kind: " Guides", Reason: " deactivated "}
	if err := Validate(&event); err != nil {
		t.Fatal(err)
	}
	if event.Kind != "guides" || event.Reason != "deactivated" {
		t.Errorf("event = %+v", event)
	}
}

func TestPublisherStampsTime(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewPublisher(prod)
	fixed := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	pub.now = func() time.Time { return fixed }

	if err := pub.Publish(context.Background(), cache.InvalidationEvent{Kind: "packages", ID: 10, Reason: "edited"}); err != nil {
		t.Fatal(err)
	}
	if len(prod.events) != 1 {
		t.Fatalf("events = %d, want 1", len(prod.events))
	}
	got := prod.events[0]
	if got.Key != "packages" {
		t.Errorf("key = %q", got.Key)
	}
	if ev := got.Value.(cache.InvalidationEvent); !ev.At.Equal(fixed) {
		t.Errorf("at = %v, want %v", ev.At, fixed)
	}
}

func newTestHandler(prod *fakeProducer) http.Handler {
	pub := NewPublisher(prod)
	pub.retry = resilience.RetryConfig{MaxAttempts: 1}
	mux := http.NewServeMux()
	NewHandler(pub).Register(mux)
	return mux
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/changes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerAccepts(t *testing.T) {
	prod := &fakeProducer{}
	rec := post(newTestHandler(prod), `{"kind":"agencies","id":4,"reason":"verified"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if len(prod.events) != 1 {
		t.Errorf("events = %d, want 1", len(prod.events))
	}
}

func TestHandlerRejects(t *testing.T) {
	prod := &fakeProducer{}
	h := newTestHandler(prod)

	rec := post(h, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d", rec.Code)
	}

	rec = post(h, `{"kind":"hotels","reason":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid event status = %d", rec.Code)
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Fields) != 2 {
		t.Errorf("fields = %v, want kind and reason", body.Fields)
	}
	if len(prod.events) != 0 {
		t.Error("invalid events were published")
	}
}

func TestHandlerProducerDown(t *testing.T) {
	prod := &fakeProducer{err: errors.New("no brokers")}
	rec := post(newTestHandler(prod), `{"reason":"bulk import"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "change feed unavailable") {
		t.Errorf("body = %s", rec.Body)
	}
}
