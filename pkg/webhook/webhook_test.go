package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatveil/core/pkg/posture"
)

type fakeWebhookStore struct {
	mu         sync.Mutex
	webhooks   []posture.Webhook
	deliveries map[string]posture.WebhookDelivery
}

func newFakeWebhookStore() *fakeWebhookStore {
	return &fakeWebhookStore{deliveries: map[string]posture.WebhookDelivery{}}
}

func (f *fakeWebhookStore) ListByOrgAndEvent(ctx context.Context, orgID, eventType string) ([]posture.Webhook, error) {
	var out []posture.Webhook
	for _, w := range f.webhooks {
		if w.OrgID != orgID || !w.Enabled {
			continue
		}
		for _, ev := range w.SubscribedTo {
			if ev == eventType {
				out = append(out, w)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeWebhookStore) CreateWebhook(ctx context.Context, w posture.Webhook) error {
	f.webhooks = append(f.webhooks, w)
	return nil
}

func (f *fakeWebhookStore) CreateDelivery(ctx context.Context, d posture.WebhookDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries[d.ID] = d
	return nil
}

func (f *fakeWebhookStore) UpdateDelivery(ctx context.Context, d posture.WebhookDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries[d.ID] = d
	return nil
}

func (f *fakeWebhookStore) last() posture.WebhookDelivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest posture.WebhookDelivery
	for _, d := range f.deliveries {
		if d.Attempts >= latest.Attempts {
			latest = d
		}
	}
	return latest
}

func TestDeliver_SignatureAndSuccessOnFirstAttempt(t *testing.T) {
	var gotSig, gotEvent string
	var gotBody []byte
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-ThreatVeil-Signature")
		gotEvent = r.Header.Get("X-ThreatVeil-Event")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = buf
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	store := newFakeWebhookStore()
	require.NoError(t, store.CreateWebhook(context.Background(), posture.Webhook{
		ID: "wh1", OrgID: "org1", URL: srv.URL, Secret: "s3cr3t",
		SubscribedTo: []string{EventTest}, Enabled: true,
	}))

	d := NewDispatcher(store)
	require.NoError(t, d.EmitEvent(context.Background(), "org1", EventTest, map[string]interface{}{"hello": "world"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async delivery")
	}

	assert.Equal(t, EventTest, gotEvent)
	assert.Equal(t, sign(gotBody, "s3cr3t"), gotSig)

	delivery := waitForDeliveryStatus(t, store, posture.DeliverySuccess)
	assert.Equal(t, 1, delivery.Attempts)
	require.NotNil(t, delivery.ResponseCode)
	assert.Equal(t, http.StatusOK, *delivery.ResponseCode)
}

// waitForDeliveryStatus polls the fake store until the latest delivery
// reaches the given terminal status, since EmitEvent now dispatches
// asynchronously and returns before delivery completes.
func waitForDeliveryStatus(t *testing.T, store *fakeWebhookStore, status posture.DeliveryStatus) posture.WebhookDelivery {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d := store.last()
		if d.Status == status {
			return d
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for delivery status %s", status)
	return posture.WebhookDelivery{}
}

func TestDeliver_RetriesThenFailsAfterMaxAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := newFakeWebhookStore()
	require.NoError(t, store.CreateWebhook(context.Background(), posture.Webhook{
		ID: "wh1", OrgID: "org1", URL: srv.URL, Secret: "s3cr3t",
		SubscribedTo: []string{EventTest}, Enabled: true,
	}))

	d := NewDispatcher(store)
	d.BackoffBase = 5 * time.Millisecond
	wh := store.webhooks[0]

	d.deliver(context.Background(), wh, EventTest, map[string]interface{}{})

	assert.Equal(t, 3, calls)

	delivery := store.last()
	assert.Equal(t, posture.DeliveryFailed, delivery.Status)
	assert.Equal(t, 3, delivery.Attempts)
}

func TestDeliver_SkipsDisabledWebhooks(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newFakeWebhookStore()
	require.NoError(t, store.CreateWebhook(context.Background(), posture.Webhook{
		ID: "wh1", OrgID: "org1", URL: srv.URL, Secret: "s3cr3t",
		SubscribedTo: []string{EventTest}, Enabled: false,
	}))

	d := NewDispatcher(store)
	require.NoError(t, d.EmitEvent(context.Background(), "org1", EventTest, map[string]interface{}{}))

	assert.Equal(t, 0, calls)
}

// TestEmitEvent_DispatchesConcurrentlyAndDoesNotBlock pins one webhook
// behind a slow handler and a second behind a fast one, and asserts the
// fast webhook's delivery completes without waiting on the slow one —
// EmitEvent must fan out one goroutine per webhook, not deliver serially.
func TestEmitEvent_DispatchesConcurrentlyAndDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer fast.Close()

	store := newFakeWebhookStore()
	require.NoError(t, store.CreateWebhook(context.Background(), posture.Webhook{
		ID: "slow", OrgID: "org1", URL: slow.URL, Secret: "s3cr3t",
		SubscribedTo: []string{EventTest}, Enabled: true,
	}))
	require.NoError(t, store.CreateWebhook(context.Background(), posture.Webhook{
		ID: "fast", OrgID: "org1", URL: fast.URL, Secret: "s3cr3t",
		SubscribedTo: []string{EventTest}, Enabled: true,
	}))

	start := time.Now()
	d := NewDispatcher(store)
	require.NoError(t, d.EmitEvent(context.Background(), "org1", EventTest, map[string]interface{}{}))
	elapsed := time.Since(start)
	close(release)

	assert.Less(t, elapsed, 500*time.Millisecond, "EmitEvent must return before any delivery completes")
}
