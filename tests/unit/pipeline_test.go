package unit

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/application"
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/domain"
)

const testClientState = "shared-client-state-secret"

type fakeTokenVerifier struct {
	mu      sync.Mutex
	valid   map[string]bool
	checked []string
}

func (f *fakeTokenVerifier) Verify(_ context.Context, raw string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, raw)
	return f.valid[raw]
}

type fakeSubscriptionStore struct {
	subs map[string]domain.Subscription
	err  error
}

func (f *fakeSubscriptionStore) GetByID(_ context.Context, id string) (domain.Subscription, error) {
	if f.err != nil {
		return domain.Subscription{}, f.err
	}
	sub, ok := f.subs[id]
	if !ok {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return sub, nil
}

type fakeDecryptor struct {
	mu    sync.Mutex
	doc   map[string]any
	err   error
	calls int
}

func (f *fakeDecryptor) Decrypt(domain.EncryptedContent) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type fetchCall struct {
	path    string
	selects []string
}

type fakeFetcher struct {
	mu         sync.Mutex
	projection map[string]any
	err        error
	calls      []fetchCall
}

func (f *fakeFetcher) Get(_ context.Context, path string, selectFields []string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{path: path, selects: selectFields})
	if f.err != nil {
		return nil, f.err
	}
	return f.projection, nil
}

type publishedEvent struct {
	subscriptionID string
	event          domain.DispatchEvent
}

type capturingPublisher struct {
	mu     sync.Mutex
	err    error
	events []publishedEvent
}

func (p *capturingPublisher) Publish(_ context.Context, subscriptionID string, event domain.DispatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subscriptionID: subscriptionID, event: event})
	return p.err
}

type fixture struct {
	service   *application.Service
	tokens    *fakeTokenVerifier
	subs      *fakeSubscriptionStore
	decryptor *fakeDecryptor
	fetcher   *fakeFetcher
	publisher *capturingPublisher
}

func newFixture() *fixture {
	f := &fixture{
		tokens: &fakeTokenVerifier{valid: map[string]bool{}},
		subs: &fakeSubscriptionStore{subs: map[string]domain.Subscription{
			"sub-1": {
				SubscriptionID: "sub-1",
				UserID:         "user-1",
				ClientState:    testClientState,
				Resource:       "users/user-1/events",
				ExpiresAt:      time.Now().UTC().Add(time.Hour),
			},
		}},
		decryptor: &fakeDecryptor{doc: map[string]any{"id": "msg-1"}},
		fetcher:   &fakeFetcher{projection: map[string]any{"@odata.type": "#microsoft.graph.event", "subject": "standup"}},
		publisher: &capturingPublisher{},
	}
	f.service = application.NewService(application.Dependencies{
		Config: application.Config{
			ClientStateSecret: testClientState,
			FetchSelectFields: []string{"subject", "organizer"},
		},
		TokenVerifier: f.tokens,
		Decryptor:     f.decryptor,
		Subscriptions: f.subs,
		Fetcher:       f.fetcher,
		Publisher:     f.publisher,
	})
	return f
}

func plainNotification(changeType string) domain.Notification {
	return domain.Notification{
		SubscriptionID: "sub-1",
		ClientState:    testClientState,
		ChangeType:     changeType,
		Resource:       "users/user-1/events/evt-1",
		ResourceData: domain.ResourceData{
			ID:        "evt-1",
			ODataType: "#microsoft.graph.event",
		},
	}
}

func encryptedNotification() domain.Notification {
	n := plainNotification(domain.ChangeTypeCreated)
	n.EncryptedContent = &domain.EncryptedContent{
		Data:          "Y2lwaGVydGV4dA==",
		DataKey:       "d3JhcHBlZC1rZXk=",
		DataSignature: "c2lnbmF0dXJl",
	}
	return n
}

func TestBatchSuppressedWhenAnyTokenInvalid(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.tokens.valid["good"] = true

	result := f.service.ProcessBatch(context.Background(), domain.NotificationBatch{
		ValidationTokens: []string{"good", "bad"},
		Notifications:    []domain.Notification{plainNotification(domain.ChangeTypeCreated)},
	})

	if result.Status != application.BatchStatusSuppressed {
		t.Fatalf("expected suppressed batch, got %s", result.Status)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("suppressed batch must not dispatch, got %d events", len(f.publisher.events))
	}
	if len(f.tokens.checked) != 2 {
		t.Fatalf("all tokens must be checked even after a failure, checked %d", len(f.tokens.checked))
	}
}

func TestAllTokensValidProcessesBatch(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.tokens.valid["t1"] = true
	f.tokens.valid["t2"] = true

	result := f.service.ProcessBatch(context.Background(), domain.NotificationBatch{
		ValidationTokens: []string{"t1", "t2"},
		Notifications:    []domain.Notification{plainNotification(domain.ChangeTypeUpdated)},
	})

	if result.Status != application.BatchStatusCompleted {
		t.Fatalf("expected completed batch, got %s", result.Status)
	}
	if result.Dispatched != 1 {
		t.Fatalf("expected 1 dispatch, got %d", result.Dispatched)
	}
}

func TestClientStateMismatchSkipsNotification(t *testing.T) {
	t.Parallel()

	f := newFixture()
	mismatched := plainNotification(domain.ChangeTypeUpdated)
	mismatched.ClientState = "wrong-secret"

	result := f.service.ProcessBatch(context.Background(), domain.NotificationBatch{
		Notifications: []domain.Notification{mismatched, plainNotification(domain.ChangeTypeUpdated)},
	})

	if result.Dispatched != 1 || result.Skipped != 1 {
		t.Fatalf("expected exactly the valid notification dispatched, got dispatched=%d skipped=%d", result.Dispatched, result.Skipped)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].subscriptionID != "sub-1" {
		t.Fatalf("unexpected publish set: %+v", f.publisher.events)
	}
}

func TestUnknownSubscriptionSkipsNotification(t *testing.T) {
	t.Parallel()

	f := newFixture()
	unknown := plainNotification(domain.ChangeTypeUpdated)
	unknown.SubscriptionID = "sub-missing"

	result := f.service.ProcessBatch(context.Background(), domain.NotificationBatch{
		Notifications: []domain.Notification{unknown},
	})

	if result.Dispatched != 0 || len(f.publisher.events) != 0 {
		t.Fatalf("unknown subscription must not dispatch, got %d", result.Dispatched)
	}
}

func TestCreatedNotificationDispatchesFetchedProjection(t *testing.T) {
	t.Parallel()

	f := newFixture()
	result := f.service.ProcessBatch(context.Background(), domain.NotificationBatch{
		Notifications: []domain.Notification{plainNotification(domain.ChangeTypeCreated)},
	})

	if result.Dispatched != 1 {
		t.Fatalf("expected 1 dispatch, got %d", result.Dispatched)
	}
	got := f.publisher.events[0]
	if got.event.Type != "#microsoft.graph.event" {
		t.Fatalf("expected event tagged with the resource type, got %q", got.event.Type)
	}
	if !reflect.DeepEqual(got.event.Resource, f.fetcher.projection) {
		t.Fatalf("expected the fetched projection as resource, got %v", got.event.Resource)
	}
	if len(f.fetcher.calls) != 1 {
		t.Fatalf("expected exactly one fetch, got %d", len(f.fetcher.calls))
	}
	call := f.fetcher.calls[0]
	if call.path != "users/user-1/events/evt-1" {
		t.Fatalf("fetch used wrong resource path: %s", call.path)
	}
	if !reflect.DeepEqual(call.selects, []string{"subject", "organizer"}) {
		t.Fatalf("fetch used wrong select fields: %v", call.selects)
	}
}

func TestUpdatedNotificationDispatchesEmptyResource(t *testing.T) {
	t.Parallel()

	f := newFixture()
	result := f.service.ProcessBatch(context.Background(), domain.NotificationBatch{
		Notifications: []domain.Notification{plainNotification(domain.ChangeTypeUpdated)},
	})

	if result.Dispatched != 1 {
		t.Fatalf("expected 1 dispatch, got %d", result.Dispatched)
	}
	got := f.publisher.events[0].event
	if got.Type != domain.EventTypeNotification {
		t.Fatalf("expected generic event tag, got %q", got.Type)
	}
	if len(got.Resource) != 0 || got.Resource == nil {
		t.Fatalf("expected empty (non-nil) resource body, got %v", got.Resource)
	}
	if len(f.fetcher.calls) != 0 {
		t.Fatalf("non-creation changes must not fetch, got %d calls", len(f.fetcher.calls))
	}
}

func TestFetchErrorSkipsDispatch(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.fetcher.err = errors.New("upstream 503")

	result := f.service.ProcessBatch(context.Background(), domain.NotificationBatch{
		Notifications: []domain.Notification{plainNotification(domain.ChangeTypeCreated)},
	})

	if result.Dispatched != 0 || result.Skipped != 1 {
		t.Fatalf("fetch failure must skip, got dispatched=%d skipped=%d", result.Dispatched, result.Skipped)
	}
	if result.Status != application.BatchStatusCompleted {
		t.Fatalf("fetch failure must not fail the batch, got %s", result.Status)
	}
}

func TestEncryptedNotificationDispatchesDecryptedDocument(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.decryptor.doc = map[string]any{
		"@odata.type": "#microsoft.graph.chatMessage",
		"id":          "msg-9",
		"body":        map[string]any{"content": "hello"},
	}

	result := f.service.ProcessBatch(context.Background(), domain.NotificationBatch{
		Notifications: []domain.Notification{encryptedNotification()},
	})

	if result.Dispatched != 1 {
		t.Fatalf("expected 1 dispatch, got %d", result.Dispatched)
	}
	got := f.publisher.events[0].event
	if got.Type != "#microsoft.graph.chatMessage" {
		t.Fatalf("expected the payload's own type tag, got %q", got.Type)
	}
	if !reflect.DeepEqual(got.Resource, f.decryptor.doc) {
		t.Fatalf("expected decrypted document as resource, got %v", got.Resource)
	}
	if len(f.fetcher.calls) != 0 {
		t.Fatalf("encrypted notifications must not hit the fetcher")
	}
}

func TestDecryptionFailureSkipsNotification(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.decryptor.err = &domain.DecryptionError{Kind: domain.DecryptionSignatureInvalid}

	result := f.service.ProcessBatch(context.Background(), domain.NotificationBatch{
		Notifications: []domain.Notification{encryptedNotification()},
	})

	if result.Dispatched != 0 || len(f.publisher.events) != 0 {
		t.Fatalf("invalid signature must produce zero dispatches")
	}
	if result.Status != application.BatchStatusCompleted {
		t.Fatalf("single bad notification must not fail the batch, got %s", result.Status)
	}
}

func TestUnauthenticatedNotificationNeverReachesDecryptor(t *testing.T) {
	t.Parallel()

	f := newFixture()
	n := encryptedNotification()
	n.ClientState = "wrong-secret"

	f.service.ProcessBatch(context.Background(), domain.NotificationBatch{
		Notifications: []domain.Notification{n},
	})

	if f.decryptor.calls != 0 {
		t.Fatalf("decryptor must not run for unauthenticated notifications, got %d calls", f.decryptor.calls)
	}
}

func TestPublishErrorDoesNotFailBatch(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.publisher.err = errors.New("transport down")

	result := f.service.ProcessBatch(context.Background(), domain.NotificationBatch{
		Notifications: []domain.Notification{plainNotification(domain.ChangeTypeUpdated)},
	})

	if result.Status != application.BatchStatusCompleted {
		t.Fatalf("publish errors are fire-and-forget, got %s", result.Status)
	}
}

func TestReprocessingIdenticalBatchIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	batch := domain.NotificationBatch{
		Notifications: []domain.Notification{
			plainNotification(domain.ChangeTypeCreated),
			plainNotification(domain.ChangeTypeUpdated),
		},
	}

	first := f.service.ProcessBatch(context.Background(), batch)
	firstEvents := append([]publishedEvent(nil), f.publisher.events...)
	f.publisher.events = nil

	second := f.service.ProcessBatch(context.Background(), batch)

	if first != second {
		t.Fatalf("re-processing changed the result: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(firstEvents, f.publisher.events) {
		t.Fatalf("re-processing changed the dispatch set")
	}
}

func TestBatchPreservesInputOrder(t *testing.T) {
	t.Parallel()

	f := newFixture()
	batch := domain.NotificationBatch{
		Notifications: []domain.Notification{
			plainNotification(domain.ChangeTypeUpdated),
			plainNotification(domain.ChangeTypeDeleted),
			plainNotification(domain.ChangeTypeCreated),
		},
	}

	f.service.ProcessBatch(context.Background(), batch)

	if len(f.publisher.events) != 3 {
		t.Fatalf("expected 3 dispatches, got %d", len(f.publisher.events))
	}
	if f.publisher.events[2].event.Type != "#microsoft.graph.event" {
		t.Fatalf("dispatch order does not follow input order")
	}
}
