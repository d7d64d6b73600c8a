package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jordanseet/internwatch/internal/model"
	"github.com/jordanseet/internwatch/internal/telegram"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []string
	updates [][]telegram.Update
	offsets []int64
}

func (a *fakeAPI) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]telegram.Update, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offsets = append(a.offsets, offset)
	if len(a.updates) == 0 {
		return nil, ctx.Err()
	}
	batch := a.updates[0]
	a.updates = a.updates[1:]
	return batch, nil
}

func (a *fakeAPI) SendMessage(_ context.Context, _ int64, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, text)
	return nil
}

func (a *fakeAPI) lastSent() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sent) == 0 {
		return ""
	}
	return a.sent[len(a.sent)-1]
}

type fakeStore struct {
	subs map[int64]*model.Subscriber
}

func newFakeStore(subs ...*model.Subscriber) *fakeStore {
	s := &fakeStore{subs: make(map[int64]*model.Subscriber)}
	for _, sub := range subs {
		s.subs[sub.ChatID] = sub
	}
	return s
}

func (s *fakeStore) Get(chatID int64) (*model.Subscriber, error) {
	sub, ok := s.subs[chatID]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}
func (s *fakeStore) List() ([]model.Subscriber, error) { return nil, nil }
func (s *fakeStore) Upsert(sub *model.Subscriber) error {
	cp := *sub
	s.subs[sub.ChatID] = &cp
	return nil
}
func (s *fakeStore) Delete(chatID int64) error { delete(s.subs, chatID); return nil }

type fakeScheduler struct {
	ensured []int64
	removed []int64
}

func (f *fakeScheduler) EnsureJob(_ context.Context, chatID int64) error {
	f.ensured = append(f.ensured, chatID)
	return nil
}
func (f *fakeScheduler) RemoveJob(chatID int64) { f.removed = append(f.removed, chatID) }

type fakeProcessor struct {
	mu        sync.Mutex
	processed []int64
	done      chan struct{}
}

func (p *fakeProcessor) Process(_ context.Context, chatID int64) error {
	p.mu.Lock()
	p.processed = append(p.processed, chatID)
	p.mu.Unlock()
	if p.done != nil {
		close(p.done)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBot(store *fakeStore) (*Bot, *fakeAPI, *fakeScheduler, *fakeProcessor) {
	api := &fakeAPI{}
	sched := &fakeScheduler{}
	proc := &fakeProcessor{}
	b := New(api, store, sched, proc, time.Second, discardLogger())
	return b, api, sched, proc
}

func message(chatID int64, text string) *telegram.Message {
	return &telegram.Message{Text: text, Chat: telegram.Chat{ID: chatID}}
}

func TestStartBeginsOnboarding(t *testing.T) {
	b, api, _, _ := newTestBot(newFakeStore())

	b.handleMessage(context.Background(), message(42, "/start"))

	if !strings.Contains(api.lastSent(), "Welcome") {
		t.Errorf("reply = %q", api.lastSent())
	}
	if _, ok := b.conversations[42]; !ok {
		t.Error("expected a conversation for chat 42")
	}
}

func TestStartWhenAlreadySubscribed(t *testing.T) {
	store := newFakeStore(&model.Subscriber{ChatID: 42, Roles: []string{"software"}})
	b, api, _, _ := newTestBot(store)

	b.handleMessage(context.Background(), message(42, "/start"))

	if !strings.Contains(api.lastSent(), "already subscribed") {
		t.Errorf("reply = %q", api.lastSent())
	}
	if _, ok := b.conversations[42]; ok {
		t.Error("no conversation should start for an existing subscriber")
	}
}

func TestOnboardingPersistsAndSchedules(t *testing.T) {
	store := newFakeStore()
	b, api, sched, proc := newTestBot(store)
	proc.done = make(chan struct{})

	ctx := context.Background()
	for _, text := range []string{
		"/start",
		"software", "done",
		"Jordan Seet", "jordan@example.com", "+6591234567",
		"01-06-2026", "31-08-2026", "CS undergrad.",
	} {
		b.handleMessage(ctx, message(42, text))
	}

	if !strings.Contains(api.lastSent(), "Registration complete") {
		t.Errorf("final reply = %q", api.lastSent())
	}

	sub, _ := store.Get(42)
	if sub == nil {
		t.Fatal("subscriber not persisted")
	}
	if len(sub.Roles) != 1 || sub.Roles[0] != "software" {
		t.Errorf("Roles = %v", sub.Roles)
	}
	if sub.Profile.Name != "Jordan Seet" {
		t.Errorf("Name = %q", sub.Profile.Name)
	}
	if len(sched.ensured) != 1 || sched.ensured[0] != 42 {
		t.Errorf("ensured jobs = %v, want [42]", sched.ensured)
	}

	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		t.Fatal("seed check never ran")
	}
}

func TestStopDeletesSubscriberAndJob(t *testing.T) {
	store := newFakeStore(&model.Subscriber{ChatID: 42, Roles: []string{"software"}})
	b, api, sched, _ := newTestBot(store)

	b.handleMessage(context.Background(), message(42, "/stop"))

	if !strings.Contains(api.lastSent(), "unsubscribed") {
		t.Errorf("reply = %q", api.lastSent())
	}
	if sub, _ := store.Get(42); sub != nil {
		t.Error("subscriber should be deleted")
	}
	if len(sched.removed) != 1 || sched.removed[0] != 42 {
		t.Errorf("removed jobs = %v, want [42]", sched.removed)
	}
}

func TestStopWhenNotSubscribed(t *testing.T) {
	b, api, sched, _ := newTestBot(newFakeStore())

	b.handleMessage(context.Background(), message(42, "/stop"))

	if !strings.Contains(api.lastSent(), "not subscribed") {
		t.Errorf("reply = %q", api.lastSent())
	}
	if len(sched.removed) != 0 {
		t.Errorf("removed jobs = %v, want none", sched.removed)
	}
}

func TestDelRoleRemovesRole(t *testing.T) {
	store := newFakeStore(&model.Subscriber{ChatID: 42, Roles: []string{"software", "data"}})
	b, api, _, _ := newTestBot(store)

	b.handleMessage(context.Background(), message(42, "/delrole Data"))

	if !strings.Contains(api.lastSent(), "Removed 'data'") {
		t.Errorf("reply = %q", api.lastSent())
	}
	sub, _ := store.Get(42)
	if len(sub.Roles) != 1 || sub.Roles[0] != "software" {
		t.Errorf("Roles = %v", sub.Roles)
	}
}

func TestDelRoleLastRoleKeepsSubscription(t *testing.T) {
	store := newFakeStore(&model.Subscriber{ChatID: 42, Roles: []string{"software"}})
	b, api, sched, _ := newTestBot(store)

	b.handleMessage(context.Background(), message(42, "/delrole software"))

	if !strings.Contains(api.lastSent(), "paused") {
		t.Errorf("reply = %q", api.lastSent())
	}
	sub, _ := store.Get(42)
	if sub == nil {
		t.Fatal("subscriber should survive losing the last role")
	}
	if len(sub.Roles) != 0 {
		t.Errorf("Roles = %v, want empty", sub.Roles)
	}
	if len(sched.removed) != 0 {
		t.Error("job should not be removed when the last role goes")
	}
}

func TestAddRoleRequiresSubscription(t *testing.T) {
	b, api, _, _ := newTestBot(newFakeStore())

	b.handleMessage(context.Background(), message(42, "/addrole"))

	if !strings.Contains(api.lastSent(), "subscribe first") {
		t.Errorf("reply = %q", api.lastSent())
	}
}

func TestAddRolePersistsOnDone(t *testing.T) {
	store := newFakeStore(&model.Subscriber{ChatID: 42, Roles: []string{"software"}})
	b, _, _, _ := newTestBot(store)

	ctx := context.Background()
	b.handleMessage(ctx, message(42, "/addrole"))
	b.handleMessage(ctx, message(42, "finance"))
	b.handleMessage(ctx, message(42, "done"))

	sub, _ := store.Get(42)
	if len(sub.Roles) != 2 || sub.Roles[1] != "finance" {
		t.Errorf("Roles = %v, want [software finance]", sub.Roles)
	}
}

func TestUnknownCommand(t *testing.T) {
	b, api, _, _ := newTestBot(newFakeStore())

	b.handleMessage(context.Background(), message(42, "/frobnicate"))

	if !strings.Contains(api.lastSent(), "Unknown command") {
		t.Errorf("reply = %q", api.lastSent())
	}
}

func TestFreeTextWithoutConversation(t *testing.T) {
	b, api, _, _ := newTestBot(newFakeStore())

	b.handleMessage(context.Background(), message(42, "hello"))

	if !strings.Contains(api.lastSent(), "/start") {
		t.Errorf("reply = %q", api.lastSent())
	}
}

func TestRunAdvancesOffset(t *testing.T) {
	api := &fakeAPI{updates: [][]telegram.Update{
		{
			{UpdateID: 10, Message: message(42, "/help")},
			{UpdateID: 11, Message: message(42, "/help")},
		},
	}}
	b := New(api, newFakeStore(), &fakeScheduler{}, &fakeProcessor{}, time.Second, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		api.mu.Lock()
		n := len(api.offsets)
		api.mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("second poll never happened")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	api.mu.Lock()
	defer api.mu.Unlock()
	if api.offsets[0] != 0 {
		t.Errorf("first offset = %d, want 0", api.offsets[0])
	}
	if api.offsets[1] != 12 {
		t.Errorf("second offset = %d, want 12 (highest update id + 1)", api.offsets[1])
	}
}
