package chathub_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"safecircle/backend/internal/chathub"
	"safecircle/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type delivery struct {
	ConnID  string
	Event   string
	Payload interface{}
}

// fakeEmitter records targeted deliveries and broadcasts separately.
type fakeEmitter struct {
	mu         sync.Mutex
	deliveries []delivery
	broadcasts []delivery
}

func (e *fakeEmitter) Emit(connID, event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deliveries = append(e.deliveries, delivery{ConnID: connID, Event: event, Payload: payload})
}

func (e *fakeEmitter) Broadcast(event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcasts = append(e.broadcasts, delivery{Event: event, Payload: payload})
}

// sent returns the payloads of event delivered to connID, in order.
func (e *fakeEmitter) sent(connID, event string) []interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []interface{}
	for _, d := range e.deliveries {
		if d.ConnID == connID && d.Event == event {
			out = append(out, d.Payload)
		}
	}
	return out
}

func (e *fakeEmitter) to(connID string) []delivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []delivery
	for _, d := range e.deliveries {
		if d.ConnID == connID {
			out = append(out, d)
		}
	}
	return out
}

func (e *fakeEmitter) broadcast(event string) []interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []interface{}
	for _, d := range e.broadcasts {
		if d.Event == event {
			out = append(out, d.Payload)
		}
	}
	return out
}

// errorsTo returns the error messages sent to connID.
func (e *fakeEmitter) errorsTo(connID string) []string {
	var out []string
	for _, p := range e.sent(connID, chathub.EventError) {
		out = append(out, p.(models.ErrorPayload).Message)
	}
	return out
}

type fakeNotifier struct {
	mu    sync.Mutex
	rooms []models.ChatRoom
}

func (n *fakeNotifier) ChatRequestWaiting(_ context.Context, room models.ChatRoom) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms = append(n.rooms, room)
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store    *MockStorage
	emitter  *fakeEmitter
	notifier *fakeNotifier
	registry *chathub.Registry
	coord    *chathub.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    new(MockStorage),
		emitter:  &fakeEmitter{},
		notifier: &fakeNotifier{},
		registry: chathub.NewRegistry(),
	}
	f.coord = chathub.NewCoordinator(f.store, f.registry, f.emitter, nil,
		chathub.WithNotifier(f.notifier),
		chathub.WithClock(func() time.Time { return fixedNow }))
	t.Cleanup(func() { f.store.AssertExpectations(t) })
	return f
}

// online puts userID on connID without going through Connect.
func (f *fixture) online(userID, connID string, role models.Role) {
	f.registry.Connect(userID, connID, role)
}

func strPtr(s string) *string { return &s }

func acceptedRoom(id, userID, counsellorID string) *models.ChatRoom {
	return &models.ChatRoom{
		ID:           id,
		UserID:       userID,
		ProblemType:  "anxiety",
		Status:       models.RoomAccepted,
		CounsellorID: strPtr(counsellorID),
	}
}

// expectMessage stubs CreateMessage, assigning an id and capturing the message.
func (f *fixture) expectMessage(out *[]*models.Message) *mock.Call {
	return f.store.On("CreateMessage", mock.Anything, mock.AnythingOfType("*models.Message")).
		Run(func(args mock.Arguments) {
			msg := args.Get(1).(*models.Message)
			msg.ID = "msg-" + string(rune('a'+len(*out)))
			*out = append(*out, msg)
		}).Return(nil)
}
