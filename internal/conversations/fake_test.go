package conversations

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"evms-backend/internal/events"
	"evms-backend/internal/httpx"
	"evms-backend/internal/notifications"
	"evms-backend/internal/users"

	"go.mongodb.org/mongo-driver/mongo"
)

type memoryRepo struct {
	mu         sync.Mutex
	convs      map[string]Conversation
	messages   []Message
	messageErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{convs: map[string]Conversation{}}
}

func (m *memoryRepo) put(conv Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[conv.ID] = conv
}

func (m *memoryRepo) Create(_ context.Context, conv Conversation) error {
	m.put(conv)
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, id)
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return Conversation{}, mongo.ErrNoDocuments
	}
	return c, nil
}

func (m *memoryRepo) matches(c Conversation, f ListFilter) bool {
	if f.CustomerID != "" && c.CustomerID != f.CustomerID {
		return false
	}
	if f.VisibleToStaff != "" && c.Status != StatusOpen && c.StaffID != f.VisibleToStaff {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			found = found || st == c.Status
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *memoryRepo) List(_ context.Context, f ListFilter, _ httpx.Page) ([]Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Conversation{}
	for _, c := range m.convs {
		if m.matches(c, f) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) Count(ctx context.Context, f ListFilter) (int64, error) {
	items, _ := m.List(ctx, f, httpx.Page{})
	return int64(len(items)), nil
}

func (m *memoryRepo) Claim(_ context.Context, id, staffID string, at time.Time) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok || c.Status != StatusOpen || c.StaffID != "" {
		return Conversation{}, mongo.ErrNoDocuments
	}
	c.StaffID = staffID
	c.Status = StatusAssigned
	c.UpdatedAt = at
	m.convs[id] = c
	return c, nil
}

func (m *memoryRepo) Close(_ context.Context, id string, at time.Time) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok || c.Status == StatusClosed {
		return Conversation{}, mongo.ErrNoDocuments
	}
	c.Status = StatusClosed
	c.UpdatedAt = at
	m.convs[id] = c
	return c, nil
}

func (m *memoryRepo) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.convs[id]
	c.LastMessageAt = at
	c.UpdatedAt = at
	m.convs[id] = c
	return nil
}

func (m *memoryRepo) CreateMessage(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messageErr != nil {
		return m.messageErr
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memoryRepo) ListMessages(_ context.Context, conversationID string, _ httpx.Page) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Message{}
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memoryRepo) CountMessages(ctx context.Context, conversationID string) (int64, error) {
	items, _ := m.ListMessages(ctx, conversationID, httpx.Page{})
	return int64(len(items)), nil
}

type staticUsers map[string]users.User

func (s staticUsers) Get(_ context.Context, id string) (users.User, error) {
	u, ok := s[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

type recordingHub struct {
	mu     sync.Mutex
	frames  []string
	evicted []string
	closed  []string
}

func (h *recordingHub) Broadcast(conversationID string, frame Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, conversationID+":"+frame.Type)
}

func (h *recordingHub) Evict(conversationID string, keep ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evicted = append(h.evicted, conversationID+":"+strings.Join(keep, ","))
}

func (h *recordingHub) CloseRoom(conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, conversationID)
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, e.Type)
	return nil
}

type recordingNotifier struct {
	notices []notifications.ConversationNotice
}

func (n *recordingNotifier) SendConversationClaimed(_ context.Context, notice notifications.ConversationNotice) (string, error) {
	n.notices = append(n.notices, notice)
	return "msg-1", nil
}
