package conversations

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"evms-backend/internal/auth"
	"evms-backend/internal/events"
	"evms-backend/internal/httpx"
	"evms-backend/internal/notifications"
	"evms-backend/internal/users"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound       = errors.New("conversation not found")
	ErrForbidden      = errors.New("forbidden")
	ErrAlreadyClaimed = errors.New("conversation already claimed")
	ErrClosed         = errors.New("conversation is closed")
	ErrInvalidStatus  = errors.New("invalid status")
)

type UserReader interface {
	Get(ctx context.Context, id string) (users.User, error)
}

type Notifier interface {
	SendConversationClaimed(ctx context.Context, notice notifications.ConversationNotice) (string, error)
}

type Deps struct {
	Users    UserReader
	Events   events.Publisher
	Notifier Notifier
	Hub      Broadcaster
	Log      *slog.Logger
}

type Service struct {
	repo     Repository
	users    UserReader
	events   events.Publisher
	notifier Notifier
	hub      Broadcaster
	log      *slog.Logger
	now      func() time.Time
	async    func(func())
}

func NewService(repo Repository, deps Deps) *Service {
	s := &Service{
		repo:     repo,
		users:    deps.Users,
		events:   deps.Events,
		notifier: deps.Notifier,
		hub:      deps.Hub,
		log:      deps.Log,
		now:      time.Now,
		async:    func(f func()) { go f() },
	}
	if s.events == nil {
		s.events = events.NewNoop()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *Service) Create(ctx context.Context, caller auth.Principal, req CreateRequest) (Created, error) {
	if !caller.Is(auth.RoleCustomer) {
		return Created{}, ErrForbidden
	}

	now := stamp(s.now())
	conv := Conversation{
		ID:            primitive.NewObjectID().Hex(),
		CustomerID:    caller.UserID,
		Subject:       strings.TrimSpace(req.Subject),
		Status:        StatusOpen,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return Created{}, err
	}

	msg := Message{
		ID:             primitive.NewObjectID().Hex(),
		ConversationID: conv.ID,
		SenderID:       caller.UserID,
		SenderRole:     caller.Role,
		Content:        strings.TrimSpace(req.Message),
		CreatedAt:      now,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		if delErr := s.repo.Delete(ctx, conv.ID); delErr != nil {
			s.log.Error("conversations create: cleanup failed",
				slog.String("conversation_id", conv.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return Created{}, err
	}
	return Created{Conversation: conv, FirstMessage: msg}, nil
}

func (s *Service) List(ctx context.Context, caller auth.Principal, filter ListFilter, page httpx.Page) ([]Conversation, int64, error) {
	switch {
	case caller.Is(auth.RoleAdmin):
	case caller.Is(auth.RoleStaff):
		filter.CustomerID = ""
		filter.VisibleToStaff = caller.UserID
	case caller.Is(auth.RoleCustomer):
		filter.CustomerID = caller.UserID
		filter.VisibleToStaff = ""
	default:
		return nil, 0, ErrForbidden
	}
	for i, st := range filter.Statuses {
		st = strings.ToLower(strings.TrimSpace(st))
		if !IsValidStatus(st) {
			return nil, 0, ErrInvalidStatus
		}
		filter.Statuses[i] = st
	}

	items, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, caller auth.Principal, id string) (Conversation, error) {
	conv, err := s.get(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if !canView(caller, conv) {
		return Conversation{}, ErrForbidden
	}
	return conv, nil
}

// Claim hands an open conversation to the calling staff member. Of several concurrent
// claimers exactly one wins; the others get ErrAlreadyClaimed.
func (s *Service) Claim(ctx context.Context, caller auth.Principal, id string) (Conversation, error) {
	if !caller.Is(auth.RoleStaff) {
		return Conversation{}, ErrForbidden
	}
	id = strings.TrimSpace(id)

	conv, err := s.repo.Claim(ctx, id, caller.UserID, stamp(s.now()))
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return Conversation{}, err
		}
		if _, getErr := s.get(ctx, id); getErr != nil {
			return Conversation{}, getErr
		}
		return Conversation{}, ErrAlreadyClaimed
	}

	if s.hub != nil {
		s.hub.Broadcast(conv.ID, Frame{Type: FrameClaimed, Payload: conv})
		s.hub.Evict(conv.ID, conv.CustomerID, conv.StaffID)
	}
	s.afterWrite(events.ConversationClaimed, caller.UserID, conv, true)
	return conv, nil
}

func (s *Service) Close(ctx context.Context, caller auth.Principal, id string) (Conversation, error) {
	conv, err := s.get(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if !canClose(caller, conv) {
		return Conversation{}, ErrForbidden
	}
	if conv.Status == StatusClosed {
		return Conversation{}, ErrClosed
	}

	closed, err := s.repo.Close(ctx, conv.ID, stamp(s.now()))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Conversation{}, ErrClosed
		}
		return Conversation{}, err
	}

	if s.hub != nil {
		s.hub.Broadcast(closed.ID, Frame{Type: FrameClosed, Payload: closed})
		s.hub.CloseRoom(closed.ID)
	}
	s.afterWrite(events.ConversationClosed, caller.UserID, closed, false)
	return closed, nil
}

func (s *Service) Messages(ctx context.Context, caller auth.Principal, id string, page httpx.Page) ([]Message, int64, error) {
	conv, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.repo.ListMessages(ctx, conv.ID, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountMessages(ctx, conv.ID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) PostMessage(ctx context.Context, caller auth.Principal, id string, req MessageRequest) (Message, error) {
	conv, err := s.get(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if !canPost(caller, conv) {
		return Message{}, ErrForbidden
	}
	if conv.Status == StatusClosed {
		return Message{}, ErrClosed
	}

	msg := Message{
		ID:             primitive.NewObjectID().Hex(),
		ConversationID: conv.ID,
		SenderID:       caller.UserID,
		SenderRole:     caller.Role,
		Content:        strings.TrimSpace(req.Content),
		CreatedAt:      stamp(s.now()),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return Message{}, err
	}
	if err := s.repo.Touch(ctx, conv.ID, msg.CreatedAt); err != nil {
		return Message{}, err
	}

	if s.hub != nil {
		s.hub.Broadcast(conv.ID, Frame{Type: FrameMessage, Payload: msg})
	}
	return msg, nil
}

// Join checks that the caller may follow the conversation's live stream.
func (s *Service) Join(ctx context.Context, caller auth.Principal, id string) (Conversation, error) {
	conv, err := s.Get(ctx, caller, id)
	if err != nil {
		return Conversation{}, err
	}
	if conv.Status == StatusClosed {
		return Conversation{}, ErrClosed
	}
	return conv, nil
}

func (s *Service) get(ctx context.Context, id string) (Conversation, error) {
	conv, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	return conv, nil
}

func (s *Service) afterWrite(eventType, actorID string, conv Conversation, notify bool) {
	s.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()

		err := s.events.Publish(ctx, events.Event{
			Type:       eventType,
			Key:        conv.ID,
			ActorID:    actorID,
			OccurredAt: s.now().UTC(),
			Payload:    conv,
		})
		if err != nil {
			s.log.Warn("conversations: event publish failed",
				slog.String("event", eventType),
				slog.String("conversation_id", conv.ID),
				slog.String("error", err.Error()),
			)
		}

		if !notify || s.notifier == nil || s.users == nil {
			return
		}
		customer, err := s.users.Get(ctx, conv.CustomerID)
		if err != nil {
			s.log.Warn("conversations: notification skipped",
				slog.String("conversation_id", conv.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		notice := notifications.ConversationNotice{
			ConversationID: conv.ID,
			Subject:        conv.Subject,
			CustomerName:   customer.FullName,
			CustomerEmail:  customer.Email,
		}
		if staff, err := s.users.Get(ctx, conv.StaffID); err == nil {
			notice.StaffName = staff.FullName
		}
		if _, err := s.notifier.SendConversationClaimed(ctx, notice); err != nil {
			s.log.Warn("conversations: notification failed",
				slog.String("conversation_id", conv.ID),
				slog.String("error", err.Error()),
			)
		}
	})
}

func canView(caller auth.Principal, conv Conversation) bool {
	switch {
	case caller.Is(auth.RoleAdmin):
		return true
	case caller.Is(auth.RoleStaff):
		return conv.Status == StatusOpen || conv.StaffID == caller.UserID
	case caller.Is(auth.RoleCustomer):
		return conv.CustomerID == caller.UserID
	default:
		return false
	}
}

func canPost(caller auth.Principal, conv Conversation) bool {
	switch {
	case caller.Is(auth.RoleStaff):
		return conv.StaffID != "" && conv.StaffID == caller.UserID
	case caller.Is(auth.RoleCustomer):
		return conv.CustomerID == caller.UserID
	default:
		return false
	}
}

func canClose(caller auth.Principal, conv Conversation) bool {
	return caller.Is(auth.RoleAdmin) || canPost(caller, conv)
}

func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
