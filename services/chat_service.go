package services

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	SendDirect(ctx context.Context, from, to, content string, msgType domain.MessageType) (domain.Message, error)
	SendGroup(ctx context.Context, from, groupID, content string, msgType domain.MessageType) (domain.Message, error)
	AddReaction(ctx context.Context, messageID uuid.UUID, userID, emoji string) error
	RemoveReaction(ctx context.Context, messageID uuid.UUID, userID, emoji string) error
	MarkRead(ctx context.Context, readerID, otherUserID string) (int, error)
	ListDirect(ctx context.Context, userA, userB string, before time.Time, limit int) ([]domain.Message, error)
	ListGroup(ctx context.Context, groupID string, before time.Time, limit int) ([]domain.Message, error)
}

// ChatService drives the persist-then-fan-out sequence for every realtime
// operation. Persistence always completes before any delivery event is
// pushed, so an unreachable recipient can still fetch the record later; the
// reverse failure mode does not exist.
type ChatService struct {
	log        *slog.Logger
	messages   contract.IMessageRepository
	groups     contract.IGroupRepository
	users      contract.IUserRepository
	dispatcher contract.IDispatcher
	metrics    *observability.Metrics
	pageLimit  int
}

func NewChatService(log *slog.Logger, messages contract.IMessageRepository,
	groups contract.IGroupRepository, users contract.IUserRepository,
	dispatcher contract.IDispatcher, metrics *observability.Metrics,
	pageLimit int) *ChatService {
	return &ChatService{
		log:        log,
		messages:   messages,
		groups:     groups,
		users:      users,
		dispatcher: dispatcher,
		metrics:    metrics,
		pageLimit:  pageLimit,
	}
}

// SendDirect persists a 1:1 message and fans it out to both parties.
func (s *ChatService) SendDirect(ctx context.Context, from, to, content string,
	msgType domain.MessageType) (domain.Message, error) {
	msg := s.newMessage(from, content, msgType)
	msg.To = to
	if err := msg.Validate(); err != nil {
		s.metrics.RejectedSends.WithLabelValues("validation").Inc()
		return domain.Message{}, err
	}
	if err := s.messages.Store(msg); err != nil {
		return domain.Message{}, err
	}
	s.metrics.MessagesPersisted.WithLabelValues("direct").Inc()
	s.dispatcher.DeliverDirect(ctx, msg)
	return msg, nil
}

// SendGroup persists a group message and fans it out to the room. The
// sender must currently sit on the persisted roster; anyone else is turned
// away before a single byte is written.
func (s *ChatService) SendGroup(ctx context.Context, from, groupID, content string,
	msgType domain.MessageType) (domain.Message, error) {
	group, err := s.groups.Find(groupID)
	if err != nil {
		s.metrics.RejectedSends.WithLabelValues("group_missing").Inc()
		return domain.Message{}, err
	}
	if !group.HasMember(from) {
		s.metrics.RejectedSends.WithLabelValues("not_member").Inc()
		return domain.Message{}, errors.ErrNotGroupMember
	}

	msg := s.newMessage(from, content, msgType)
	msg.Group = groupID
	if err := msg.Validate(); err != nil {
		s.metrics.RejectedSends.WithLabelValues("validation").Inc()
		return domain.Message{}, err
	}
	if err := s.messages.Store(msg); err != nil {
		return domain.Message{}, err
	}
	s.metrics.MessagesPersisted.WithLabelValues("group").Inc()
	s.dispatcher.DeliverGroup(ctx, msg)
	return msg, nil
}

// AddReaction records userID under emoji on the target message, then fans
// the full reaction set out to the owning message's recipients. Re-adding
// an existing reaction changes nothing but still re-broadcasts the set, so
// every session converges on the same state.
func (s *ChatService) AddReaction(ctx context.Context, messageID uuid.UUID, userID, emoji string) error {
	msg, err := s.messages.Mutate(messageID, func(m *domain.Message) bool {
		return m.AddReaction(userID, emoji)
	})
	if err != nil {
		return err
	}
	s.dispatcher.DeliverReactions(ctx, msg, msg.Reactions)
	return nil
}

// RemoveReaction drops userID from the emoji entry; removing a reaction the
// user never placed is a no-op, not an error. Fans out like AddReaction.
func (s *ChatService) RemoveReaction(ctx context.Context, messageID uuid.UUID, userID, emoji string) error {
	msg, err := s.messages.Mutate(messageID, func(m *domain.Message) bool {
		return m.RemoveReaction(userID, emoji)
	})
	if err != nil {
		return err
	}
	s.dispatcher.DeliverReactions(ctx, msg, msg.Reactions)
	return nil
}

// MarkRead bulk-marks everything otherUserID sent to readerID as read.
// This is a local read-model update only; no session is notified.
func (s *ChatService) MarkRead(_ context.Context, readerID, otherUserID string) (int, error) {
	return s.messages.MarkRead(readerID, otherUserID)
}

func (s *ChatService) ListDirect(_ context.Context, userA, userB string,
	before time.Time, limit int) ([]domain.Message, error) {
	return s.messages.ListDirect(userA, userB, before, s.clampLimit(limit))
}

func (s *ChatService) ListGroup(_ context.Context, groupID string,
	before time.Time, limit int) ([]domain.Message, error) {
	return s.messages.ListGroup(groupID, before, s.clampLimit(limit))
}

// newMessage stamps a fresh record with the resolved sender identity. A
// sender missing from the user store still gets its message through with a
// bare id; display resolution is best-effort.
func (s *ChatService) newMessage(from, content string, msgType domain.MessageType) domain.Message {
	sender := domain.Sender{ID: from}
	if user, err := s.users.Find(from); err == nil {
		sender = user.AsSender()
	} else {
		s.log.Debug("sender display fields unresolved", "user_id", from, "error", err)
	}
	return domain.Message{
		ID:        uuid.New(),
		From:      sender,
		Content:   content,
		Type:      lo.Ternary(msgType == "", domain.TypeText, msgType),
		CreatedAt: time.Now().UTC(),
		Reactions: []domain.Reaction{},
	}
}

func (s *ChatService) clampLimit(limit int) int {
	if limit <= 0 || limit > s.pageLimit {
		return s.pageLimit
	}
	return limit
}
