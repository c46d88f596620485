package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sayhey/internal/domain"
)

type Sender interface {
	SendMessage(ctx context.Context, in domain.ChatRequest) (domain.ChatResponse, error)
}

type IdentityProvider interface {
	UserID(ctx context.Context) (string, error)
}

type Archiver interface {
	SaveExchange(ctx context.Context, ex domain.Exchange) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Reply is the bot message appended by Send.
type Reply struct {
	Message          domain.Message
	Fallback         bool
	SessionCancelled bool
}

// Conversation is the ordered on-screen history plus the idle/waiting state.
// At most one exchange is in flight; the lock is never held across the
// network call.
type Conversation struct {
	sender  Sender
	archive Archiver
	userID  string
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	messages []domain.Message
	waiting  bool
}

type ConversationOption func(*Conversation)

// WithArchive records each successful exchange. Archive failures are logged
// and otherwise ignored.
func WithArchive(a Archiver) ConversationOption {
	return func(c *Conversation) {
		c.archive = a
	}
}

func WithLogger(logger *slog.Logger) ConversationOption {
	return func(c *Conversation) {
		c.logger = logger
	}
}

// NewConversation resolves the user id once and seeds the history with the
// greeting.
func NewConversation(ctx context.Context, sender Sender, ids IdentityProvider, opts ...ConversationOption) (*Conversation, error) {
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if ids == nil {
		return nil, errors.New("usecase: identity provider must not be nil")
	}
	userID, err := ids.UserID(ctx)
	if err != nil {
		return nil, newError(ErrorInternal, "identity_error", err)
	}

	c := &Conversation{
		sender: sender,
		userID: userID,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.messages = []domain.Message{c.newMessage(Greeting, false)}
	return c, nil
}

// UserID returns the identifier sent with every request.
func (c *Conversation) UserID() string {
	return c.userID
}

// Messages returns a copy of the history in display order.
func (c *Conversation) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Waiting reports whether a reply is pending.
func (c *Conversation) Waiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

// Send submits one user message. Blank input and submissions while a reply
// is pending are rejected without touching the history. Transport and network
// failures never surface as errors: the fallback reply is appended instead.
func (c *Conversation) Send(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, newError(ErrorInvalidInput, "empty_message", nil)
	}

	c.mu.Lock()
	if c.waiting {
		c.mu.Unlock()
		return Reply{}, newError(ErrorBusy, "reply_pending", nil)
	}
	c.waiting = true
	c.messages = append(c.messages, c.newMessage(text, true))
	c.mu.Unlock()

	resp, err := c.sender.SendMessage(ctx, domain.ChatRequest{Message: text, UserID: c.userID})

	reply := Reply{}
	if err != nil {
		args := []any{"err", err, "user_id", c.userID}
		if status, ok := upstreamStatusCode(err); ok {
			args = append(args, "status", status)
		}
		c.logger.Error("error sending message", args...)
		reply.Fallback = true
		reply.Message = c.newMessage(FallbackReply, false)
	} else {
		reply.SessionCancelled = resp.Cancelled()
		reply.Message = c.newMessage(resp.Response, false)
	}

	c.mu.Lock()
	c.messages = append(c.messages, reply.Message)
	c.waiting = false
	c.mu.Unlock()

	if !reply.Fallback {
		c.archiveExchange(ctx, text, reply)
	}
	return reply, nil
}

func (c *Conversation) archiveExchange(ctx context.Context, question string, reply Reply) {
	if c.archive == nil {
		return
	}
	err := c.archive.SaveExchange(ctx, domain.Exchange{
		UserID:           c.userID,
		Question:         question,
		Answer:           reply.Message.Text,
		SessionCancelled: reply.SessionCancelled,
		At:               reply.Message.Timestamp,
	})
	if err != nil {
		c.logger.Warn("failed to archive exchange", "err", err, "user_id", c.userID)
	}
}

func (c *Conversation) newMessage(text string, isUser bool) domain.Message {
	return domain.Message{
		ID:        newUUID(),
		Text:      text,
		IsUser:    isUser,
		Timestamp: c.now(),
	}
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
