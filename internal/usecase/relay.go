package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"sayhey/internal/domain"
)

const defaultMaxMessageLen = 4000

// RelayService forwards validated chat requests to the backend on behalf of
// the Lambda relay.
type RelayService struct {
	sender        Sender
	maxMessageLen int
}

func NewRelayService(sender Sender, maxMessageLen int) (*RelayService, error) {
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessageLen
	}
	return &RelayService{sender: sender, maxMessageLen: maxMessageLen}, nil
}

// Forward trims and validates the request, then performs exactly one
// backend exchange.
func (s *RelayService) Forward(ctx context.Context, in domain.ChatRequest) (domain.ChatResponse, error) {
	in.Message = strings.TrimSpace(in.Message)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.Message == "" {
		return domain.ChatResponse{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(in.Message) > s.maxMessageLen {
		return domain.ChatResponse{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	if in.UserID == "" {
		return domain.ChatResponse{}, newError(ErrorInvalidInput, "missing_user_id", nil)
	}

	resp, err := s.sender.SendMessage(ctx, in)
	if err != nil {
		status, ok := upstreamStatusCode(err)
		switch {
		case ok && status == http.StatusTooManyRequests:
			return domain.ChatResponse{}, newError(ErrorRateLimited, "backend_rate_limited", err)
		case ok:
			return domain.ChatResponse{}, newError(ErrorUpstream, "backend_status_error", err)
		default:
			return domain.ChatResponse{}, newError(ErrorUpstream, "backend_error", err)
		}
	}
	return resp, nil
}
