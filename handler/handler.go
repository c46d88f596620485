package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"sayhey/internal/domain"
	"sayhey/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type Forwarder interface {
	Forward(ctx context.Context, in domain.ChatRequest) (domain.ChatResponse, error)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handler serves POST /chat behind API Gateway and relays it to the chat
// backend.
type Handler struct {
	relay Forwarder
}

func NewHandler(relay Forwarder) (*Handler, error) {
	if relay == nil {
		return nil, errors.New("handler: relay must not be nil")
	}
	return &Handler{relay: relay}, nil
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event.Headers)
	log := slog.With("correlation_id", corrID, "path", event.Path)

	if event.HTTPMethod != "" && event.HTTPMethod != http.MethodPost {
		return respondError(corrID, http.StatusMethodNotAllowed, usecase.ErrorInvalidInput, "method not allowed"), nil
	}

	var in domain.ChatRequest
	if err := json.Unmarshal([]byte(event.Body), &in); err != nil {
		log.Warn("invalid request body", "err", err)
		return respondError(corrID, http.StatusBadRequest, usecase.ErrorInvalidInput, "request body must be a JSON chat request"), nil
	}

	out, err := h.relay.Forward(ctx, in)
	if err != nil {
		status, code := mapError(err)
		if status >= http.StatusInternalServerError {
			log.Error("relay failed", "err", err, "code", code)
		} else {
			log.Warn("relay rejected request", "err", err, "code", code)
		}
		return respondError(corrID, status, code, publicMessage(code)), nil
	}

	return respondJSON(corrID, http.StatusOK, out), nil
}

func mapError(err error) (int, usecase.ErrorCode) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, usecase.ErrorInternal
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, ucErr.Code
	case usecase.ErrorBusy:
		return http.StatusConflict, ucErr.Code
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, ucErr.Code
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, ucErr.Code
	default:
		return http.StatusInternalServerError, usecase.ErrorInternal
	}
}

func publicMessage(code usecase.ErrorCode) string {
	switch code {
	case usecase.ErrorInvalidInput:
		return "message and user_id are required"
	case usecase.ErrorBusy:
		return "a reply is already pending"
	case usecase.ErrorRateLimited:
		return "too many requests, try again shortly"
	case usecase.ErrorUpstream:
		return "chat backend unavailable"
	default:
		return "internal error"
	}
}

// correlationID reuses the caller's X-Correlation-Id, matched
// case-insensitively, or mints a new one.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}

func respondError(corrID string, status int, code usecase.ErrorCode, msg string) events.APIGatewayProxyResponse {
	return respondJSON(corrID, status, errorResponse{Error: string(code), Message: msg})
}

func respondJSON(corrID string, status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR","message":"internal error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}
