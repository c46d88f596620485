package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"sayhey/internal/domain"
	"sayhey/internal/usecase"
)

type stubRelay struct {
	out    domain.ChatResponse
	err    error
	in     domain.ChatRequest
	called bool
}

func (s *stubRelay) Forward(_ context.Context, in domain.ChatRequest) (domain.ChatResponse, error) {
	s.in = in
	s.called = true
	return s.out, s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/chat",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	cancelled := true
	relay := &stubRelay{out: domain.ChatResponse{Response: "hello", SessionCancelled: &cancelled}}
	h, err := NewHandler(relay)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"message":"How do I cope?","user_id":"user-1"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, domain.ChatRequest{Message: "How do I cope?", UserID: "user-1"}, relay.in)
	require.Equal(t, "application/json", resp.Headers["Content-Type"])
	require.JSONEq(t, `{"response":"hello","session_cancelled":true}`, resp.Body)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_InvalidBody(t *testing.T) {
	relay := &stubRelay{}
	h, err := NewHandler(relay)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.False(t, relay.called)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
}

func TestHandle_RejectsNonPost(t *testing.T) {
	relay := &stubRelay{}
	h, err := NewHandler(relay)
	require.NoError(t, err)

	event := makeEvent(`{"message":"hi","user_id":"user-1"}`)
	event.HTTPMethod = http.MethodGet
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.False(t, relay.called)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "busy", err: &usecase.Error{Code: usecase.ErrorBusy, Reason: "reply_pending"}, status: http.StatusConflict, code: string(usecase.ErrorBusy)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "backend_rate_limited"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "backend_status_error"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "identity_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := NewHandler(&stubRelay{err: tc.err})
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(`{"message":"hi","user_id":"user-1"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
			require.NotEmpty(t, out.Message)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h, err := NewHandler(&stubRelay{out: domain.ChatResponse{Response: "ok"}})
	require.NoError(t, err)

	event := makeEvent(`{"message":"hi","user_id":"user-1"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_ErrorResponsesCarryCorrelationID(t *testing.T) {
	h, err := NewHandler(&stubRelay{})
	require.NoError(t, err)

	event := makeEvent(`{`)
	event.Headers["X-Correlation-ID"] = "corr-456"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-456", resp.Headers["X-Correlation-Id"])
}
