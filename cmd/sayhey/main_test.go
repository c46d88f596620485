package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sayhey/internal/domain"
	"sayhey/internal/usecase"
)

func setupEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("SAYHEY_BASE_URL", baseURL)
	t.Setenv("SAYHEY_STATE_PATH", filepath.Join(t.TempDir(), "state.db"))
	t.Setenv("SAYHEY_ENDPOINT_PARAM", "")
	t.Setenv("SAYHEY_ARCHIVE_TABLE", "")
	t.Setenv("SAYHEY_LOG_LEVEL", "error")
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"chat", "send", "whoami", "history"} {
		require.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestSendCmd_RoundTrip(t *testing.T) {
	var got domain.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"You're not alone."}`))
	}))
	defer srv.Close()
	setupEnv(t, srv.URL)

	out, err := runCmd(t, "send", "--user-id", "user-7", "I", "feel", "stuck")
	require.NoError(t, err)
	require.Contains(t, out, "SayHey: You're not alone.")
	require.Equal(t, domain.ChatRequest{Message: "I feel stuck", UserID: "user-7"}, got)
}

func TestSendCmd_FallbackFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`internal error`))
	}))
	defer srv.Close()
	setupEnv(t, srv.URL)

	out, err := runCmd(t, "send", "hello")
	require.Error(t, err)
	require.Contains(t, out, usecase.FallbackReply)
}

func TestSendCmd_BlankMessage(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1")
	_, err := runCmd(t, "send", "   ")
	var ucErr *usecase.Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, usecase.ErrorInvalidInput, ucErr.Code)
}

func TestWhoamiCmd_StableAcrossRuns(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1")

	first, err := runCmd(t, "whoami")
	require.NoError(t, err)
	require.Regexp(t, `^user-\d+\n$`, first)

	second, err := runCmd(t, "whoami")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestHistoryCmd_RequiresArchive(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1")
	_, err := runCmd(t, "history")
	require.ErrorContains(t, err, "SAYHEY_ARCHIVE_TABLE")
}
