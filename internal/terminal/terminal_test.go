package terminal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ergochat/readline"
	"github.com/stretchr/testify/require"

	"sayhey/internal/domain"
	"sayhey/internal/usecase"
)

type scriptedReader struct {
	lines []string
	end   error
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		if r.end != nil {
			return "", r.end
		}
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

type fakeConversation struct {
	history []domain.Message
	replies []usecase.Reply
	errs    []error
	sent    []string
}

func (f *fakeConversation) Send(_ context.Context, text string) (usecase.Reply, error) {
	f.sent = append(f.sent, text)
	i := len(f.sent) - 1
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return usecase.Reply{}, err
	}
	return f.replies[i], nil
}

func (f *fakeConversation) Messages() []domain.Message {
	return f.history
}

var at = time.Date(2026, 10, 19, 9, 5, 0, 0, time.UTC)

func botMessage(text string) domain.Message {
	return domain.Message{ID: "m", Text: text, Timestamp: at}
}

func TestRun_PrintsHistoryAndReplies(t *testing.T) {
	conv := &fakeConversation{
		history: []domain.Message{botMessage("hello there")},
		replies: []usecase.Reply{{Message: botMessage("I hear you.")}},
	}
	var out bytes.Buffer
	err := Run(context.Background(), conv, &scriptedReader{lines: []string{"  ", "I feel lonely"}}, &out)
	require.NoError(t, err)

	require.Equal(t, []string{"I feel lonely"}, conv.sent)
	require.Equal(t,
		"[09:05] SayHey: hello there\n"+
			"SayHey is typing...\n"+
			"[09:05] SayHey: I hear you.\n",
		out.String())
}

func TestRun_StopsOnQuitCommand(t *testing.T) {
	conv := &fakeConversation{}
	err := Run(context.Background(), conv, &scriptedReader{lines: []string{"/quit", "never sent"}}, io.Discard)
	require.NoError(t, err)
	require.Empty(t, conv.sent)
}

func TestRun_StopsOnInterrupt(t *testing.T) {
	conv := &fakeConversation{}
	err := Run(context.Background(), conv, &scriptedReader{end: readline.ErrInterrupt}, io.Discard)
	require.NoError(t, err)
}

func TestRun_PropagatesReadErrors(t *testing.T) {
	err := Run(context.Background(), &fakeConversation{}, &scriptedReader{end: errors.New("tty gone")}, io.Discard)
	require.ErrorContains(t, err, "tty gone")
}

func TestRun_SkipsRejectedInput(t *testing.T) {
	conv := &fakeConversation{
		errs:    []error{&usecase.Error{Code: usecase.ErrorBusy, Reason: "reply_pending"}, nil},
		replies: []usecase.Reply{{}, {Message: botMessage("ok")}},
	}
	var out bytes.Buffer
	err := Run(context.Background(), conv, &scriptedReader{lines: []string{"one", "two"}}, &out)
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, conv.sent)
	require.Contains(t, out.String(), "SayHey: ok")
}

func TestRun_ReturnsUnexpectedErrors(t *testing.T) {
	conv := &fakeConversation{errs: []error{errors.New("boom")}}
	err := Run(context.Background(), conv, &scriptedReader{lines: []string{"hi"}}, io.Discard)
	require.ErrorContains(t, err, "boom")
}

func TestRun_SessionCancelledNotice(t *testing.T) {
	conv := &fakeConversation{replies: []usecase.Reply{{Message: botMessage("Goodbye."), SessionCancelled: true}}}
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), conv, &scriptedReader{lines: []string{"bye"}}, &out))
	require.Contains(t, out.String(), "(SayHey ended this session)")
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	conv := &fakeConversation{}
	require.NoError(t, Run(ctx, conv, &scriptedReader{lines: []string{"hi"}}, io.Discard))
	require.Empty(t, conv.sent)
}

func TestPrintMessage_UserSpeaker(t *testing.T) {
	var out bytes.Buffer
	PrintMessage(&out, domain.Message{Text: "hi", IsUser: true, Timestamp: at})
	require.Equal(t, "[09:05] You: hi\n", out.String())
}

func TestPrintExchange(t *testing.T) {
	var out bytes.Buffer
	PrintExchange(&out, domain.Exchange{Question: "q", Answer: "a", SessionCancelled: true, At: at})
	require.Contains(t, out.String(), "You: q\n")
	require.Contains(t, out.String(), "SayHey: a\n")
	require.Contains(t, out.String(), "(SayHey ended this session)")
}
