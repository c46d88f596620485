package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ergochat/readline"

	"sayhey/internal/domain"
	"sayhey/internal/usecase"
)

const (
	typingIndicator = "SayHey is typing..."
	cancelledNotice = "(SayHey ended this session)"
	timeLayout      = "15:04"
)

// LineReader is satisfied by *readline.Instance.
type LineReader interface {
	Readline() (string, error)
}

type Conversation interface {
	Send(ctx context.Context, text string) (usecase.Reply, error)
	Messages() []domain.Message
}

// Run prints the current history and then relays each entered line until
// EOF, an interrupt, /quit, or context cancellation.
func Run(ctx context.Context, conv Conversation, in LineReader, out io.Writer) error {
	for _, m := range conv.Messages() {
		PrintMessage(out, m)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := in.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("terminal: read input: %w", err)
		}

		text := strings.TrimSpace(line)
		switch text {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		fmt.Fprintln(out, typingIndicator)
		reply, err := conv.Send(ctx, text)
		if err != nil {
			var ucErr *usecase.Error
			if errors.As(err, &ucErr) && (ucErr.Code == usecase.ErrorInvalidInput || ucErr.Code == usecase.ErrorBusy) {
				continue
			}
			return err
		}
		PrintMessage(out, reply.Message)
		if reply.SessionCancelled {
			fmt.Fprintln(out, cancelledNotice)
		}
	}
}

func PrintMessage(w io.Writer, m domain.Message) {
	speaker := "SayHey"
	if m.IsUser {
		speaker = "You"
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", m.Timestamp.Format(timeLayout), speaker, m.Text)
}

func PrintExchange(w io.Writer, ex domain.Exchange) {
	stamp := ex.At.Local().Format("2006-01-02 15:04")
	fmt.Fprintf(w, "[%s] You: %s\n", stamp, ex.Question)
	fmt.Fprintf(w, "[%s] SayHey: %s\n", stamp, ex.Answer)
	if ex.SessionCancelled {
		fmt.Fprintln(w, cancelledNotice)
	}
}
