package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"sayhey/internal/terminal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var userID string

	root := &cobra.Command{
		Use:           "sayhey",
		Short:         "Talk to the SayHey emotional support companion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&userID, "user-id", "", "use this user id instead of the locally stored one")

	withApp := func(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), userID)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return run(cmd, a, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Start an interactive conversation",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				conv, err := a.conversation(cmd.Context())
				if err != nil {
					return err
				}
				rl, err := readline.New("> ")
				if err != nil {
					return fmt.Errorf("open terminal: %w", err)
				}
				defer func() { _ = rl.Close() }()
				return terminal.Run(cmd.Context(), conv, rl, cmd.OutOrStdout())
			}),
		},
		&cobra.Command{
			Use:   "send <message>",
			Short: "Send one message and print the reply",
			Args:  cobra.MinimumNArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				conv, err := a.conversation(cmd.Context())
				if err != nil {
					return err
				}
				reply, err := conv.Send(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				terminal.PrintMessage(cmd.OutOrStdout(), reply.Message)
				if reply.Fallback {
					return errors.New("chat backend did not answer")
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "whoami",
			Short: "Print the user id sent with every message",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				id, err := a.ids.UserID(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}),
		},
		newHistoryCmd(withApp),
	)
	return root
}

func newHistoryCmd(withApp func(func(*cobra.Command, *app, []string) error) func(*cobra.Command, []string) error) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print archived exchanges for this user",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if a.archive == nil {
				return errors.New("transcript archive is disabled; set SAYHEY_ARCHIVE_TABLE")
			}
			id, err := a.ids.UserID(cmd.Context())
			if err != nil {
				return err
			}
			exchanges, err := a.archive.GetHistory(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			total, err := a.archive.GetExchangeCount(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, ex := range exchanges {
				terminal.PrintExchange(cmd.OutOrStdout(), ex)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d archived exchanges\n", len(exchanges), total)
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of exchanges to show (0 for all)")
	return cmd
}
