// wsprobe connects to a matchd WebSocket, optionally authenticates and
// subscribes, and prints every frame it receives.
//
// Usage:
//
//	wsprobe --url ws://localhost:8080/ws --token $JWT --channel offers
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/matchfeed/internal/wsclient"
)

type probeOptions struct {
	URL      string
	Origin   string
	Token    string
	Channels []string
	Count    int
	Timeout  time.Duration
	Raw      bool
	Verbose  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts probeOptions

	cmd := &cobra.Command{
		Use:           "wsprobe",
		Short:         "Connect to matchd and print received frames",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}

			return probe(ctx, opts, cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.URL, "url", "ws://localhost:8080/ws", "matchd WebSocket URL")
	f.StringVar(&opts.Origin, "origin", "", "Origin header to send")
	f.StringVar(&opts.Token, "token", os.Getenv("MATCHFEED_TOKEN"), "bearer token to authenticate with")
	f.StringSliceVar(&opts.Channels, "channel", nil, "channel to subscribe to (repeatable)")
	f.IntVar(&opts.Count, "count", 0, "exit after this many frames, 0 = run until interrupted")
	f.DurationVar(&opts.Timeout, "timeout", 0, "exit after this long, 0 = no limit")
	f.BoolVar(&opts.Raw, "raw", false, "print frames as received JSON")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func probe(ctx context.Context, opts probeOptions, out io.Writer, logger *slog.Logger) error {
	client := wsclient.New(wsclient.Config{URL: opts.URL, Origin: opts.Origin}, logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", opts.URL, err)
	}
	defer client.Close()

	logger.Info("connected", "url", opts.URL)

	if opts.Token != "" {
		if err := client.Authenticate(opts.Token); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}
	for _, ch := range opts.Channels {
		if err := client.Subscribe(ch); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
	}

	received := 0
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logger.Info("timeout reached", "received", received)
			}
			return nil

		case err := <-client.Errors():
			return fmt.Errorf("connection lost after %d frames: %w", received, err)

		case msg := <-client.Messages():
			received++
			printMessage(out, msg, opts.Raw)
			if opts.Count > 0 && received >= opts.Count {
				return nil
			}
		}
	}
}

func printMessage(w io.Writer, msg wsclient.Message, raw bool) {
	ts := msg.ReceivedAt.Format("15:04:05.000")
	if raw || msg.DecodeErr != nil {
		fmt.Fprintf(w, "[%s] %s\n", ts, msg.Data)
		return
	}

	m := msg.Decoded
	switch {
	case m.MatchData != nil:
		d := m.MatchData
		fmt.Fprintf(w, "[%s] %-12s score=%d campaign=%s counterparty=%s match=%s %s\n",
			ts, m.Type, d.OverallScore, d.Campaign.ID, d.Counterparty.ID, d.MatchID, m.Message)
	case m.Error != "":
		fmt.Fprintf(w, "[%s] %-12s %s\n", ts, m.Type, m.Error)
	case m.Identity != "":
		fmt.Fprintf(w, "[%s] %-12s identity=%s\n", ts, m.Type, m.Identity)
	case m.Channel != "":
		fmt.Fprintf(w, "[%s] %-12s channel=%s\n", ts, m.Type, m.Channel)
	case m.ConnectionID != "":
		fmt.Fprintf(w, "[%s] %-12s conn=%s %s\n", ts, m.Type, m.ConnectionID, m.Message)
	case len(m.Data) > 0:
		fmt.Fprintf(w, "[%s] %-12s %s\n", ts, m.Type, m.Data)
	default:
		fmt.Fprintf(w, "[%s] %s\n", ts, m.Type)
	}
}
