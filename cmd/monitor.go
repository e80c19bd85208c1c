package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/shelf/internal/shelfclient"
	"github.com/marcus/shelf/pkg/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [authors|books]",
	Short: "Interactive list with live updates",
	Long: `Launch the interactive list of authors (default) or books.

Changes appear immediately and settle when the server answers. Lists
refresh when another client changes them.

Key bindings:
  ↑/↓ j/k        Move
  n              New
  e / Enter      Edit the selected row
  d              Delete the selected row
  r              Refresh
  Esc            Close the form
  ?              Toggle help
  q              Quit`,
	GroupID:   "library",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"authors", "books"},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd)
		if err != nil {
			return err
		}

		logger, closeLog, err := monitorLogger(cmd)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		opts := monitor.Options{
			DeletePolicy: s.cfg.Policy(),
			Logger:       logger,
		}
		if live, _ := cmd.Flags().GetBool("live"); live {
			opts.Subscribe = func(ctx context.Context, fn func(topic string)) error {
				return s.client.Subscribe(ctx, func(e shelfclient.Event) { fn(e.Topic) })
			}
		}

		var model tea.Model
		if len(args) == 1 && args[0] == "books" {
			model = monitor.NewBooks(ctx, s.client.Books(s.transport), s.client.Authors(s.transport), opts)
		} else {
			model = monitor.NewAuthors(ctx, s.client.Authors(s.transport), opts)
		}

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		return nil
	},
}

// monitorLogger writes to --log-file, since the terminal belongs to the TUI.
func monitorLogger(cmd *cobra.Command) (*slog.Logger, func(), error) {
	path, _ := cmd.Flags().GetString("log-file")
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), func() { f.Close() }, nil
}

func init() {
	monitorCmd.Flags().Bool("live", true, "refresh when other clients change the list")
	monitorCmd.Flags().String("log-file", "", "append logs to this file")
	rootCmd.AddCommand(monitorCmd)
}
