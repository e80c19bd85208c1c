package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/marcus/shelf/internal/config"
	"github.com/marcus/shelf/internal/shelfclient"
)

var errNotSignedIn = errors.New("not signed in (run shelf sign-in)")

// session is the per-invocation client state: the loaded config, its path
// and an API client carrying the stored session token.
type session struct {
	path      string
	cfg       *config.Config
	client    *shelfclient.Client
	transport string
}

func openSession(cmd *cobra.Command) (*session, error) {
	path := configFile
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	transport := cfg.Transport
	if v, _ := cmd.Flags().GetString("transport"); v != "" {
		if v != shelfclient.TransportREST && v != shelfclient.TransportRPC {
			return nil, fmt.Errorf("invalid --transport %q (want rest or rpc)", v)
		}
		transport = v
	}

	return &session{
		path:      path,
		cfg:       cfg,
		client:    shelfclient.New(cfg.Server(), cfg.Session),
		transport: transport,
	}, nil
}

// signedIn opens a session and fails unless a session token is stored.
func signedIn(cmd *cobra.Command) (*session, error) {
	s, err := openSession(cmd)
	if err != nil {
		return nil, err
	}
	if s.cfg.Session == "" {
		return nil, errNotSignedIn
	}
	return s, nil
}

// cliLogger writes to stderr without timestamps. Below --verbose only
// warnings and notices at info get through.
func cliLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// loggers returns the controller's logger (debug output, only with
// --verbose) and the notice logger.
func loggers(cmd *cobra.Command) (ctrlLog, noticeLog *slog.Logger) {
	noticeLog = cliLogger(cmd.ErrOrStderr(), slog.LevelInfo)
	if verbose {
		return cliLogger(cmd.ErrOrStderr(), slog.LevelDebug), noticeLog
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil)), noticeLog
}
