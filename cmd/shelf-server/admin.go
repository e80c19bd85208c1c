package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/marcus/shelf/internal/api"
	"github.com/marcus/shelf/internal/serverdb"
)

func runAdmin(args []string) {
	if len(args) == 0 {
		printAdminUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "cleanup":
		runAdminCleanup(args[1:])
	case "revoke-sessions":
		runAdminRevokeSessions(args[1:])
	case "auth-events":
		runAdminAuthEvents(args[1:])
	case "rate-limit-events":
		runAdminRateLimitEvents(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, `Usage: shelf-server admin <command> [flags]

Commands:
  cleanup            Delete expired sessions and old audit events
  revoke-sessions    Sign a user out everywhere
  auth-events        List recent sign-up, sign-in and sign-out events
  rate-limit-events  Show the latest rate limit hit and per-IP counts`)
}

func openDB(dbPath string) *serverdb.ServerDB {
	cfg := api.LoadConfig()
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	store, err := serverdb.OpenWithDriver(cfg.DBDriver, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open database: %v\n", err)
		os.Exit(1)
	}
	return store
}

const dbFlagUsage = "path to shelf.db (default: from SHELF_DB_PATH or ./data/shelf.db)"

func runAdminCleanup(args []string) {
	fs := flag.NewFlagSet("admin cleanup", flag.ExitOnError)
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	cfg := api.LoadConfig()
	store := openDB(*dbPath)
	defer store.Close()

	sessions, err := store.CleanupExpiredSessions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	authEvents, err := store.CleanupAuthEvents(cfg.AuthEventRetention)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	rlEvents, err := store.CleanupRateLimitEvents(cfg.RateLimitEventRetention)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("deleted %d sessions, %d auth events, %d rate limit events\n", sessions, authEvents, rlEvents)
}

func runAdminRevokeSessions(args []string) {
	fs := flag.NewFlagSet("admin revoke-sessions", flag.ExitOnError)
	username := fs.String("username", "", "username to sign out")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	if *username == "" {
		fmt.Fprintln(os.Stderr, "error: --username is required")
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	user, err := store.GetUserByUsername(*username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if user == nil {
		fmt.Fprintf(os.Stderr, "error: user not found: %s\n", *username)
		os.Exit(1)
	}

	n, err := store.InvalidateUserSessions(user.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("revoked %d sessions for %s\n", n, user.Username)
}

func runAdminAuthEvents(args []string) {
	fs := flag.NewFlagSet("admin auth-events", flag.ExitOnError)
	eventType := fs.String("type", "", "filter by event type (signed_up, signed_in, sign_in_failed, signed_out)")
	username := fs.String("username", "", "filter by username")
	limit := fs.Int("limit", 50, "maximum events to list")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	events, err := store.ListAuthEvents(*eventType, *username, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Println("no auth events")
		return
	}
	for _, e := range events {
		fmt.Printf("%s  %-14s  %-20s  %s\n", e.CreatedAt.Local().Format(time.DateTime), e.EventType, e.Username, e.Metadata)
	}
}

func runAdminRateLimitEvents(args []string) {
	fs := flag.NewFlagSet("admin rate-limit-events", flag.ExitOnError)
	ip := fs.String("ip", "", "count events for this client IP")
	since := fs.Duration("since", time.Hour, "window for --ip")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	if err := writeRateLimitReport(os.Stdout, store, *ip, time.Now().Add(-*since)); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// writeRateLimitReport prints the newest rate limit event and, when ip is
// set, how many events that IP produced since the given time.
func writeRateLimitReport(w io.Writer, store *serverdb.ServerDB, ip string, since time.Time) error {
	latest, err := store.LatestRateLimitEvent()
	if err != nil {
		return err
	}
	if latest == nil {
		fmt.Fprintln(w, "no rate limit events")
	} else {
		user := latest.UserID
		if user == "" {
			user = "-"
		}
		fmt.Fprintf(w, "latest: %s  %-6s  %-15s  %s\n", latest.CreatedAt.Local().Format(time.DateTime), latest.EndpointClass, latest.IP, user)
	}

	if ip == "" {
		return nil
	}
	n, err := store.CountRateLimitEvents(ip, since)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d events since %s\n", ip, n, since.Local().Format(time.DateTime))
	return nil
}
