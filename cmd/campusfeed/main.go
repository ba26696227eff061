// Package main is the command-line front end of the campusfeed client.
//
// It wires the full dependency graph — config, session store, identity
// provider, backend gateway, uploader, controllers — then drives one
// session: restore a persisted sign-in (or sign in with -email and
// -password), resolve the profile, and print the feed and the caller's
// tickets. The same graph is what a GUI shell would embed; this binary
// exists so the whole chain can be exercised end to end from a terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/campusfeed/internal/comments"
	"github.com/sakif/campusfeed/internal/config"
	"github.com/sakif/campusfeed/internal/feed"
	"github.com/sakif/campusfeed/internal/gateway"
	"github.com/sakif/campusfeed/internal/identity"
	"github.com/sakif/campusfeed/internal/model"
	"github.com/sakif/campusfeed/internal/profile"
	"github.com/sakif/campusfeed/internal/session"
	sqlitestore "github.com/sakif/campusfeed/internal/store/sqlite"
	"github.com/sakif/campusfeed/internal/tickets"
	"github.com/sakif/campusfeed/internal/transport"
	"github.com/sakif/campusfeed/internal/uploader"
)

func main() {
	email := flag.String("email", "", "account email (omit to reuse the stored session)")
	password := flag.String("password", "", "account password")
	register := flag.Bool("register", false, "create a new account instead of signing in")
	nick := flag.String("nick", "", "nickname for -register")
	name := flag.String("name", "", "first name for -register")
	surnames := flag.String("surnames", "", "surnames for -register")
	signOut := flag.Bool("signout", false, "discard the stored session and exit")
	showComments := flag.String("comments", "", "publication ID whose comment thread to print")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))

	// The session store lives on disk so a restart resumes the session.
	if dir := filepath.Dir(cfg.SessionDBPath); cfg.SessionDBPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("failed to create session directory", slog.String("dir", dir), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	store, err := sqlitestore.New(cfg.SessionDBPath)
	if err != nil {
		logger.Error("failed to open session store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	httpClient := transport.NewLoggingClient(logger)

	accounts := identity.New(identity.Config{
		BaseURL: cfg.AuthHost,
		APIKey:  cfg.AuthAPIKey,
	}, httpClient, store, logger)

	backend := gateway.New(cfg.APIHost, httpClient, logger)

	images := uploader.New(uploader.Config{
		UploadURL: cfg.UploadURL,
		Preset:    cfg.UploadPreset,
		CloudName: cfg.CloudName,
	}, httpClient, logger)

	resolver := session.NewResolver(accounts, backend, logger)
	resolver.OnStateChanged(func(s session.State) {
		logger.Debug("session state changed", slog.String("state", s.String()))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *signOut {
		resolver.SignOut(ctx)
		fmt.Println("signed out")
		return
	}

	if *register {
		profiles := profile.NewService(backend, accounts, images, logger)
		principal, err := profiles.Register(ctx, *email, *password, *nick, *name, *surnames)
		if err != nil {
			logger.Error("registration failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		userCtx, err := resolver.Resolve(ctx, principal)
		if err != nil {
			logger.Error("could not resolve the new profile", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("registered %s (%s)\n", userCtx.Nickname, userCtx.AuthID)
		return
	}

	userCtx, err := establishSession(ctx, resolver, accounts, *email, *password)
	if err != nil {
		logger.Error("could not establish a session", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Printf("signed in as %s (%s)\n", userCtx.Nickname, userCtx.AuthID)

	feedCtrl := feed.NewController(backend, images, logger)
	publications, err := feedCtrl.LoadFeed(ctx)
	if err != nil {
		logger.Warn("feed unavailable", slog.String("error", err.Error()))
	}
	fmt.Printf("\nfeed (%d publications):\n", len(publications))
	for _, pub := range publications {
		liked := " "
		if pub.LikedByUser(userCtx.Nickname) {
			liked = "*"
		}
		fmt.Printf("  [%s] %-30s likes=%d comments=%d id=%s\n",
			liked, pub.Title, pub.LikeCount(), pub.CommentCount, pub.ID)
	}

	if *showComments != "" {
		printThread(ctx, backend, feedCtrl, *showComments, logger)
	}

	ticketCtrl := tickets.NewController(backend, logger)
	owned, err := ticketCtrl.LoadTickets(ctx, userCtx.Nickname)
	if err != nil {
		logger.Warn("tickets unavailable", slog.String("error", err.Error()))
	}
	fmt.Printf("\ntickets (%d):\n", len(owned))
	for _, tk := range owned {
		fmt.Printf("  %-12s %s — %s\n", tk.Status, tk.Title, tk.ClassOrDeviceLabel)
	}
}

// establishSession prefers the stored session; explicit credentials
// force a fresh sign-in.
func establishSession(ctx context.Context, resolver *session.Resolver, accounts *identity.Provider, email, password string) (*model.UserContext, error) {
	if email != "" {
		return resolver.SignIn(ctx, email, password)
	}

	principal, err := accounts.Restore(ctx)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, fmt.Errorf("no stored session: pass -email and -password to sign in")
	}
	return resolver.Resolve(ctx, principal)
}

// printThread loads and prints one publication's comment thread.
func printThread(ctx context.Context, backend *gateway.Client, feedCtrl *feed.Controller, publicationID string, logger *slog.Logger) {
	for _, pub := range feedCtrl.Publications() {
		if pub.ID != publicationID {
			continue
		}
		thread := comments.NewController(backend, pub, logger)
		list, _ := thread.LoadComments(ctx)
		fmt.Printf("\ncomments on %q (%d):\n", pub.Title, len(list))
		for _, cm := range list {
			fmt.Printf("  %s: %s\n", cm.AuthorNickname, cm.Body)
		}
		return
	}
	fmt.Printf("\npublication %s not found in the feed\n", publicationID)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
