// cmd/kiekky/main.go
// Command-line front end for the Kiekky client core.
// Bootstraps configuration, local state and the shared client objects, then runs one
// sub-command.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/auth"
	"github.com/imadgeboyega/kiekky-client/internal/authors"
	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/common/database"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/config"
	"github.com/imadgeboyega/kiekky-client/internal/detail"
	"github.com/imadgeboyega/kiekky-client/internal/feed"
	"github.com/imadgeboyega/kiekky-client/internal/media"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
	"github.com/imadgeboyega/kiekky-client/internal/profile"
	"github.com/imadgeboyega/kiekky-client/internal/realtime"
	"github.com/imadgeboyega/kiekky-client/internal/securestore"
)

// app holds the objects every command shares
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	kv      database.Store
	secure  securestore.Store
	api     *api.Client
	session *auth.Manager

	store    *posts.Store
	repo     *posts.HTTPRepository
	posts    *posts.Service
	likes    *posts.LikeToggler
	cache    *posts.OwnPostsCache
	authors  *authors.Resolver
	feed     *feed.Loader
	profiles *profile.Service
	events   *realtime.Dispatcher
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: no .env file found (%v), using environment variables\n", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start", zap.Error(err))
		fmt.Fprintln(os.Stderr, apperror.UserMessage(err))
		os.Exit(1)
	}

	if err := run(ctx, a, os.Args[1:]); err != nil {
		if err != errUsage {
			log.Debug("Command failed", zap.Error(err))
			fmt.Fprintln(os.Stderr, detail.UserMessage(err))
		}
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	kv, err := openState(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	secure, err := openSecureStore(ctx, cfg, kv, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log, kv: kv, secure: secure}

	a.api = api.New(api.Options{
		BaseURL: cfg.BaseURL(),
		Timeout: cfg.RequestTimeout,
	}, secure, log.Named("api"))
	a.session = auth.NewManager(a.api, secure, log.Named("auth"))
	a.api.SetOnUnauthorized(func() {
		a.session.NotifySignedOut()
		fmt.Fprintln(os.Stderr, "Your session has expired. Run `kiekky login` to sign in again.")
	})

	a.store = posts.NewStore()
	a.repo = posts.NewHTTPRepository(a.api, log.Named("posts"))
	images := media.NewLoader(media.LoaderConfig{S3Region: cfg.S3Region})
	a.posts = posts.NewService(a.repo, a.store, images, a.session, log.Named("posts"))
	a.likes = posts.NewLikeToggler(a.repo, a.store, a.session, log.Named("likes"))
	a.cache = posts.NewOwnPostsCache(kv, cfg.PostsCacheTTL, log.Named("cache"))
	a.authors = authors.NewResolver(a.api, cfg.AuthorCacheSize, log.Named("authors"))
	a.feed = feed.NewLoader(a.repo, a.store, a.session, cfg.FeedPageSize, log.Named("feed"))
	a.profiles = profile.NewService(
		profile.NewHTTPRepository(a.api, log.Named("profile")),
		a.repo, a.cache, a.store, a.session, log.Named("profile"),
	)
	a.events = realtime.NewDispatcher(a.store, a.session, log.Named("realtime"))

	return a, nil
}

// openState picks the key-value backend for local persisted state
func openState(ctx context.Context, cfg *config.Config, log *zap.Logger) (database.Store, error) {
	switch cfg.StateBackend {
	case config.StateBackendRedis:
		client, err := database.NewRedisClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Debug("Using redis state backend")
		return database.NewRedisStore(client, "kiekky"), nil
	case config.StateBackendMemory:
		log.Debug("Using in-memory state backend")
		return database.NewMemoryStore(), nil
	default:
		store, err := database.NewFileStore(filepath.Join(cfg.StateDir, "state"))
		if err != nil {
			return nil, fmt.Errorf("failed to open state directory: %w", err)
		}
		return store, nil
	}
}

// openSecureStore encrypts credentials when a passphrase is configured
func openSecureStore(ctx context.Context, cfg *config.Config, kv database.Store, log *zap.Logger) (securestore.Store, error) {
	if cfg.StatePassphrase == "" {
		if cfg.IsProduction() {
			log.Warn("STATE_PASSPHRASE is not set, credentials are stored unencrypted")
		}
		return securestore.NewPlain(kv), nil
	}
	return securestore.NewEncrypted(ctx, kv, cfg.StatePassphrase, nil)
}

// openView opens the detail view of a post, fetching it first when it is not loaded
func (a *app) openView(ctx context.Context, postID string) (*detail.View, error) {
	post, ok := a.store.Get(postID)
	if !ok {
		fetched, err := a.posts.GetPost(ctx, postID)
		if err != nil {
			return nil, err
		}
		post = fetched
	}
	return detail.Open(ctx, detail.Deps{
		Posts:   a.posts,
		Repo:    a.repo,
		Store:   a.store,
		Likes:   a.likes,
		Authors: a.authors,
		Viewer:  a.session,
		Trees:   a.events,
		Logger:  a.logger.Named("detail"),
	}, post), nil
}
