package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/inbenta-integrations/chatbot-api-connector/internal/ai"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/botapi"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/chatbot"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/chatra"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/config"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/connector"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/hyperchat"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/inbenta"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/lang"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/logger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/messenger"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/observability"
	"github.com/inbenta-integrations/chatbot-api-connector/internal/session"
)

func main() {
	_ = godotenv.Load()

	env, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(env.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	app, err := config.LoadApp(env.AppConfig, env)
	if err != nil {
		log.Fatal("app config error", "path", env.AppConfig, "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	shutdownTracing := observability.Init(ctx, log, observability.Config{
		Enabled:      env.Otel.Enabled,
		ServiceName:  env.Otel.ServiceName,
		Environment:  env.AppEnv,
		Endpoint:     env.Otel.Endpoint,
		Insecure:     env.Otel.Insecure,
		SampleRatio:  observability.ParseRatio(env.Otel.SampleRatio),
		ExportStdout: env.Otel.Stdout,
	})

	// --- DB ---
	var db *sql.DB
	if env.Session.DatabaseURL != "" {
		db, err = sql.Open("postgres", env.Session.DatabaseURL)
		if err != nil {
			log.Fatal("db open error", "error", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal("db ping error", "error", err)
		}
	}

	sessions, err := openSessions(ctx, env, db)
	if err != nil {
		log.Fatal("session backend error", "backend", env.Session.Backend, "error", err)
	}

	tr, err := lang.Load(app.Conversation.Lang(), env.LangDir)
	if err != nil {
		log.Fatal("translations error", "error", err)
	}

	// --- Inbenta APIs ---
	httpClient := observability.HTTPClient(30 * time.Second)
	auth, err := inbenta.NewAuth(app.API.AuthURL, app.API.Key, app.API.Secret, httpClient)
	if err != nil {
		log.Fatal("inbenta auth error", "error", err)
	}

	var opts connector.Options
	if tickets, err := messenger.New(ctx, auth); err != nil {
		log.Warn("ticketing disabled", "error", err)
	} else {
		opts.Ticketing = tickets
	}

	var live *hyperchat.Client
	if app.ChatEnabled() {
		chatLang := app.Chat.Lang
		if chatLang == "" {
			chatLang = app.Conversation.Lang()
		}
		live, err = hyperchat.NewClient(hyperchat.Config{
			AppID:       app.Chat.AppID,
			Secret:      app.Chat.Secret,
			Server:      app.Chat.Server,
			Region:      app.Chat.RegionServer,
			RoomID:      app.Chat.RoomID,
			Source:      app.Chat.Source,
			Lang:        chatLang,
			QueueActive: app.Chat.Queue.Active,
		}, httpClient)
		if err != nil {
			log.Fatal("hyperchat config error", "error", err)
		}
		opts.LiveChat = live
	}

	bots, err := botFactory(ctx, env, app, auth, db, tr, log)
	if err != nil {
		log.Fatal("bot backend error", "backend", env.BotBackend, "error", err)
	}

	// --- Chatra ---
	outbound, err := chatra.NewChatraOutbound(env.ChatraToken, observability.HTTPClient(10*time.Second), log)
	if err != nil {
		log.Fatal("chatra config error", "error", err)
	}
	engine := connector.New(app, tr, log, opts)
	opener := chatra.NewOpener(outbound, tr, log)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.Middleware("connector"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Hook-Secret"},
		ExposedHeaders: []string{"X-Hook-Secret"},
	}))

	chatra.RegisterRoutes(r, chatra.NewHandler(engine, sessions, opener, bots, log))
	if live != nil {
		resolver := connector.NewResolver(engine, sessions, opener)
		hyperchat.RegisterRoutes(r, hyperchat.NewHandler(live, resolver, tr, log))
	}

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	srv := &http.Server{
		Addr:              ":" + env.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", "port", env.Port, "bot_backend", env.BotBackend, "session_backend", env.Session.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", "error", err)
	}
}

func openSessions(ctx context.Context, env *config.Env, db *sql.DB) (session.Backend, error) {
	switch env.Session.Backend {
	case "postgres":
		return session.NewPostgresBackend(ctx, db)
	case "redis":
		return session.NewRedisBackend(ctx, env.Session.RedisAddr, env.Session.TTL)
	case "mongo":
		return session.NewMongoBackend(ctx, env.Session.MongoURI, env.Session.MongoDB)
	default:
		return session.NewMemoryBackend(), nil
	}
}

// botFactory builds the per-session bot of the configured backend.
func botFactory(ctx context.Context, env *config.Env, app *config.App, auth *inbenta.Auth, db *sql.DB, tr *lang.Manager, log *logger.Logger) (chatra.BotFactory, error) {
	if env.BotBackend == config.BotBackendOpenAI {
		repo, err := ai.NewRepo(ctx, db)
		if err != nil {
			return nil, err
		}
		model := ai.NewOpenAIClient(ai.OpenAIConfig{
			APIKey:  env.OpenAI.APIKey,
			Model:   env.OpenAI.Model,
			BaseURL: env.OpenAI.BaseURL,
		}, log)
		cfg := ai.Config{MinConfidence: env.OpenAI.MinConfidence, Facts: app.AI.Facts}
		return func(_ context.Context, sess *session.Session, _, _ string) (connector.Bot, error) {
			return ai.NewBot(model, repo, sess, tr, log, cfg), nil
		}, nil
	}

	if _, err := auth.Endpoint(ctx, "chatbot"); err != nil {
		return nil, err
	}
	return func(ctx context.Context, sess *session.Session, host, path string) (connector.Bot, error) {
		return chatbot.New(ctx, auth, sess, botapi.ConversationSettings{
			Configuration: app.Conversation.Default,
			UserType:      app.Conversation.UserType,
			Environment:   app.DetectEnvironment(host, path),
			Source:        app.Conversation.Source,
		})
	}, nil
}
