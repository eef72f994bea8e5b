package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cluehunt-service/internal/app"
	"cluehunt-service/internal/config"
	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/engine/lobby"
	"cluehunt-service/internal/engine/phase"
	"cluehunt-service/internal/infra/memory"
	pgloader "cluehunt-service/internal/infra/postgres"
	redisinfra "cluehunt-service/internal/infra/redis"
	"cluehunt-service/internal/store"
	transport "cluehunt-service/internal/transport/http"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pgloader.NewQuestionLoader(pool)
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisinfra.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	var entities store.EntityStore
	if redisClient != nil {
		entities = redisinfra.NewEntityStore(redisClient)
	} else {
		entities = memory.NewEntityStore()
	}

	timings := timingsFromConfig(cfg)
	service := app.NewGameService(entities, questions, timings.TimeLimit)
	coordinator := lobby.NewCoordinator(entities, memory.NewIdentityIssuer())

	adminToken := cfg.Server.AdminToken
	if adminToken == "" {
		adminToken = uuid.NewString()
		log.Printf("no admin token configured, generated %s", adminToken)
	}
	wsHandler := transport.NewWSHandler(entities, service, coordinator, questions, timings, adminToken)

	serverCtx, stopDirector := context.WithCancel(ctx)
	defer stopDirector()
	director := app.NewDirector(entities, service, questions, timings)
	go func() {
		if err := director.Run(serverCtx); err != nil && err != context.Canceled {
			log.Printf("director stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting cluehunt service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}
	stopDirector()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func timingsFromConfig(cfg config.Config) phase.Timings {
	t := phase.DefaultTimings()
	t.TimeLimit = config.TTLDuration(cfg.Game.TimeLimit, t.TimeLimit)
	t.ImageVisibleDuration = config.TTLDuration(cfg.Game.ImageVisibleDuration, t.ImageVisibleDuration)
	t.PreCorrectionCountdown = config.TTLDuration(cfg.Game.PreCorrectionCountdown, t.PreCorrectionCountdown)
	t.CorrectionRevealInterval = config.TTLDuration(cfg.Game.CorrectionRevealInterval, t.CorrectionRevealInterval)
	t.CorrectionDuration = config.TTLDuration(cfg.Game.CorrectionDuration, t.CorrectionDuration)
	t.ScoreboardDuration = config.TTLDuration(cfg.Game.ScoreboardDuration, t.ScoreboardDuration)
	t.NextRoundCountdown = config.TTLDuration(cfg.Game.NextRoundCountdown, t.NextRoundCountdown)
	return t
}

// sampleQuestions provides a minimal built-in catalog; the Postgres loader
// replaces it in production.
func sampleQuestions() map[string]domain.Question {
	return map[string]domain.Question{
		"q-avatar": {
			ID:        "q-avatar",
			ThemeTag:  "CINEMA",
			AnswerKey: "AVATAR",
			ImageURLs: []string{
				"https://static.example/clues/avatar-1.jpg",
				"https://static.example/clues/avatar-2.jpg",
				"https://static.example/clues/avatar-3.jpg",
				"https://static.example/clues/avatar-4.jpg",
			},
			LetterPool: "AVATARBCDEGHIK",
		},
		"q-paris": {
			ID:        "q-paris",
			ThemeTag:  "GEOGRAPHIE",
			AnswerKey: "PARIS",
			ImageURLs: []string{
				"https://static.example/clues/paris-1.jpg",
				"https://static.example/clues/paris-2.jpg",
				"https://static.example/clues/paris-3.jpg",
			},
			LetterPool: "PARISBCDELMNOT",
		},
		"q-tolstoi": {
			ID:        "q-tolstoi",
			ThemeTag:  "LITTERATURE",
			AnswerKey: "TOLSTOI",
			ImageURLs: []string{
				"https://static.example/clues/tolstoi-1.jpg",
				"https://static.example/clues/tolstoi-2.jpg",
				"https://static.example/clues/tolstoi-3.jpg",
			},
			LetterPool: "TOLSTOIABCDERU",
		},
		"q-piano": {
			ID:        "q-piano",
			ThemeTag:  "MUSIQUE",
			AnswerKey: "PIANO",
			ImageURLs: []string{
				"https://static.example/clues/piano-1.jpg",
				"https://static.example/clues/piano-2.jpg",
				"https://static.example/clues/piano-3.jpg",
			},
			LetterPool: "PIANOBCDEFGRST",
		},
		"q-newton": {
			ID:        "q-newton",
			ThemeTag:  "SCIENCES",
			AnswerKey: "NEWTON",
			ImageURLs: []string{
				"https://static.example/clues/newton-1.jpg",
				"https://static.example/clues/newton-2.jpg",
				"https://static.example/clues/newton-3.jpg",
			},
			LetterPool: "NEWTONABCDIRSU",
		},
		"q-egypte": {
			ID:        "q-egypte",
			ThemeTag:  "HISTOIRE",
			AnswerKey: "ÉGYPTE",
			ImageURLs: []string{
				"https://static.example/clues/egypte-1.jpg",
				"https://static.example/clues/egypte-2.jpg",
				"https://static.example/clues/egypte-3.jpg",
			},
			LetterPool: "ÉGYPTEABCDLMNR",
		},
	}
}
