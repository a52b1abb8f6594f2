package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-session-service/internal/app"
	"exam-session-service/internal/compose"
	"exam-session-service/internal/config"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/infra/memory"
	pginfra "exam-session-service/internal/infra/postgres"
	redisinfra "exam-session-service/internal/infra/redis"
	transport "exam-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// bankCache is what both cache implementations provide: collection reads
// for the composer plus invalidation after imports.
type bankCache interface {
	app.CollectionProvider
	transport.CacheInvalidator
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
	bankTTL := config.Duration(cfg.Bank.TTL, 10*time.Minute)
	sweepInterval := config.Duration(cfg.Sweep.Interval, 5*time.Minute)

	var (
		users         app.UserProvider
		questions     app.QuestionProvider
		questionStore app.QuestionStore
		attemptStore  app.AttemptStore
		loader        memory.CollectionLoader
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		db := openBun(cfg.Postgres.URL)
		defer db.Close()

		users = pginfra.NewUserProvider(pool)
		questions = pginfra.NewQuestionProvider(pool)
		loader = pginfra.NewCollectionLoader(pool)
		questionStore = pginfra.NewQuestionStore(db)
		attemptStore = pginfra.NewAttemptStore(db)
	} else {
		directory := sampleDirectory()
		users = directory
		questions = directory
		loader = directory
		questionStore = directory
		attemptStore = memory.NewAttemptStore()
	}

	var cache bankCache
	if redisClient != nil {
		cache = redisinfra.NewBankCache(redisClient, loader, bankTTL)
	} else {
		cache = memory.NewBankCache(loader, bankTTL)
	}

	engine := app.NewAttemptEngine(attemptStore, users, questions)
	bank := app.NewBankService(questionStore, cache, compose.New())
	handler := transport.NewHandler(bank, engine, cache)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go app.NewSweeper(engine, sweepInterval).Run(sweepCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam service on :%s", finalPort)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleDirectory seeds demo reference data so the service is usable
// without Postgres.
func sampleDirectory() *memory.Directory {
	d := memory.NewDirectory()
	d.Seed(
		[]domain.User{
			{
				ID:          "user-1",
				FullName:    "Demo Student",
				GroupName:   "CS-101",
				Course:      1,
				FacultyName: "Computer Science",
				HemisID:     "hemis-0001",
			},
		},
		[]domain.Collection{
			{
				ID:           "col-1",
				Name:         "Sample collection",
				AmountInTest: 2,
				GivenMinutes: 10,
				MaxAttempts:  3,
				Language:     "en",
				Questions: []domain.Question{
					{
						ID:   "q1",
						Text: "What is 2 + 2?",
						Answers: []domain.Answer{
							{ID: "a1", Text: "3", IsCorrect: false},
							{ID: "a2", Text: "4", IsCorrect: true},
							{ID: "a3", Text: "5", IsCorrect: false},
						},
					},
					{
						ID:   "q2",
						Text: "Which numbers are even?",
						Answers: []domain.Answer{
							{ID: "a4", Text: "2", IsCorrect: true},
							{ID: "a5", Text: "4", IsCorrect: true},
							{ID: "a6", Text: "7", IsCorrect: false},
						},
					},
				},
			},
		},
	)
	return d
}
