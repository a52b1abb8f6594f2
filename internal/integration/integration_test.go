package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"exam-session-service/internal/app"
	"exam-session-service/internal/compose"
	"exam-session-service/internal/domain"
	pgstore "exam-session-service/internal/infra/postgres"
	pgmigrations "exam-session-service/internal/infra/postgres/migrations"
	infraredis "exam-session-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

const (
	userID       = "11111111-1111-1111-1111-111111111111"
	collectionID = "22222222-2222-2222-2222-222222222222"
	questionOne  = "33333333-3333-3333-3333-333333333333"
	questionTwo  = "44444444-4444-4444-4444-444444444444"
	answerWrong  = "aaaaaaaa-0000-0000-0000-000000000001"
	answerRight  = "aaaaaaaa-0000-0000-0000-000000000002"
	answerTwoA   = "aaaaaaaa-0000-0000-0000-000000000003"
	answerTwoB   = "aaaaaaaa-0000-0000-0000-000000000004"
)

func TestExamSittingEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(pgURL)
	defer db.Close()
	migrateAndSeed(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	cache := infraredis.NewBankCache(redisClient, pgstore.NewCollectionLoader(pool), 5*time.Minute)
	bank := app.NewBankService(pgstore.NewQuestionStore(db), cache, compose.New())

	store := pgstore.NewAttemptStore(db)
	engine := app.NewAttemptEngine(store, pgstore.NewUserProvider(pool), pgstore.NewQuestionProvider(pool))

	// The bank round-trips through Postgres and the Redis cache.
	test, err := bank.ComposeTest(ctx, collectionID)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(test) != 2 {
		t.Fatalf("expected 2 materialized questions, got %d", len(test))
	}

	// First submission opens the attempt with snapshotted user data.
	attempt, err := engine.SubmitAnswer(ctx, app.SubmitAnswerInput{
		UserID:            userID,
		QuestionID:        questionOne,
		QuestionNumber:    1,
		SelectedAnswerIDs: []string{answerRight},
		ElapsedTime:       "00:15",
	})
	if err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if attempt.UserFullName != "Alice Smith" || attempt.CollectionName != "Algebra" {
		t.Fatalf("snapshot fields missing: %+v", attempt)
	}
	if attempt.FindQuestionCount != 1 || attempt.HasFinished {
		t.Fatalf("unexpected progress after q1: %+v", attempt)
	}

	// The last question, answered wrong, still closes the sitting.
	finished, err := engine.SubmitAnswer(ctx, app.SubmitAnswerInput{
		UserID:            userID,
		QuestionID:        questionTwo,
		QuestionNumber:    2,
		SelectedAnswerIDs: []string{answerTwoB},
		ElapsedTime:       "00:40",
	})
	if err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	if !finished.HasFinished || finished.State != domain.AttemptFinished {
		t.Fatalf("expected finished attempt, got %+v", finished)
	}
	if finished.FindQuestionCount != 1 {
		t.Fatalf("wrong answer must not count, got %+v", finished)
	}
	if finished.EndTime == nil {
		t.Fatalf("finished attempt needs an end time")
	}

	loaded, err := engine.FindAttempt(ctx, finished.ID)
	if err != nil {
		t.Fatalf("find attempt: %v", err)
	}
	if len(loaded.AnswerRecords) != 2 {
		t.Fatalf("expected 2 answer records, got %d", len(loaded.AnswerRecords))
	}
	if loaded.AnswerRecords[0].QuestionNumber != 1 || loaded.AnswerRecords[1].FindAnswerCount != 0 {
		t.Fatalf("unexpected records %+v", loaded.AnswerRecords)
	}
}

func TestStaleAttemptSupersededAndSwept(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := openBun(pgURL)
	defer db.Close()
	migrateAndSeed(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewAttemptStore(db)
	engine := app.NewAttemptEngine(store, pgstore.NewUserProvider(pool), pgstore.NewQuestionProvider(pool))

	first, err := engine.SubmitAnswer(ctx, app.SubmitAnswerInput{
		UserID:            userID,
		QuestionID:        questionOne,
		QuestionNumber:    1,
		SelectedAnswerIDs: []string{answerWrong},
	})
	if err != nil {
		t.Fatalf("first sitting: %v", err)
	}

	// Starting over at question 1 abandons the stale attempt.
	second, err := engine.SubmitAnswer(ctx, app.SubmitAnswerInput{
		UserID:            userID,
		QuestionID:        questionOne,
		QuestionNumber:    1,
		SelectedAnswerIDs: []string{answerRight},
	})
	if err != nil {
		t.Fatalf("second sitting: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a fresh attempt, got the same id")
	}
	stale, err := engine.FindAttempt(ctx, first.ID)
	if err != nil {
		t.Fatalf("find stale: %v", err)
	}
	if stale.State != domain.AttemptSuperseded {
		t.Fatalf("expected superseded state, got %s", stale.State)
	}

	page, err := engine.ListAttempts(ctx, domain.AttemptFilter{UserID: userID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalCount != 2 {
		t.Fatalf("expected 2 attempts, got %d", page.TotalCount)
	}

	// Both attempts are unfinished; once their deadline passes the sweep
	// removes them, records included, and a rerun finds nothing.
	removed, err := store.SweepExpired(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 swept attempts, got %d", removed)
	}
	removed, err = store.SweepExpired(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("sweep must be idempotent, got %d", removed)
	}
}

func openBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func migrateAndSeed(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stmts := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO users (id, full_name, group_name, course, faculty_name, hemis_id) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{userID, "Alice Smith", "CS-101", 2, "Computer Science", "hemis-1"}},
		{`INSERT INTO collections (id, name, amount_in_test, given_minutes) VALUES (?, ?, ?, ?)`,
			[]any{collectionID, "Algebra", 2, 10}},
		{`INSERT INTO questions (id, collection_id, text) VALUES (?, ?, ?)`,
			[]any{questionOne, collectionID, "What is 2 + 2?"}},
		{`INSERT INTO questions (id, collection_id, text) VALUES (?, ?, ?)`,
			[]any{questionTwo, collectionID, "Which of these is prime?"}},
		{`INSERT INTO answers (id, question_id, text, is_correct) VALUES (?, ?, ?, ?)`,
			[]any{answerWrong, questionOne, "3", false}},
		{`INSERT INTO answers (id, question_id, text, is_correct) VALUES (?, ?, ?, ?)`,
			[]any{answerRight, questionOne, "4", true}},
		{`INSERT INTO answers (id, question_id, text, is_correct) VALUES (?, ?, ?, ?)`,
			[]any{answerTwoA, questionTwo, "7", true}},
		{`INSERT INTO answers (id, question_id, text, is_correct) VALUES (?, ?, ?, ?)`,
			[]any{answerTwoB, questionTwo, "8", false}},
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s.query, s.args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "exam", "POSTGRES_PASSWORD": "exampass", "POSTGRES_DB": "examdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://exam:exampass@%s:%s/examdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
