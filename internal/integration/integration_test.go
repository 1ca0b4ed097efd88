package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
	pgloader "quiz-session-service/internal/infra/postgres"
	pgmigrations "quiz-session-service/internal/infra/postgres/migrations"
	infraredis "quiz-session-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

const testToken = "it-token"

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewQuizLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)

	identity := memory.NewIdentityStore()
	identity.AddToken(testToken, domain.User{ID: "admin-1", Name: "Admin"})

	service := app.NewService(identity, quizRepo, sessionStore, time.Hour)

	sessionID, err := service.StartSession(ctx, testToken, "quiz-1", 0)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	aliceID, err := service.PlayerJoin(sessionID, "Alice")
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	bobID, err := service.PlayerJoin(sessionID, "Bob")
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}

	mustUpdate := func(action string) {
		t.Helper()
		if err := service.UpdateSessionState(ctx, testToken, "quiz-1", sessionID, action); err != nil {
			t.Fatalf("apply %s: %v", action, err)
		}
	}
	mustUpdate("NEXT_QUESTION")
	mustUpdate("SKIP_COUNTDOWN")

	// a2 is the correct answer; Alice first, Bob wrong.
	if err := service.SubmitAnswer(aliceID, 1, []string{"a2"}); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if err := service.SubmitAnswer(bobID, 1, []string{"a1"}); err != nil {
		t.Fatalf("submit bob: %v", err)
	}

	mustUpdate("GO_TO_ANSWER")

	result, err := service.QuestionResults(aliceID, 1)
	if err != nil {
		t.Fatalf("question results: %v", err)
	}
	if len(result.PlayersCorrect) != 1 || result.PlayersCorrect[0] != "Alice" {
		t.Fatalf("unexpected correct list %v", result.PlayersCorrect)
	}
	if result.PercentCorrect != 50 {
		t.Fatalf("expected percentCorrect 50, got %d", result.PercentCorrect)
	}

	mustUpdate("GO_TO_FINAL_RESULTS")

	final, err := service.SessionResults(ctx, testToken, "quiz-1", sessionID)
	if err != nil {
		t.Fatalf("final results: %v", err)
	}
	if final.UsersRankedByScore[0].Name != "Alice" || final.UsersRankedByScore[0].Score != 1 {
		t.Fatalf("expected alice leading with 1 point, got %+v", final.UsersRankedByScore)
	}

	mustUpdate("END")
	list, err := service.ListSessions(ctx, testToken, "quiz-1")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(list.InactiveSessions) != 1 || list.InactiveSessions[0] != sessionID {
		t.Fatalf("expected session inactive after END, got %+v", list)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:      "quiz-1",
		OwnerID: "admin-1",
		Name:    "Integration quiz",
		Questions: []domain.Question{
			{
				ID:       "q1",
				Text:     "What is 2 + 2?",
				Duration: 30,
				Points:   1,
				Answers: []domain.Answer{
					{ID: "a1", Text: "3", Correct: false, Colour: "red"},
					{ID: "a2", Text: "4", Correct: true, Colour: "blue"},
					{ID: "a3", Text: "5", Correct: false, Colour: "green"},
				},
			},
		},
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
