package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"puzzle-party-service/internal/app"
	"puzzle-party-service/internal/config"
	"puzzle-party-service/internal/domain"
	"puzzle-party-service/internal/infra/memory"
	pgloader "puzzle-party-service/internal/infra/postgres"
	redisinfra "puzzle-party-service/internal/infra/redis"
	transport "puzzle-party-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the party room server",
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
	roomTTL := config.TTLDuration(cfg.Room.IdleTTL, 30*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.GameLoader = memory.NewStaticGameLoader(sampleGames())
	if pool != nil {
		loader = pgloader.NewGameLoader(pool)
	}

	gameTTL := config.TTLDuration(cfg.Game.TTL, 10*time.Minute)
	var gameRepo app.GameRepository
	if redisClient != nil {
		gameRepo = redisinfra.NewGameRepository(redisClient, loader, gameTTL)
	} else {
		gameRepo = memory.NewGameRepository(loader, gameTTL)
	}

	var rooms app.RoomRepository
	if redisClient != nil {
		rooms = redisinfra.NewRoomStore(redisClient, roomTTL)
	} else {
		rooms = memory.NewRoomStore()
	}
	service := app.NewRoomService(rooms, gameRepo)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/host", wsHandler.ServeHostWS)
	mux.HandleFunc("/ws/player", wsHandler.ServePlayerWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting party room service on :%s", finalPort)
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

// sampleGames provides a minimal puzzle set; swap this loader with a
// document DB-backed one in production.
func sampleGames() map[string]domain.Game {
	return map[string]domain.Game{
		"space-1": {
			ID:    "space-1",
			Title: "Space Hunt",
			Puzzles: []domain.Puzzle{
				{Index: 0, Answers: []string{"30"}},
				{Index: 1, Answers: []string{"moon"}},
				{Index: 2, Answers: []string{"12"}},
				{Index: 3, Answers: []string{"24"}},
				{Index: 4, Answers: []string{"20"}},
				{Index: 5, Answers: []string{"80"}},
				{Index: 6, Answers: []string{"8"}},
			},
		},
	}
}
