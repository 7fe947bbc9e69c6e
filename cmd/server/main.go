// The server binary runs the scheduling tier: it reacts to
// configuration and message events from the notification bus, keeps
// every transmitter group's playlists and artifacts current, tracks
// playback state, and serves the operator API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/api"
	"github.com/skylark-radio/skylark/internal/db"
	"github.com/skylark-radio/skylark/internal/locks"
	"github.com/skylark-radio/skylark/internal/notify"
	"github.com/skylark-radio/skylark/internal/playlist"
	"github.com/skylark-radio/skylark/internal/redis"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file, using process environment")
	}
	env := LoadEnvironment()
	if env.Environment != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := db.Init(env.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("db init")
	}
	if env.MigrationsPath != "" {
		if err := db.RunMigrations(env.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("db migrate")
		}
	}
	store := db.NewStore()

	redis.InitRedis(env.RedisAddress, env.RedisUsername, env.RedisPassword)
	// lets operators see which scheduler instances came up and when
	redis.Set(context.Background(), "scheduler:boot:"+env.MQTTClientID,
		time.Now().UTC().Format(time.RFC3339), 0)

	bus, err := notify.Connect(env.MQTTBrokerURL, env.MQTTClientID)
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect")
	}
	defer bus.Close()

	writer, err := playlist.NewWriter(env.PlaylistRoot, store, env.StationCallsign)
	if err != nil {
		log.Fatal().Err(err).Msg("playlist root")
	}
	locker := locks.Manager{Lease: locks.DefaultLease}
	manager := playlist.NewManager(store, locker, bus, writer)
	state := playlist.NewStateManager(store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = bus.SubscribeConfig(notify.ConfigHandlers{
		SuiteChanged:      func(n notify.SuiteConfigChanged) { manager.ProcessSuiteChange(ctx, n) },
		ProgramChanged:    func(n notify.ProgramConfigChanged) { manager.ProcessProgramChange(ctx, n) },
		GroupChanged:      func(n notify.TransmitterGroupConfigChanged) { manager.ProcessTransmitterGroupChange(ctx, n) },
		ActivationChanged: func(n notify.MessageActivationChanged) { manager.ProcessMessageActivationChange(ctx, n) },
		ForcedExpiration:  func(n notify.MessageForcedExpiration) { manager.ProcessMessageForcedExpiration(ctx, n) },
		ResetAll:          func(notify.ResetAll) { manager.RefreshAll(ctx) },
	})
	if err != nil {
		log.Fatal().Err(err).Msg("config subscriptions")
	}
	err = bus.SubscribeStatus(notify.StatusHandlers{
		PlaybackStatus:      state.ProcessPlaybackStatus,
		PlaylistSwitch:      state.ProcessPlaylistSwitch,
		LiveBroadcastSwitch: state.ProcessLiveBroadcastSwitch,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("status subscriptions")
	}

	// bring every playlist up to date before accepting traffic
	manager.RefreshAll(ctx)

	if env.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods:    []string{"GET", "POST", "OPTIONS", "HEAD"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "Accept"},
	}))
	handler := api.NewHandler(env.JWTSecret, env.OperatorSecretHash, store, state, manager, bus)
	handler.Register(r)

	srv := &http.Server{Addr: env.ServerAddress, Handler: r}
	go func() {
		log.Info().Str("addr", env.ServerAddress).Msg("scheduling server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
