package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/broadcast"
	"github.com/skylark-radio/skylark/internal/cluster"
	"github.com/skylark-radio/skylark/internal/comms"
	"github.com/skylark-radio/skylark/internal/dac"
	"github.com/skylark-radio/skylark/internal/notify"
)

func main() {
	_ = godotenv.Load()
	env := LoadEnvironment()

	if env.Environment != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	bus, err := notify.Connect(env.MQTTBrokerURL, env.MQTTClientID)
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect failed")
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// bss handles frames from both the DAC server and the cluster mesh,
	// but needs both to exist first, so the callbacks close over it.
	var bss *broadcast.Server
	dacs := dac.NewServer(func(status comms.LiveBroadcastStatus) {
		bss.HandleDACStatus(status)
	})
	mesh := cluster.NewServer(env.Host, func(frame []byte) {
		bss.HandlePeerFrame(frame)
	})
	bss = broadcast.NewServer(env.Host, dacs, mesh, bus)

	mesh.Connect(ctx, env.ClusterPeers)

	if env.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.GET("/broadcast", gin.WrapF(bss.HandleClient))
	r.GET("/cluster", gin.WrapF(mesh.HandlePeer))
	r.GET("/dac", gin.WrapF(dacs.HandleDAC))

	srv := &http.Server{Addr: env.ServerAddress, Handler: r}
	go func() {
		log.Info().Str("addr", env.ServerAddress).Str("host", env.Host).Msg("comms manager listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	bss.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
