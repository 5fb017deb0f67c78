package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"stakechain-explorer/api"
	"stakechain-explorer/common"
	"stakechain-explorer/db"
	"stakechain-explorer/explorer"
	"stakechain-explorer/registry"
	"stakechain-explorer/ws"
)

func init() {
	viper.SetConfigFile("config.yml")
	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("db.name", "stakechain-explorer")
	viper.SetDefault("relays.cap", registry.DefaultCap)
	viper.SetDefault("live.poll_interval", "3s")
	err := viper.ReadInConfig()
	if err != nil {
		panic(err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpAddr := viper.GetString("http.addr")
	dbHost := common.SecretValue(viper.GetString("db.host"))
	dbName := viper.GetString("db.name")

	slog.Info("connecting to mongo", "host", dbHost, "db", dbName)
	mongoDb, err := db.InitMongoConn(dbHost.Reveal(), dbName)
	if err != nil {
		slog.Error("failed to connect to mongo", "error", err)
		os.Exit(1)
	}

	blocks, err := db.NewBlocksRepo(mongoDb)
	if err != nil {
		slog.Error("failed to initialize blocks repo", "error", err)
		os.Exit(1)
	}
	receipts, err := db.NewReceiptsRepo(mongoDb)
	if err != nil {
		slog.Error("failed to initialize receipts repo", "error", err)
		os.Exit(1)
	}
	posts, err := db.NewPostsRepo(mongoDb)
	if err != nil {
		slog.Error("failed to initialize posts repo", "error", err)
		os.Exit(1)
	}
	peers, err := db.NewPeersRepo(mongoDb)
	if err != nil {
		slog.Error("failed to initialize peers repo", "error", err)
		os.Exit(1)
	}

	relays := registry.New(peers, viper.GetInt("relays.cap"))
	recommender := explorer.NewRecommender(posts)

	hub := ws.NewHub(blocks, viper.GetDuration("live.poll_interval"))
	go hub.Run()

	handler := api.NewHandler(blocks, receipts, recommender, relays)
	mux := handler.Routes()
	mux.HandleFunc("/api/live", hub.Handle)
	mux.Handle("/metrics", promhttp.Handler())

	s := &http.Server{
		Addr:              httpAddr,
		Handler:           cors.Default().Handler(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down http server")
		if err := s.Shutdown(context.Background()); err != nil {
			slog.Error("failed to shutdown http server", "error", err)
		}
	}()

	slog.Info("starting http server", "addr", httpAddr)
	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("failed to listen and serve", "error", err)
	}

	if err := hub.GraceClose(); err != nil {
		slog.Error("failed to close live feed", "error", err)
	}
	slog.Info("disconnecting from mongo")
	if err := mongoDb.Client().Disconnect(context.Background()); err != nil {
		slog.Error("failed to disconnect from mongo", "error", err)
	}
}
