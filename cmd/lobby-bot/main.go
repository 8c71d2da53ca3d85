package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"nightreign-lobby/internal/board"
	"nightreign-lobby/internal/config"
	"nightreign-lobby/internal/discord"
	"nightreign-lobby/internal/journal"
	"nightreign-lobby/internal/lobby"
	"nightreign-lobby/internal/logging"
	"nightreign-lobby/internal/store"
	httptransport "nightreign-lobby/internal/transport/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := discord.NewSession(cfg.Bot, cfg.Log.DiscordLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("discord session init failed")
	}
	gateway := discord.NewGateway(session, cfg.Bot)
	coord := lobby.NewCoordinator(gateway, lobby.ConfigFromEnv(cfg.Lobby, cfg.Bot.LobbyChannelPref))

	var (
		st     *store.Store
		events httptransport.EventLister
		db     httptransport.Pinger
		sinks  []journal.Sink
	)
	if cfg.Journal.PostgresDSN != "" {
		st, err = store.New(cfg.Journal.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("store init failed")
		}
		defer st.Close()
		if err := st.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("db ping failed")
		}
		events, db = st, st
		sinks = append(sinks, journal.NewStoreSink(st))
	}
	if cfg.Journal.RedisAddr != "" {
		rdb, err := journal.ConnectRedis(ctx, cfg.Journal)
		if err != nil {
			log.Fatal().Err(err).Msg("redis init failed")
		}
		defer rdb.Close()
		sinks = append(sinks, journal.NewRedisSink(rdb, cfg.Journal.Queue))
	}
	jrnl := journal.New(cfg.Journal.Buffer, sinks...)
	jrnl.Start()
	defer jrnl.Close()
	coord.AddObserver(jrnl)

	boardCfg, err := board.ConfigFromEnv(cfg.Board)
	if err != nil {
		log.Fatal().Err(err).Msg("board config failed")
	}
	boardMgr := board.NewManager(boardCfg)
	if err := boardMgr.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("board start failed")
	}
	coord.AddObserver(boardMgr)

	bot := discord.NewBot(session, gateway, coord, cfg.Bot)
	coord.AddObserver(bot)
	openCtx, cancelOpen := context.WithTimeout(ctx, 30*time.Second)
	err = bot.Open(openCtx)
	cancelOpen()
	if err != nil {
		log.Fatal().Err(err).Msg("discord connect failed")
	}
	defer func() {
		if err := bot.Close(); err != nil {
			log.Warn().Err(err).Msg("discord close failed")
		}
	}()

	if cfg.Lobby.Recover {
		n, err := coord.Restore(ctx)
		if err != nil {
			log.Error().Err(err).Msg("lobby recovery failed")
		} else {
			log.Info().Int("lobbies", n).Msg("lobby recovery finished")
		}
	}
	coord.StartJanitor(ctx, cfg.Lobby.SweepInterval)

	r := httptransport.NewRouter(coord, events, db, cfg.Server)
	if cfg.Server.LogRoutes {
		httptransport.LogRoutes(r)
	}
	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("ops api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops api stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	// Timers must stop while the discord session is still open; the deferred
	// bot.Close runs after this.
	coord.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ops api shutdown failed")
	}
}
