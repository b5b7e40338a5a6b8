package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	audioimpl "github.com/seajon16/sassbot/external/audio"
	configloader "github.com/seajon16/sassbot/external/config"
	"github.com/seajon16/sassbot/external/discord"
	mediaimpl "github.com/seajon16/sassbot/external/media"
	speechimpl "github.com/seajon16/sassbot/external/speech"
	"github.com/seajon16/sassbot/internal/config"
	discordpkg "github.com/seajon16/sassbot/internal/discord"
	"github.com/seajon16/sassbot/internal/session"
)

const discordConnectTimeout = 20 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching discord bot")
	runBot(injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	audioimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	mediaimpl.RegisterDI(injector)
	speechimpl.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

func runBot(injector do.Injector) {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")

	guilds, err := dc.ListGuilds()
	if err != nil {
		slog.Error("failed to list guilds", "error", err)
		os.Exit(1)
	}
	manager.SeedGuilds(guilds)
	for _, guild := range guilds {
		if err := dc.UpsertGuildSlashCommands(guild.ID, session.SlashCommandDefinitions()); err != nil {
			slog.Error("failed to upsert slash commands", "error", err, "guild_id", guild.ID)
			os.Exit(1)
		}
	}

	dc.RegisterGuildCreateHandler(manager.HandleGuildCreate)
	dc.RegisterSlashCommandHandler(manager.HandleSlashCommand)
	slog.Info("discord handlers registered", "guilds", len(guilds))

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	go manager.RunInactivityMonitor(monitorCtx)

	defer func() {
		stopMonitor()
		manager.Shutdown()
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}
}
