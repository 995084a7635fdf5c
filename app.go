package main

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// runBridge wires every component and runs until ctx is cancelled.
func runBridge(ctx context.Context, cfg Config) error {
	logger := newLogger(cfg.Log)

	tel, err := setupTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := newBridgeMetrics(tel.meterProvider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	tailer, err := NewLogTailer(cfg.Minecraft.LogPath, cfg.Minecraft.PollInterval, cfg.Minecraft.LogEncoding,
		logger.Named("logtail"))
	if err != nil {
		return fmt.Errorf("log tailer: %w", err)
	}

	// Shared RCON gateway
	rcon := NewRCONGateway(cfg.RCON, logger.Named("rcon"), metrics)
	rcon.Launch(ctx)

	dc, err := NewDiscordChannel(cfg.Discord, logger.Named("discord"))
	if err != nil {
		rcon.Stop()
		return fmt.Errorf("discord: %w", err)
	}

	teleports := NewTeleportStore(cfg.Minecraft.TeleportPoints, cfg.Minecraft.TeleportScript, rcon,
		logger.Named("teleport"))
	schematics := NewSchematicStore(cfg.Minecraft.SchematicDir, dc.HTTPClient(), logger.Named("schematic"))

	registry := NewCommandRegistry(dc, cfg.Discord.ChatChannel, logger.Named("commands"), metrics)
	dc.OnInteraction(registry.Dispatch)

	if err := dc.Open(); err != nil {
		rcon.Stop()
		return err
	}

	err = registry.RegisterAll(builtinCommands(commandDeps{
		Console:     rcon,
		Teleports:   teleports,
		Schematics:  schematics,
		Definitions: registry.Definitions,
	}))
	if err != nil {
		logger.Error("some commands were not registered", "error", err)
	}

	channels := []Channel{dc}
	bridge := NewBridge(rcon, schematics, channels, cfg.discordEventAllowed, logger.Named("bridge"), metrics)
	tailer.Subscribe(bridge.Subscriber())
	tailer.Subscribe(NewOTelLogSubscriber(tel.loggerProvider.Logger(cfg.OTel.ServiceName), cfg.otelEventAllowed))

	poller := NewStatusPoller(rcon, channels, cfg.Minecraft.StatusInterval, logger.Named("status"), metrics)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	tailer.Start(runCtx)

	wg.Add(1)
	go func() {
		defer wg.Done()
		bridge.FanOutEvents(runCtx)
	}()

	for _, ch := range channels {
		wg.Add(1)
		go func(c Channel) {
			defer wg.Done()
			bridge.HandleInbound(runCtx, c)
		}(ch)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(runCtx)
	}()

	logger.Info("mc-discord-bridge started", "version", version, "log", cfg.Minecraft.LogPath,
		"rcon", rcon.addr, "commands", len(registry.Definitions()))

	<-ctx.Done()
	logger.Info("shutting down")

	if err := registry.DeleteAll(); err != nil {
		logger.Warn("delete commands", "error", err)
	}
	tailer.Stop()
	cancel()
	wg.Wait()
	rcon.Stop()
	if err := dc.Close(); err != nil {
		logger.Warn("discord close", "error", err)
	}
	return nil
}
