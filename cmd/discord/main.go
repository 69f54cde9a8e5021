// cmd/discord/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "server-warden/internal/commands/moderate"

	"server-warden/internal/config"
	"server-warden/internal/discord"
	"server-warden/internal/storage"
	"server-warden/internal/tasks"
	v "server-warden/internal/version"
	"server-warden/pkg/jobmgr"
)

func main() {
	log.Printf("[INFO] Starting %v bot...", v.AppName)
	log.Printf("[INFO] %s (%s, built %s)", v.AppFullName, v.GoVersion, v.BuildDate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.New()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	clock := tasks.NewClock()
	manager, err := tasks.NewManager(store, clock, tasks.ManagerConfig{
		SweepInterval: cfg.SweepInterval,
		Retention:     cfg.TaskRetention,
	})
	if err != nil {
		log.Fatal(err)
	}
	scheduler := tasks.NewScheduler(clock, tasks.SchedulerConfig{
		Retention: cfg.SchedulerRetention,
	})

	bot := discord.NewBot(cfg, store, manager, scheduler)

	botDone := make(chan struct{}, 1)
	jm := jobmgr.NewManager(func(msg string) {
		log.Printf("[INFO] job %s", msg)
		if strings.HasPrefix(msg, "done:discord-bot") || strings.HasPrefix(msg, "error:discord-bot") {
			botDone <- struct{}{}
		}
	})

	// The sweep may only promote overdue tasks once the bot can execute
	// them, so the sweeper waits for the re-arm pass to finish.
	if err := jm.StartAsync("task-sweeper", func(jctx context.Context) error {
		select {
		case <-bot.Ready():
		case <-jctx.Done():
			return nil
		}
		manager.RunSweeper(jctx)
		return nil
	}); err != nil {
		log.Fatal(err)
	}

	if err := jm.StartAsync("discord-bot", func(jctx context.Context) error {
		return bot.Run(jctx)
	}); err != nil {
		log.Fatal(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] Received signal %s, shutting down...\n", s)
	case <-botDone:
		log.Println("[ERR] Discord bot exited unexpectedly")
	case <-ctx.Done():
	}

	jm.StopAll()
	cancel()

	log.Println("[INFO] Discord bot exited cleanly")
}
