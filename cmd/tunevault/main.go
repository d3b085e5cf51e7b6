// cmd/tunevault/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/datastore"

	"github.com/keshon/tunevault/internal/command"
	"github.com/keshon/tunevault/internal/command/music"
	"github.com/keshon/tunevault/internal/config"
	"github.com/keshon/tunevault/internal/discord"
	"github.com/keshon/tunevault/internal/httpapi"
	"github.com/keshon/tunevault/internal/player"
	"github.com/keshon/tunevault/internal/playermsg"
	"github.com/keshon/tunevault/internal/queue"
	"github.com/keshon/tunevault/internal/resolver"
	"github.com/keshon/tunevault/internal/voice"
	"github.com/keshon/tunevault/internal/wsgateway"
)

func main() {
	log.Println("[INFO] Starting TuneVault...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.New()

	ds, err := datastore.New(ctx, cfg.StoragePath)
	if err != nil {
		log.Fatal(err)
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatal(err)
	}

	q := queue.New(ds)
	messages := playermsg.NewCache(ds)
	res := resolver.NewYouTube()
	transport := voice.NewDiscordTransport(dg)
	manager := player.NewManager(transport, q, messages, res)
	orch := player.NewOrchestrator(q, res, manager)

	command.RegisterCommand(
		&music.MusicCommand{},
		command.WithGuildOnly(),
		command.WithCommandLogger(),
	)

	bot := discord.NewBot(dg, cfg, orch)

	api := httpapi.New(orch, dg)
	hub := wsgateway.New(orch, dg)
	manager.SetOnChange(hub.BroadcastState)
	api.Router().GET("/ws", hub.Handle)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router()}

	errCh := make(chan error, 2)
	go func() {
		log.Printf("[INFO] HTTP API listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] Received signal %s, shutting down...", s)
	case err := <-errCh:
		log.Println("[ERR] Server error:", err)
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Println("[WARN] HTTP server shutdown:", err)
	}

	log.Println("[INFO] TuneVault exited cleanly")
}
