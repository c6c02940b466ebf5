// Plana is a Discord chatbot with per-channel conversation memory, a
// two-provider model backend with automatic fallback, web search and a
// handful of utility commands. Settings load from the database with
// environment fallbacks.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plana-bot/plana/src/config"
	"github.com/plana-bot/plana/src/data"
	_ "github.com/plana-bot/plana/src/llm/providers"
	"github.com/plana-bot/plana/src/ops"
	"github.com/plana-bot/plana/src/planabot/bot"
)

func main() {
	// First pass resolves the DSN from env and defaults; the second
	// re-reads everything with the settings table available.
	bootstrap := config.Load(nil)
	db := data.MustMySQL(bootstrap.MySQLDSN)

	cfg := config.Load(db)
	if cfg.Token == "" {
		log.Fatal("discord_token not set in settings or DISCORD_TOKEN env")
	}

	rdb := data.MustRedis(cfg.RedisURL)

	b, err := bot.New(bot.Config{Settings: cfg, DB: db, Redis: rdb})
	if err != nil {
		log.Fatalf("create bot: %v", err)
	}
	if err := b.Start(); err != nil {
		log.Fatalf("start bot: %v", err)
	}
	log.Println("Plana is running. Press CTRL-C to exit.")

	var opsSrv *http.Server
	if cfg.OpsAddr != "" {
		router := ops.New(ops.Config{LLM: b.LLM(), Memory: b.Memory(), JWTSecret: cfg.OpsJWTSecret})
		opsSrv = &http.Server{Addr: cfg.OpsAddr, Handler: router}
		go func() {
			if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("ops server: %v", err)
			}
		}()
		log.Printf("ops API listening on %s", cfg.OpsAddr)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	log.Println("Shutting down...")
	if opsSrv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := opsSrv.Shutdown(shutCtx); err != nil {
			log.Printf("ops shutdown: %v", err)
		}
		cancel()
	}
	b.Stop()
	log.Println("Plana stopped gracefully")
}
