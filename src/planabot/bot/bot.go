// Package bot wires the Discord session to the conversation pipeline:
// provider registry, memory stores, search and the message handler.
package bot

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/plana-bot/plana/src/config"
	"github.com/plana-bot/plana/src/llm/manager"
	"github.com/plana-bot/plana/src/memory"
	"github.com/plana-bot/plana/src/planabot/components"
	"github.com/plana-bot/plana/src/planabot/components/timers"
	"github.com/plana-bot/plana/src/search"
)

type Config struct {
	Settings config.Config
	DB       *gorm.DB
	Redis    *redis.Client
}

type Bot struct {
	session  *discordgo.Session
	settings config.Config
	db       *gorm.DB
	rdb      *redis.Client

	llm      *manager.Manager
	memory   *memory.Memory
	searcher *search.Searcher
	timers   *timers.Service
	handler  *components.Handler

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
}

func New(cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Settings.Token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		session:  session,
		settings: cfg.Settings,
		db:       cfg.DB,
		rdb:      cfg.Redis,
		ctx:      ctx,
		cancel:   cancel,
	}

	if err := b.initializeComponents(); err != nil {
		cancel()
		return nil, err
	}
	b.registerHandlers()

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	return b, nil
}

func (b *Bot) initializeComponents() error {
	b.llm = manager.New(b.settings.ProviderConfigs())
	if err := b.llm.Switch(b.settings.DefaultProvider); err != nil {
		return fmt.Errorf("activate provider %q: %w", b.settings.DefaultProvider, err)
	}

	mem, err := memory.New(b.db, b.llm, b.settings.CacheLimit)
	if err != nil {
		return fmt.Errorf("init memory: %w", err)
	}
	b.memory = mem

	brave := search.NewBraveClient(b.settings.BraveKey, b.settings.MaxSearchResults)
	pages := search.NewPageFetcher(b.rdb, b.settings.MaxContentPerURL, b.settings.MinContentLength)
	b.searcher = search.New(brave, pages, b.llm, b.settings.MaxTotalContent, b.settings.DeepSearchMaxIterations)

	b.timers = timers.New(timers.Config{Redis: b.rdb, Notifier: b.session, LLM: b.llm})

	b.handler = components.NewHandler(components.Config{
		LLM:          b.llm,
		Memory:       b.memory,
		Searcher:     b.searcher,
		Timers:       b.timers,
		GuildID:      b.settings.GuildID,
		HistoryLimit: b.settings.HistoryLimit,
		MaxImages:    b.settings.MaxImages,
		FileLimitMB:  b.settings.FileLimitMB,
		AskCooldown:  b.settings.RateLimit,
	})
	return nil
}

func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(b.handler.HandleMessage)
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("bot: logged in as %s", r.User.Username)
	_ = s.UpdateGameStatus(0, "mention me to talk")

	// Ready fires again on reconnect; the timer sweep starts once.
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.timers.Start(b.ctx)
		}()
	})
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

func (b *Bot) Stop() {
	b.cancel()
	b.wg.Wait()
	if err := b.session.Close(); err != nil {
		log.Printf("bot: close session: %v", err)
	}
}

// LLM exposes the provider registry for the ops API.
func (b *Bot) LLM() *manager.Manager { return b.llm }

// Memory exposes the conversation stores for the ops API.
func (b *Bot) Memory() *memory.Memory { return b.memory }
