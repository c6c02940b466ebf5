// Package ops serves the operational HTTP API: health and status probes
// plus a small admin surface for switching providers and resetting
// channel memory without touching Discord.
package ops

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/plana-bot/plana/src/llm/core"
	"github.com/plana-bot/plana/src/llm/manager"
	"github.com/plana-bot/plana/src/memory"
)

type Config struct {
	LLM       *manager.Manager
	Memory    *memory.Memory
	JWTSecret string
}

// New assembles the gin engine with all routes attached.
func New(cfg Config) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	g.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}))
	attachRoutes(g, cfg)
	return g
}

func attachRoutes(g *gin.Engine, cfg Config) {
	h := handlers{llm: cfg.LLM, memory: cfg.Memory, started: time.Now()}

	g.GET("/healthz", h.Health)
	v1 := g.Group("/v1")
	v1.GET("/status", h.Status)

	// Admin routes stay off entirely when no secret is configured.
	if cfg.JWTSecret != "" {
		admin := v1.Group("/admin")
		admin.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
		admin.POST("/provider", h.SwitchProvider)
		admin.POST("/memory/reset", h.ResetMemory)
	}
}

type handlers struct {
	llm     *manager.Manager
	memory  *memory.Memory
	started time.Time
}

func (h handlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h handlers) Status(c *gin.Context) {
	status := gin.H{
		"active":     h.llm.ActiveName(),
		"configured": h.llm.Configured(),
		"uptime":     time.Since(h.started).Round(time.Second).String(),
	}
	if provider, ok := h.llm.Active(); ok {
		status["models"] = gin.H{
			"primary":   provider.ModelName(core.ModelPrimary),
			"secondary": provider.ModelName(core.ModelSecondary),
			"lowload":   provider.ModelName(core.ModelLowload),
		}
	}
	c.JSON(http.StatusOK, status)
}

func (h handlers) SwitchProvider(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if err := h.llm.Switch(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	log.Printf("ops: provider switched to %s by %s", req.Name, c.GetString("sub"))
	c.JSON(http.StatusOK, gin.H{"active": h.llm.ActiveName()})
}

func (h handlers) ResetMemory(c *gin.Context) {
	var req struct {
		ChannelID string `json:"channel_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if err := h.memory.Reset(req.ChannelID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	log.Printf("ops: memory reset for channel %s by %s", req.ChannelID, c.GetString("sub"))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
