// /internal/httpapi/httpapi.go
package httpapi

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"

	"github.com/keshon/tunevault/internal/bot"
	"github.com/keshon/tunevault/internal/player"
)

// Server exposes the player over plain HTTP, mirroring the Discord command
// surface one to one.
type Server struct {
	orch   *player.Orchestrator
	dg     *discordgo.Session
	router *gin.Engine
}

func New(orch *player.Orchestrator, dg *discordgo.Session) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{orch: orch, dg: dg, router: router}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/player/play", s.handlePlay)
	router.POST("/player/state", s.handleChangeState)
	router.GET("/player/state/:guildID", s.handleState)

	return s
}

// Router returns the underlying gin engine so additional routes, like the
// socket gateway, can be mounted before serving.
func (s *Server) Router() *gin.Engine {
	return s.router
}

type playRequest struct {
	GuildID        string `json:"guild_id" binding:"required"`
	VoiceChannelID string `json:"voice_channel_id"`
	Input          string `json:"input" binding:"required"`
}

func (s *Server) handlePlay(c *gin.Context) {
	var req playRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	identity := player.Identity{
		GuildID:        req.GuildID,
		VoiceChannelID: req.VoiceChannelID,
	}
	target := bot.NewGuildTarget(s.dg, req.GuildID)

	msg, err := s.orch.Play(c.Request.Context(), identity, req.Input, target)
	if err != nil {
		s.respondError(c, err)
		return
	}

	state, _ := s.orch.State(c.Request.Context(), req.GuildID)
	c.JSON(http.StatusOK, gin.H{"message": msg, "state": state})
}

type stateRequest struct {
	GuildID string `json:"guild_id" binding:"required"`
	Action  string `json:"action" binding:"required"`
}

func (s *Server) handleChangeState(c *gin.Context) {
	var req stateRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	action, err := player.ParseAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := player.Identity{GuildID: req.GuildID}
	target := bot.NewGuildTarget(s.dg, req.GuildID)

	msg, err := s.orch.ChangeState(identity, action, target)
	if err != nil {
		s.respondError(c, err)
		return
	}

	state, _ := s.orch.State(c.Request.Context(), req.GuildID)
	c.JSON(http.StatusOK, gin.H{"message": msg, "state": state})
}

func (s *Server) handleState(c *gin.Context) {
	guildID := c.Param("guildID")

	state, err := s.orch.State(c.Request.Context(), guildID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

// respondError maps the player error taxonomy onto HTTP statuses: caller
// mistakes get 400, everything else 503.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, player.ErrInvalidInput),
		errors.Is(err, player.ErrNotInVoice),
		errors.Is(err, player.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}
