// Package httpapi exposes the local control surface the UI layer drives:
// call lifecycle, roster snapshots and voice-channel management.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sigma-social/voiced/internal/adapters/social"
	"github.com/sigma-social/voiced/internal/app/call"
	"github.com/sigma-social/voiced/internal/config"
	"github.com/sigma-social/voiced/internal/core"
	"github.com/sigma-social/voiced/internal/domain"
)

// SetupRouter wires the control API.
// - Call control is under /api/call/*
// - Voice-channel CRUD under /api/rooms proxies the social backend.
func SetupRouter(cfg *config.Config, ctrl *call.Controller, backend *social.Client) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// -------------------------
	// Call control
	// -------------------------

	// GET /api/call/state — session state, room and local mute flag
	api.GET("/call/state", func(c *gin.Context) {
		state, muted := ctrl.State()
		room, _ := ctrl.Room()
		c.JSON(http.StatusOK, gin.H{
			"state": state,
			"room":  room,
			"muted": muted,
		})
	})

	// GET /api/call/roster — participant snapshot with talk levels
	api.GET("/call/roster", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"participants": ctrl.Roster()})
	})

	// POST /api/call/start — join a room
	api.POST("/call/start", func(c *gin.Context) {
		var req struct {
			Room string `json:"room"`
		}
		if err := c.BindJSON(&req); err != nil || req.Room == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room"})
			return
		}
		if err := ctrl.Start(c.Request.Context(), domain.RoomID(req.Room)); err != nil {
			c.JSON(startErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"room": req.Room})
	})

	// POST /api/call/leave — hang up; no-op when idle
	api.POST("/call/leave", func(c *gin.Context) {
		ctrl.Leave()
		c.Status(http.StatusNoContent)
	})

	// POST /api/call/mute — toggle and broadcast the local mute flag
	api.POST("/call/mute", func(c *gin.Context) {
		muted, err := ctrl.ToggleMute()
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"muted": muted})
	})

	// -------------------------
	// Voice channels (proxied to the social backend)
	// -------------------------

	api.GET("/rooms", func(c *gin.Context) {
		rooms, err := backend.Rooms(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": rooms})
	})

	api.POST("/rooms", func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
		}
		if err := c.BindJSON(&req); err != nil || req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
			return
		}
		room, err := backend.CreateRoom(c.Request.Context(), domain.RoomName(req.Name))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, room)
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		room, err := backend.Room(c.Request.Context(), domain.RoomID(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, room)
	})

	api.DELETE("/rooms/:id", func(c *gin.Context) {
		if err := backend.DeleteRoom(c.Request.Context(), domain.RoomID(c.Param("id"))); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	return r
}

func startErrorStatus(err error) int {
	var mediaErr *core.MediaAcquisitionError
	switch {
	case errors.Is(err, core.ErrAlreadyInCall):
		return http.StatusConflict
	case errors.As(err, &mediaErr):
		return http.StatusFailedDependency
	case errors.Is(err, core.ErrSignalingUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
