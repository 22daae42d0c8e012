// Package http wires the admission API, admin views and the relay upgrade
// endpoint onto a gin router.
package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/peergrid/beacon/internal/adapters/signal"
	"github.com/peergrid/beacon/internal/config"
	"github.com/peergrid/beacon/internal/core"
	"github.com/peergrid/beacon/internal/domain"
)

// Store is the persistence surface the HTTP API needs.
type Store interface {
	core.Gateway
	SaveRecording(ctx context.Context, rec domain.Recording) error
	ListRooms(ctx context.Context, limit int) ([]domain.RoomRecord, error)
	ListMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error)
	ListRecordings(ctx context.Context, limit int) ([]domain.Recording, error)
}

func SetupRouter(cfg *config.Config, reg *core.Registry, store Store, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	sessStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("BeaconSession", sessStore))

	h := &Handlers{cfg: cfg, reg: reg, store: store}

	api := r.Group("/api")
	api.POST("/rooms", h.createRoom)
	api.POST("/rooms/join", h.joinRoom)
	api.POST("/recordings", h.saveRecording)
	api.POST("/admin/login", h.adminLogin)
	api.GET("/admin/data", h.adminData)

	r.GET("/ws/:room_id", ctl.Handle)

	return r
}
