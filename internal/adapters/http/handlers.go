package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/peergrid/beacon/internal/config"
	"github.com/peergrid/beacon/internal/core"
	"github.com/peergrid/beacon/internal/domain"
)

type Handlers struct {
	cfg   *config.Config
	reg   *core.Registry
	store Store
}

type createRoomRequest struct {
	RoomID   string `json:"room_id"`
	Password string `json:"password"`
}

func (h *Handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Password) > domain.MaxPasswordLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrPasswordTooLong.Error()})
		return
	}

	id := domain.RoomID(strings.TrimSpace(req.RoomID))
	if id == "" {
		id = domain.NewRoomID()
	}

	var hash string
	if req.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
			return
		}
		hash = string(b)
	}

	if err := h.store.CreateRoom(c.Request.Context(), id, hash); err != nil {
		if errors.Is(err, domain.ErrRoomExists) {
			c.JSON(http.StatusConflict, gin.H{"error": domain.ErrRoomExists.Error()})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	log.Info().Str("module", "adapters.http").Str("room", string(id)).Msg("room created")
	c.JSON(http.StatusOK, gin.H{"room_id": id})
}

type joinRoomRequest struct {
	RoomID      string `json:"room_id"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// joinRoom checks room existence, age and password, then reserves a
// one-time admission token and returns it with the room's chat history.
func (h *Handlers) joinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidInput.Error()})
		return
	}

	name := strings.TrimSpace(req.DisplayName)
	id := domain.RoomID(strings.TrimSpace(req.RoomID))
	if id == "" || name == "" || len(name) > domain.MaxDisplayNameLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidInput.Error()})
		return
	}

	rec, err := h.store.RoomRecord(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrRoomNotFound.Error()})
			return
		}
		log.Error().Err(err).Str("module", "adapters.http").Msg("room lookup")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join room"})
		return
	}

	// Expiry is a fixed-age check at join time; no background sweep runs.
	if time.Since(rec.CreatedAt) > h.cfg.RoomMaxAge {
		c.JSON(http.StatusGone, gin.H{"error": domain.ErrRoomExpired.Error()})
		return
	}

	if rec.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": domain.ErrWrongPassword.Error()})
			return
		}
	}

	token := h.reg.GetOrCreate(id).Reserve(name)

	history, err := h.store.RecentHistory(c.Request.Context(), id, h.cfg.HistoryLimit)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(id)).Msg("history fetch")
		history = nil
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id": id,
		"token":   token,
		"history": history,
	})
}

func (h *Handlers) saveRecording(c *gin.Context) {
	var rec domain.Recording
	if err := c.ShouldBindJSON(&rec); err != nil || rec.RoomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.store.SaveRecording(c.Request.Context(), rec); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save recording")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save recording"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) adminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.AdminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.AdminPass)) == 1
	if h.cfg.AdminPass == "" || !userOK || !passOK {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	sess := sessions.Default(c)
	sess.Set("admin", true)
	if err := sess.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type adminRoom struct {
	RoomID      domain.RoomID `json:"room_id"`
	CreatedAt   time.Time     `json:"created_at"`
	HasPassword bool          `json:"has_password"`
}

func (h *Handlers) adminData(c *gin.Context) {
	sess := sessions.Default(c)
	if admin, _ := sess.Get("admin").(bool); !admin {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin session required"})
		return
	}

	ctx := c.Request.Context()
	records, err := h.store.ListRooms(ctx, 50)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("admin rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load admin data"})
		return
	}
	rooms := make([]adminRoom, 0, len(records))
	for _, rec := range records {
		rooms = append(rooms, adminRoom{RoomID: rec.ID, CreatedAt: rec.CreatedAt, HasPassword: rec.HasPassword()})
	}

	messages, err := h.store.ListMessages(ctx, 100)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("admin messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load admin data"})
		return
	}
	recordings, err := h.store.ListRecordings(ctx, 50)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("admin recordings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load admin data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rooms":        rooms,
		"messages":     messages,
		"recordings":   recordings,
		"active_rooms": h.reg.List(),
	})
}
