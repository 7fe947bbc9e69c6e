package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/skylark-radio/skylark/internal/db"
	"github.com/skylark-radio/skylark/internal/notify"
	"github.com/skylark-radio/skylark/internal/playlist"
)

// Publisher posts operator-initiated events onto the notification
// bus so every scheduling process reacts, not just this one.
type Publisher interface {
	PublishJSON(topic string, v interface{}) error
}

// Handler carries the dependencies of the admin routes.
type Handler struct {
	jwtSecret    string
	operatorHash string

	store   db.Store
	state   *playlist.StateManager
	manager *playlist.Manager
	pub     Publisher
}

func NewHandler(jwtSecret, operatorHash string, store db.Store, state *playlist.StateManager, manager *playlist.Manager, pub Publisher) *Handler {
	return &Handler{
		jwtSecret:    jwtSecret,
		operatorHash: operatorHash,
		store:        store,
		state:        state,
		manager:      manager,
		pub:          pub,
	}
}

// Register mounts the admin routes.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/api/admin/login", h.login)

	admin := r.Group("/api/admin", JWTMiddleware(h.jwtSecret))
	admin.GET("/playlists/:group", h.playlists)
	admin.GET("/messages/:afos", h.messages)
	admin.POST("/suites/force", h.forceSuite)
	admin.POST("/messages/activation", h.activation)
}

type loginRequest struct {
	Operator string `json:"operator" binding:"required"`
	Secret   string `json:"secret"   binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operator and secret are required"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.operatorHash), []byte(req.Secret)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := GenerateJWT(req.Operator, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// playlists returns both the persisted playlists for a transmitter
// group and the live playback view from the state manager.
func (h *Handler) playlists(c *gin.Context) {
	group := c.Param("group")
	if _, err := h.store.GetTransmitterGroupByName(group); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown transmitter group"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load transmitter group"})
		return
	}
	lists, err := h.store.GetPlaylistsByGroup(group)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load playlists"})
		return
	}
	view := h.state.PlaylistData(group)
	c.JSON(http.StatusOK, gin.H{
		"playlists": lists,
		"playback":  view,
	})
}

// messages lists every broadcast message for one product code, so an
// operator can find the input message ids to deactivate or expire.
func (h *Handler) messages(c *gin.Context) {
	afos := c.Param("afos")
	msgs, err := h.store.MessagesByAfosID(afos)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot load messages"})
		return
	}
	if len(msgs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no messages for product " + afos})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type forceSuiteRequest struct {
	TransmitterGroup string `json:"transmitter_group" binding:"required"`
	Suite            string `json:"suite"             binding:"required"`
}

func (h *Handler) forceSuite(c *gin.Context) {
	var req forceSuiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transmitter_group and suite are required"})
		return
	}
	group, err := h.store.GetTransmitterGroupByName(req.TransmitterGroup)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown transmitter group"})
		return
	}
	if err := h.manager.ProcessForceSuiteSwitch(c.Request.Context(), group, req.Suite); err != nil {
		log.Error().Err(err).Str("group", req.TransmitterGroup).Str("suite", req.Suite).
			Msg("forced suite switch failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "forced"})
}

type activationRequest struct {
	InputMessageIDs []int `json:"input_message_ids" binding:"required"`
	Active          *bool `json:"active"            binding:"required"`
}

// activation publishes the change instead of applying it locally so
// every scheduling process, including this one, handles it through
// the same subscription path.
func (h *Handler) activation(c *gin.Context) {
	var req activationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input_message_ids and active are required"})
		return
	}
	event := notify.MessageActivationChanged{
		InputMessageIDs: req.InputMessageIDs,
		Active:          *req.Active,
	}
	if err := h.pub.PublishJSON(notify.TopicMessageActivation, event); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "cannot publish activation change"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
