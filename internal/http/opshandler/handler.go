package opshandler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ChatState is the slice of the websocket server the ops surface reads.
type ChatState interface {
	OnlineEmployees() []string
	ConnCount() int
}

type Handler struct {
	state ChatState
}

func New(state ChatState) *Handler { return &Handler{state: state} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.health)
	r.GET("/online", h.online)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) online(c *gin.Context) {
	employees := h.state.OnlineEmployees()
	c.JSON(http.StatusOK, OnlineResponse{
		Employees:   employees,
		Connections: h.state.ConnCount(),
	})
}
