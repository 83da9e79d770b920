package api

import (
	"net/http"

	"raffler/models"
	"raffler/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserHandler serves user registration and lookup
type UserHandler struct {
	userService   service.UserService
	ticketService service.TicketService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService service.UserService, ticketService service.TicketService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		ticketService: ticketService,
	}
}

// Create handles POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var input models.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	user, err := h.userService.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Get handles GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	user, err := h.userService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListTickets handles GET /api/users/:id/tickets
func (h *UserHandler) ListTickets(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	tickets, err := h.ticketService.ListForUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tickets)
}

// pathID parses the :id parameter, answering 400 when it is not a uuid
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid id format")
		return uuid.Nil, false
	}
	return id, true
}
