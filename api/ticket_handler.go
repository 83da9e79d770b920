package api

import (
	"net/http"

	"raffler/models"
	"raffler/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TicketHandler serves ticket purchase and status endpoints
type TicketHandler struct {
	ticketService service.TicketService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(ticketService service.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

type buyTicketRequest struct {
	RaffleID        string `json:"raffleId" binding:"required"`
	Number          *int   `json:"number" binding:"required"`
	PaymentProofRef string `json:"paymentProofRef"`
}

type ticketStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Buy handles POST /api/tickets/buy for the authenticated caller
func (h *TicketHandler) Buy(c *gin.Context) {
	var req buyTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "raffleId and number are required")
		return
	}

	raffleID, err := uuid.Parse(req.RaffleID)
	if err != nil {
		respondBadRequest(c, "invalid raffleId format")
		return
	}

	ticket, err := h.ticketService.Purchase(c.Request.Context(), raffleID, callerID(c), *req.Number, req.PaymentProofRef)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ticket)
}

// Get handles GET /api/tickets/:id
func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ticket, err := h.ticketService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// UpdateStatus handles PATCH /api/tickets/:id/status
func (h *TicketHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req ticketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}

	ticket, err := h.ticketService.UpdateStatus(c.Request.Context(), id, models.TicketStatus(req.Status), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}
