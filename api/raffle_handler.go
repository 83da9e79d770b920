package api

import (
	"net/http"
	"time"

	"raffler/models"
	"raffler/service"

	"github.com/gin-gonic/gin"
)

// RaffleHandler serves raffle lifecycle and draw endpoints
type RaffleHandler struct {
	raffleService service.RaffleService
	drawService   service.DrawService
}

// NewRaffleHandler creates a new raffle handler
func NewRaffleHandler(raffleService service.RaffleService, drawService service.DrawService) *RaffleHandler {
	return &RaffleHandler{
		raffleService: raffleService,
		drawService:   drawService,
	}
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type drawSettingsRequest struct {
	DrawMode                 string    `json:"drawMode" binding:"required"`
	DrawDate                 time.Time `json:"drawDate" binding:"required"`
	HasSecondPrizeInverted   *bool     `json:"hasSecondPrizeInverted"`
	HasSecondPrizePalindrome *bool     `json:"hasSecondPrizePalindrome"`
	ExternalLotterySource    *string   `json:"externalLotterySource"`
}

type winningNumbersRequest struct {
	WinningNumber            *int `json:"winningNumber" binding:"required"`
	SecondPrizeWinningNumber *int `json:"secondPrizeWinningNumber"`
}

// Create handles POST /api/raffles. The caller becomes the creator.
func (h *RaffleHandler) Create(c *gin.Context) {
	var input models.CreateRaffleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	input.CreatorID = callerID(c)

	raffle, err := h.raffleService.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, raffle)
}

// List handles GET /api/raffles
func (h *RaffleHandler) List(c *gin.Context) {
	raffles, err := h.raffleService.FindAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, raffles)
}

// Get handles GET /api/raffles/:id
func (h *RaffleHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := h.raffleService.FindOne(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// History handles GET /api/raffles/:id/history
func (h *RaffleHandler) History(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	entries, err := h.raffleService.ListHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// SetStatus handles PATCH /api/raffles/:id/status
func (h *RaffleHandler) SetStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}

	raffle, err := h.raffleService.SetStatus(c.Request.Context(), id, models.RaffleStatus(req.Status), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, raffle)
}

// UpdateDrawSettings handles PATCH /api/raffles/:id/draw-settings
func (h *RaffleHandler) UpdateDrawSettings(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req drawSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "drawMode and drawDate are required")
		return
	}

	raffle, err := h.drawService.UpdateDrawSettings(c.Request.Context(), id, models.DrawSettingsInput{
		DrawMode:                 models.DrawMode(req.DrawMode),
		DrawDate:                 req.DrawDate,
		ActorID:                  callerID(c),
		HasSecondPrizeInverted:   req.HasSecondPrizeInverted,
		HasSecondPrizePalindrome: req.HasSecondPrizePalindrome,
		ExternalLotterySource:    req.ExternalLotterySource,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, raffle)
}

// SetWinningNumbers handles PATCH /api/raffles/:id/winning-numbers
func (h *RaffleHandler) SetWinningNumbers(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req winningNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "winningNumber is required")
		return
	}

	actorID := callerID(c)
	raffle, err := h.drawService.SetWinningNumbers(c.Request.Context(), id, *req.WinningNumber, req.SecondPrizeWinningNumber, &actorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, raffle)
}

// CreateRecurrent handles POST /api/raffles/:id/recurrent
func (h *RaffleHandler) CreateRecurrent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	raffle, err := h.raffleService.CreateRecurrent(c.Request.Context(), id, callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, raffle)
}
