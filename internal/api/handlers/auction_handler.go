package handlers

import (
	"errors"
	"net/http"
	"time"

	"auction-house/internal/domain"
	"auction-house/internal/services"
	"auction-house/pkg/logger"

	"github.com/labstack/echo/v4"
)

type AuctionHandler struct {
	auctionService *services.AuctionService
	bidService     *services.BidService
	log            logger.Logger
}

func NewAuctionHandler(auctionService *services.AuctionService,
	bidService *services.BidService, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		bidService:     bidService,
		log:            log,
	}
}

type CreateAuctionRequest struct {
	SellerID      string    `json:"seller_id"`
	StartingPrice float64   `json:"starting_price"`
	ReservePrice  *float64  `json:"reserve_price,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Scheduled     bool      `json:"scheduled"`
}

type AuctionResponse struct {
	AuctionID       string    `json:"auction_id"`
	SellerID        string    `json:"seller_id"`
	StartingPrice   float64   `json:"starting_price"`
	ReservePrice    *float64  `json:"reserve_price,omitempty"`
	CurrentPrice    *float64  `json:"current_price,omitempty"`
	CurrentLeaderID *string   `json:"current_leader_id,omitempty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Status          string    `json:"status"`
}

func auctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:       a.ID,
		SellerID:        a.SellerID,
		StartingPrice:   a.StartingPrice,
		ReservePrice:    a.ReservePrice,
		CurrentPrice:    a.CurrentPrice,
		CurrentLeaderID: a.CurrentLeaderID,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		Status:          a.Status.String(),
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.SellerID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "seller_id required"})
	}
	if req.StartingPrice <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Starting price must be positive"})
	}
	if !req.EndTime.After(req.StartTime) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "End time must be after start time"})
	}

	auction, err := h.auctionService.CreateAuction(c.Request().Context(),
		req.SellerID, req.StartingPrice, req.ReservePrice,
		req.StartTime, req.EndTime, req.Scheduled)
	if err != nil {
		if errors.Is(err, services.ErrInvalidWindow) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		h.log.Error("Failed to create auction", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create auction"})
	}

	return c.JSON(http.StatusCreated, auctionResponse(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auctionID := c.Param("id")

	auction, err := h.auctionService.GetAuction(c.Request().Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
		}
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load auction"})
	}

	return c.JSON(http.StatusOK, auctionResponse(auction))
}

func (h *AuctionHandler) CancelAuction(c echo.Context) error {
	auctionID := c.Param("id")

	auction, err := h.auctionService.CancelAuction(c.Request().Context(), auctionID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuctionNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
		case errors.Is(err, domain.ErrCannotCancel):
			return c.JSON(http.StatusConflict, map[string]string{"error": "Auction can no longer be cancelled"})
		case errors.Is(err, domain.ErrLockContended):
			return c.JSON(http.StatusConflict, map[string]string{"error": "Auction is busy, try again"})
		default:
			h.log.Error("Failed to cancel auction", "auction_id", auctionID, "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to cancel auction"})
		}
	}

	return c.JSON(http.StatusOK, auctionResponse(auction))
}

type PlaceBidRequest struct {
	BidderID string  `json:"bidder_id"`
	Amount   float64 `json:"amount"`
}

type BidResponse struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	auctionID := c.Param("id")

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.BidderID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bidder_id required"})
	}

	bid, err := h.bidService.PlaceBid(c.Request().Context(), auctionID, req.BidderID, req.Amount)
	if err != nil {
		if reason, ok := domain.RejectReasonFor(err); ok {
			return c.JSON(statusForReason(reason), map[string]interface{}{
				"rejected": string(reason),
			})
		}
		h.log.Error("Failed to place bid", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to place bid"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"accepted": BidResponse{
			BidID:     bid.ID,
			AuctionID: bid.AuctionID,
			BidderID:  bid.BidderID,
			Amount:    bid.Amount,
			CreatedAt: bid.CreatedAt,
		},
	})
}

func statusForReason(reason domain.RejectReason) int {
	switch reason {
	case domain.ReasonContended:
		return http.StatusConflict
	case domain.ReasonNotFound:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *AuctionHandler) BidHistory(c echo.Context) error {
	auctionID := c.Param("id")

	bids, err := h.bidService.BidHistory(c.Request().Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
		}
		h.log.Error("Failed to load bid history", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load bid history"})
	}

	responses := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		responses = append(responses, BidResponse{
			BidID:     bid.ID,
			AuctionID: bid.AuctionID,
			BidderID:  bid.BidderID,
			Amount:    bid.Amount,
			CreatedAt: bid.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"auction_id": auctionID,
		"bids":       responses,
	})
}
