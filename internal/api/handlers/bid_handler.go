package handlers

import (
	"net/http"
	"time"

	"auction-core/internal/domain"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/labstack/echo/v4"
)

type BidHandler struct {
	bidService *services.BidService
	log        logger.Logger
}

func NewBidHandler(bidService *services.BidService, log logger.Logger) *BidHandler {
	return &BidHandler{
		bidService: bidService,
		log:        log,
	}
}

type PlaceBidRequest struct {
	Price int64 `json:"price"`
}

type BidResponse struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Price     int64     `json:"price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toBidResponse(b *domain.Bid) BidResponse {
	return BidResponse{
		BidID:     b.ID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Price:     b.Price,
		Status:    b.Status.String(),
		CreatedAt: b.CreatedAt,
	}
}

func (h *BidHandler) PlaceBid(c echo.Context) error {
	callerID, err := callerID(c)
	if err != nil {
		return err
	}

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.Price <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "price must be positive"})
	}

	bid, err := h.bidService.CreateBid(c.Request().Context(), c.Param("id"), callerID, req.Price)
	if err != nil {
		return domainErrorResponse(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, toBidResponse(bid))
}

func (h *BidHandler) UpdateBid(c echo.Context) error {
	callerID, err := callerID(c)
	if err != nil {
		return err
	}

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.Price <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "price must be positive"})
	}

	bid, err := h.bidService.UpdateBid(c.Request().Context(),
		c.Param("id"), c.Param("bidId"), callerID, req.Price)
	if err != nil {
		return domainErrorResponse(c, h.log, err)
	}

	return c.JSON(http.StatusOK, toBidResponse(bid))
}

func (h *BidHandler) CancelBid(c echo.Context) error {
	callerID, err := callerID(c)
	if err != nil {
		return err
	}

	bidID := c.Param("bidId")
	if err := h.bidService.CancelBid(c.Request().Context(), c.Param("id"), callerID, bidID); err != nil {
		return domainErrorResponse(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"bid_id": bidID, "message": "bid cancelled"})
}

func (h *BidHandler) GetBid(c echo.Context) error {
	bid, err := h.bidService.GetBid(c.Request().Context(), c.Param("bidId"))
	if err != nil {
		return domainErrorResponse(c, h.log, err)
	}

	return c.JSON(http.StatusOK, toBidResponse(bid))
}

func (h *BidHandler) GetHighestBid(c echo.Context) error {
	bid, err := h.bidService.GetHighestBid(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainErrorResponse(c, h.log, err)
	}

	return c.JSON(http.StatusOK, toBidResponse(bid))
}

func (h *BidHandler) ListBids(c echo.Context) error {
	page, size := pageParams(c)

	bids, total, err := h.bidService.ListBids(c.Request().Context(), c.Param("id"), page, size)
	if err != nil {
		return domainErrorResponse(c, h.log, err)
	}

	return c.JSON(http.StatusOK, pagedBids(bids, page, size, total))
}

func (h *BidHandler) ListMyBids(c echo.Context) error {
	callerID, err := callerID(c)
	if err != nil {
		return err
	}

	page, size := pageParams(c)

	bids, total, err := h.bidService.ListMyBids(c.Request().Context(), callerID, page, size)
	if err != nil {
		return domainErrorResponse(c, h.log, err)
	}

	return c.JSON(http.StatusOK, pagedBids(bids, page, size, total))
}

func pagedBids(bids []*domain.Bid, page, size int, total int64) map[string]interface{} {
	responses := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		responses = append(responses, toBidResponse(b))
	}

	return map[string]interface{}{
		"bids":  responses,
		"page":  page,
		"size":  size,
		"total": total,
	}
}
