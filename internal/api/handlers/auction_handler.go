package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"auction-core/internal/domain"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/labstack/echo/v4"
)

const userIDHeader = "X-User-ID"

type AuctionHandler struct {
	auctionService *services.AuctionService
	log            logger.Logger
}

func NewAuctionHandler(auctionService *services.AuctionService, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		log:            log,
	}
}

type CreateAuctionRequest struct {
	ProductID  string    `json:"product_id"`
	StartPrice int64     `json:"start_price"`
	EndTime    time.Time `json:"end_time"`
}

type AuctionResponse struct {
	AuctionID    string    `json:"auction_id"`
	ProductID    string    `json:"product_id"`
	OwnerID      string    `json:"owner_id"`
	StartPrice   int64     `json:"start_price"`
	CurrentPrice *int64    `json:"current_price,omitempty"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
}

func toAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:    a.ID,
		ProductID:    a.ProductID,
		OwnerID:      a.OwnerID,
		StartPrice:   a.StartPrice,
		CurrentPrice: a.CurrentPrice,
		EndTime:      a.EndTime,
		Status:       a.Status.String(),
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	callerID, err := callerID(c)
	if err != nil {
		return err
	}

	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.StartPrice <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "start price must be positive"})
	}

	auction, err := h.auctionService.CreateAuction(c.Request().Context(),
		callerID, req.ProductID, req.StartPrice, req.EndTime)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSchedule) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		h.log.Error("Failed to create auction", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create auction"})
	}

	return c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.auctionService.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainErrorResponse(c, h.log, err)
	}

	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	page, size := pageParams(c)

	auctions, total, err := h.auctionService.ListAuctions(c.Request().Context(), page, size)
	if err != nil {
		h.log.Error("Failed to list auctions", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list auctions"})
	}

	responses := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		responses = append(responses, toAuctionResponse(a))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"auctions": responses,
		"page":     page,
		"size":     size,
		"total":    total,
	})
}

func (h *AuctionHandler) EndAuction(c echo.Context) error {
	callerID, err := callerID(c)
	if err != nil {
		return err
	}

	auctionID := c.Param("id")
	if err := h.auctionService.ManualEndAuction(c.Request().Context(), auctionID, callerID); err != nil {
		return domainErrorResponse(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"auction_id": auctionID, "message": "auction ended"})
}

func (h *AuctionHandler) DeleteAuction(c echo.Context) error {
	callerID, err := callerID(c)
	if err != nil {
		return err
	}

	auctionID := c.Param("id")
	if err := h.auctionService.DeleteAuction(c.Request().Context(), auctionID, callerID); err != nil {
		return domainErrorResponse(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"auction_id": auctionID, "message": "auction deleted"})
}

// callerID reads the authenticated user id injected by the upstream gateway.
func callerID(c echo.Context) (string, error) {
	id := c.Request().Header.Get(userIDHeader)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	return id, nil
}

func pageParams(c echo.Context) (int, int) {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.QueryParam("size"))
	if err != nil || size < 1 || size > 100 {
		size = 20
	}
	return page, size
}

// domainErrorResponse maps domain errors to HTTP statuses. Precondition
// failures are client errors; anything unrecognized is a 500.
func domainErrorResponse(c echo.Context, log logger.Logger, err error) error {
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound), errors.Is(err, domain.ErrBidNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotAuctionOwner),
		errors.Is(err, domain.ErrBidNotOwner),
		errors.Is(err, domain.ErrCannotBidOwnAuction):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrAuctionClosed),
		errors.Is(err, domain.ErrAuctionAlreadyWon),
		errors.Is(err, domain.ErrAuctionNotOpen),
		errors.Is(err, domain.ErrBidBelowStartPrice),
		errors.Is(err, domain.ErrBidPriceTooLow),
		errors.Is(err, domain.ErrBidAuctionMismatch),
		errors.Is(err, domain.ErrCannotCancelWonBid),
		errors.Is(err, domain.ErrBidAlreadyCancelled),
		errors.Is(err, domain.ErrCancelWindowClosed),
		errors.Is(err, domain.ErrInsufficientBalance):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Error("Unhandled service error", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
