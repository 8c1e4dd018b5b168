package websocket

import (
	"net/http"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades watcher requests into live auction feed connections.
type Handler struct {
	auctionRepo domain.AuctionRepository
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewHandler(auctionRepo domain.AuctionRepository,
	connManager domain.ConnectionManager, log logger.Logger) *Handler {
	return &Handler{
		auctionRepo: auctionRepo,
		connManager: connManager,
		log:         log,
	}
}

// HandleConnection serves GET /ws/auctions/:id. The watcher receives
// admission and closure broadcasts until the auction finishes.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request, auctionID, userID string) {
	auction, err := h.auctionRepo.GetAuction(r.Context(), auctionID)
	if err != nil {
		h.log.Error("Failed to find auction for watcher", "auction_id", auctionID, "error", err)
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}

	if auction.Status != domain.AuctionOpen || time.Now().After(auction.EndTime) {
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, userID, auctionID, h.log)

	if err := h.connManager.RegisterConnection(userID, auctionID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	go h.readLoop(wsConn, userID, auctionID)
}

// readLoop drains client frames (only pings are expected) and unregisters on
// disconnect.
func (h *Handler) readLoop(conn *WebSocketConnection, userID, auctionID string) {
	defer func() {
		h.connManager.UnregisterConnection(userID, auctionID)
		conn.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.conn.ReadJSON(&msg); err != nil {
			return
		}

		if msgType, ok := msg["type"].(string); ok && msgType == "ping" {
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}
