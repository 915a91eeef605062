package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"auction-house/internal/domain"
	"auction-house/internal/services"
	"auction-house/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type WebSocketHandler struct {
	bidService  *services.BidService
	auctionRepo domain.AuctionRepository
	rooms       domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(bidService *services.BidService,
	auctionRepo domain.AuctionRepository,
	rooms domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bidService:  bidService,
		auctionRepo: auctionRepo,
		rooms:       rooms,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	auctionID := vars["auctionID"]

	auction, err := h.auctionRepo.GetByID(r.Context(), auctionID)
	if err != nil {
		h.log.Error("Failed to find auction", "error", err, "auction_id", auctionID)
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}

	if auction.Status.Terminal() || time.Now().After(auction.EndTime) {
		h.log.Info("Rejected connection - auction is over", "auction_id", auctionID)
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	userID := r.URL.Query().Get("user_id")
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

	if err := h.rooms.JoinRoom(userID, auctionID, wsConn); err != nil {
		h.log.Error("Failed to join room", "error", err)
		conn.Close()
		return
	}

	go h.handleMessages(wsConn, userID, auctionID)
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection, userID, auctionID string) {
	defer func() {
		h.rooms.LeaveRoom(userID, auctionID)
		conn.Close()
	}()

	for {
		var msg map[string]interface{}
		err := conn.conn.ReadJSON(&msg)
		if err != nil {
			return
		}

		msgType, ok := msg["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "place_bid":
			h.handleBidMessage(conn, userID, auctionID, msg)
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, userID, auctionID string, msg map[string]interface{}) {
	amount, ok := msg["amount"].(float64)
	if !ok {
		conn.Send(map[string]string{"type": "error", "message": "invalid amount"})
		return
	}

	_, err := h.bidService.PlaceBid(context.Background(), auctionID, userID, amount)
	if err != nil {
		if reason, ok := domain.RejectReasonFor(err); ok {
			conn.Send(map[string]interface{}{
				"type":       "bid_rejected",
				"auction_id": auctionID,
				"reason":     string(reason),
			})
			return
		}
		h.log.Error("Failed to place bid", "error", err, "auction_id", auctionID)
		conn.Send(map[string]string{"type": "error", "message": "failed to place bid"})
	}
	// Acceptance reaches the bidder through the room broadcast.
}

type WebSocketConnection struct {
	conn      *websocket.Conn
	userID    string
	auctionID string
	writeMu   sync.Mutex
	log       logger.Logger
}

func NewWebSocketConnection(conn *websocket.Conn, userID, auctionID string, log logger.Logger) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
		log:       log,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	if raw, ok := message.([]byte); ok {
		return wsc.conn.WriteMessage(websocket.TextMessage, raw)
	}
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) AuctionID() string {
	return wsc.auctionID
}
