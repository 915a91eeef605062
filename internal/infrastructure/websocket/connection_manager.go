package websocket

import (
	"encoding/json"
	"sync"

	"auction-house/internal/domain"
	"auction-house/pkg/logger"
)

// RoomManager tracks which viewers are in which auction room. A room is
// simply the set of live connections for one auction id; joining and
// leaving are the subscription operations of the broadcaster.
type RoomManager struct {
	rooms     map[string]map[string]domain.WebSocketConnection // auctionID -> userID -> connection
	userConns map[string][]domain.WebSocketConnection          // userID -> connections
	mutex     sync.RWMutex
	log       logger.Logger
}

func NewRoomManager(log logger.Logger) *RoomManager {
	return &RoomManager{
		rooms:     make(map[string]map[string]domain.WebSocketConnection),
		userConns: make(map[string][]domain.WebSocketConnection),
		log:       log,
	}
}

func (rm *RoomManager) JoinRoom(userID, auctionID string, conn domain.WebSocketConnection) error {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	// A rejoin replaces the user's previous connection for this auction;
	// close it and drop its index entries so it cannot leak.
	if old, exists := rm.rooms[auctionID][userID]; exists {
		if err := old.Close(); err != nil {
			rm.log.Error("Failed to close replaced connection", "user_id", userID,
				"auction_id", auctionID, "error", err)
		}
		rm.removeLocked(userID, auctionID)
	}

	if rm.rooms[auctionID] == nil {
		rm.rooms[auctionID] = make(map[string]domain.WebSocketConnection)
	}
	rm.rooms[auctionID][userID] = conn

	rm.userConns[userID] = append(rm.userConns[userID], conn)

	rm.log.Info("Viewer joined room", "user_id", userID, "auction_id", auctionID)
	return nil
}

func (rm *RoomManager) LeaveRoom(userID, auctionID string) error {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	rm.removeLocked(userID, auctionID)

	rm.log.Info("Viewer left room", "user_id", userID, "auction_id", auctionID)
	return nil
}

// removeLocked drops the user's connection from the room and from the
// per-user index. Caller must hold the write lock.
func (rm *RoomManager) removeLocked(userID, auctionID string) {
	if roomConns, exists := rm.rooms[auctionID]; exists {
		delete(roomConns, userID)
		if len(roomConns) == 0 {
			delete(rm.rooms, auctionID)
		}
	}

	if userConnections, exists := rm.userConns[userID]; exists {
		var newConns []domain.WebSocketConnection
		for _, existingConn := range userConnections {
			if existingConn.AuctionID() != auctionID {
				newConns = append(newConns, existingConn)
			}
		}

		if len(newConns) == 0 {
			delete(rm.userConns, userID)
		} else {
			rm.userConns[userID] = newConns
		}
	}
}

func (rm *RoomManager) CloseRoom(auctionID string) error {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	roomConns, exists := rm.rooms[auctionID]
	if !exists {
		return nil
	}

	for userID, conn := range roomConns {
		if err := conn.Close(); err != nil {
			rm.log.Error("Failed to close connection", "user_id", userID,
				"auction_id", auctionID, "error", err)
		}
		rm.removeLocked(userID, auctionID)
	}
	delete(rm.rooms, auctionID)

	rm.log.Info("Room closed", "auction_id", auctionID)
	return nil
}

func (rm *RoomManager) RoomConnections(auctionID string) []domain.WebSocketConnection {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	if roomConns, exists := rm.rooms[auctionID]; exists {
		for _, conn := range roomConns {
			connections = append(connections, conn)
		}
	}

	return connections
}

func (rm *RoomManager) UserConnections(userID string) []domain.WebSocketConnection {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	if connections, exists := rm.userConns[userID]; exists {
		return connections
	}

	return nil
}

// BroadcastToRoom delivers the message to every connection in the room.
// Delivery is best-effort; a failed send is logged and the rest of the
// room still receives the message.
func (rm *RoomManager) BroadcastToRoom(auctionID string, message interface{}) error {
	connections := rm.RoomConnections(auctionID)

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(messageBytes); err != nil {
			rm.log.Error("Failed to send message", "user_id", conn.UserID(),
				"auction_id", auctionID, "error", err)
			// Continue to other connections
		}
	}

	return nil
}

func (rm *RoomManager) NotifyUser(userID string, message interface{}) error {
	connections := rm.UserConnections(userID)

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(messageBytes); err != nil {
			rm.log.Error("Failed to send message", "user_id", userID, "error", err)
		}
	}

	return nil
}
