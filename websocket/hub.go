package websocket

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/mkemboi590/course_catalog/database"
	"github.com/mkemboi590/course_catalog/models"
)

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

// AggregateUpdate is pushed to every connected user enrolled in the course
// whenever its rating aggregate changes.
type AggregateUpdate struct {
	CourseID    uuid.UUID `json:"course_id"`
	Rating      float64   `json:"rating"`
	RatingCount int       `json:"rating_count"`
}

var clients = make(map[uuid.UUID]*websocket.Conn)
var clientsMu sync.RWMutex
var Register = make(chan *Client)
var Unregister = make(chan *Client)
var Broadcast = make(chan *AggregateUpdate, 64)

// BroadcastAggregate hands an update to the hub without ever blocking the
// request path. Updates are dropped when the hub backlog is full; the feed is
// best effort, readers re-fetch the course for the authoritative value.
func BroadcastAggregate(courseID uuid.UUID, rating float64, ratingCount int) {
	update := &AggregateUpdate{CourseID: courseID, Rating: rating, RatingCount: ratingCount}
	select {
	case Broadcast <- update:
	default:
		log.Printf("Aggregate update feed backlog full, dropping update for course %s", courseID)
	}
}

func RunHub() {
	for {
		select {
		case client := <-Register:
			log.Printf("Client registered: %s", client.UserID)
			clientsMu.Lock()
			clients[client.UserID] = client.Conn
			clientsMu.Unlock()
		case client := <-Unregister:
			log.Printf("Client unregistered: %s", client.UserID)
			clientsMu.Lock()
			if conn, ok := clients[client.UserID]; ok && conn == client.Conn {
				delete(clients, client.UserID)
			}
			clientsMu.Unlock()
		case update := <-Broadcast:
			var enrolledIDs []uuid.UUID
			err := database.DB.Model(&models.Enrollment{}).
				Where("course_id = ? AND status <> ?", update.CourseID, models.EnrollmentStatusDropped).
				Pluck("user_id", &enrolledIDs).Error
			if err != nil {
				log.Printf("Error fetching enrolled user IDs for course %s: %v", update.CourseID, err)
				continue
			}

			clientsMu.RLock()
			for _, enrolledID := range enrolledIDs {
				if conn, ok := clients[enrolledID]; ok {
					if err := conn.WriteJSON(update); err != nil {
						log.Printf("Error sending update to client %s: %v", enrolledID, err)
						conn.Close()
						clientsMu.RUnlock()
						clientsMu.Lock()
						delete(clients, enrolledID)
						clientsMu.Unlock()
						clientsMu.RLock()
					}
				}
			}
			clientsMu.RUnlock()
		}
	}
}
