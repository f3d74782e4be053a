package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/olegsazonov/emergency-backend/internal/goroutine"
	"github.com/olegsazonov/emergency-backend/internal/logger"
)

// NotificationSaver интерфейс для сохранения уведомлений в БД.
type NotificationSaver interface {
	CreateNotification(ctx context.Context, userID uuid.UUID, event string, data interface{}) error
}

// Hub управляет всеми WebSocket клиентами. Клиенты группируются по
// пользователю и по роли: спасатели получают общие оповещения о новых
// вызовах, адресные сообщения уходят конкретному пользователю.
type Hub struct {
	mu                sync.RWMutex
	clients           map[uuid.UUID]map[*Client]struct{}
	roleClients       map[string]map[*Client]struct{}
	register          chan *Client
	unregister        chan *Client
	broadcast         chan message
	notificationSaver NotificationSaver
	ctx               context.Context
}

type message struct {
	// Либо userID, либо role. Роль имеет приоритет, если задана.
	userID  uuid.UUID
	role    string
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		clients:     make(map[uuid.UUID]map[*Client]struct{}),
		roleClients: make(map[string]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan message, 32),
		ctx:         ctx,
	}
}

// SetNotificationSaver устанавливает сервис для сохранения уведомлений.
func (h *Hub) SetNotificationSaver(saver NotificationSaver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notificationSaver = saver
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			if msg.role != "" {
				h.sendToRole(msg.role, msg.payload)
			} else {
				h.sendToUser(msg.userID, msg.payload)
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastToUser отправляет сообщение конкретному пользователю и
// сохраняет уведомление в БД.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	raw, err := marshalEvent(event, data)
	if err != nil {
		return err
	}

	h.mu.RLock()
	saver := h.notificationSaver
	ctx := h.ctx
	h.mu.RUnlock()

	if saver != nil {
		// Сохраняем асинхронно, чтобы не блокировать отправку.
		goroutine.SafeGo(func() {
			if err := saver.CreateNotification(ctx, userID, event, data); err != nil {
				logger.WithComponent("ws").WithError(err).Warn("не удалось сохранить уведомление")
			}
		})
	}

	h.broadcast <- message{userID: userID, payload: raw}
	return nil
}

// BroadcastToRole отправляет сообщение всем подключённым пользователям
// роли. Без записи в БД: это живые оповещения для дежурной смены.
func (h *Hub) BroadcastToRole(role string, event string, data any) error {
	raw, err := marshalEvent(event, data)
	if err != nil {
		return err
	}

	h.broadcast <- message{role: role, payload: raw}
	return nil
}

// Сообщение клиенту следует контракту WebSocket API:
// "type" содержит имя события, "data" полезную нагрузку.
func marshalEvent(event string, data any) ([]byte, error) {
	payload := map[string]any{
		"type": event,
		"data": data,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}
	return raw, nil
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}

	if client.role != "" {
		if _, ok := h.roleClients[client.role]; !ok {
			h.roleClients[client.role] = make(map[*Client]struct{})
		}
		h.roleClients[client.role][client] = struct{}{}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
	if clients, ok := h.roleClients[client.role]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.roleClients, client.role)
		}
	}
}

func (h *Hub) sendToUser(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		h.deliver(client, payload)
	}
}

func (h *Hub) sendToRole(role string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.roleClients[role] {
		h.deliver(client, payload)
	}
}

func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		// Переполненный буфер означает мёртвое соединение.
		goroutine.SafeGo(client.Close)
	}
}
