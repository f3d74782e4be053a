package ws

import (
	"context"

	"github.com/olegsazonov/emergency-backend/internal/logger"
	"github.com/olegsazonov/emergency-backend/internal/models"
)

// События жизненного цикла вызова, доставляемые через WebSocket.
const (
	EventEmergencyCreated  = "emergency.created"
	EventEmergencyAssigned = "emergency.assigned"
	EventEmergencyResolved = "emergency.resolved"
)

// TransitionNotifier доставляет изменения статуса вызова через хаб:
// заявителю адресно, дежурным спасателям широковещательно.
type TransitionNotifier struct {
	hub *Hub
}

// NewTransitionNotifier создаёт нотификатор переходов.
func NewTransitionNotifier(hub *Hub) *TransitionNotifier {
	return &TransitionNotifier{hub: hub}
}

// NotifyTransition рассылает событие перехода. Ошибки доставки
// логируются и не влияют на сам переход.
func (n *TransitionNotifier) NotifyTransition(ctx context.Context, e *models.Emergency, ev models.TransitionEvent) {
	log := logger.WithComponent("ws").WithField("emergency_id", e.ID)

	event := eventName(ev.NewStatus)
	if event == "" {
		return
	}

	// Заявитель всегда в курсе судьбы своего вызова.
	if err := n.hub.BroadcastToUser(e.ReporterID, event, e); err != nil {
		log.WithError(err).Warn("не удалось уведомить заявителя")
	}

	// Закреплённый спасатель получает адресное уведомление.
	if e.ResponderID != nil && *e.ResponderID != ev.ActorID {
		if err := n.hub.BroadcastToUser(*e.ResponderID, event, e); err != nil {
			log.WithError(err).Warn("не удалось уведомить спасателя")
		}
	}

	// Дежурная смена видит появление и исчезновение вызовов в реальном времени.
	switch ev.NewStatus {
	case models.EmergencyStatusPending, models.EmergencyStatusAssigned:
		if err := n.hub.BroadcastToRole(models.RoleResponder, event, e); err != nil {
			log.WithError(err).Warn("не удалось оповестить дежурную смену")
		}
	}
}

func eventName(status models.EmergencyStatus) string {
	switch status {
	case models.EmergencyStatusPending:
		return EventEmergencyCreated
	case models.EmergencyStatusAssigned:
		return EventEmergencyAssigned
	case models.EmergencyStatusResolved:
		return EventEmergencyResolved
	}
	return ""
}
