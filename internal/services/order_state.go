package services

import (
	"slices"

	"bookstore/internal/models"
)

var orderStateTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:   {models.OrderStatusDelivered},
}

var cancellableStatuses = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusConfirmed,
}

// progression is the forward path followed by AdvanceOrder.
var progression = map[models.OrderStatus]models.OrderStatus{
	models.OrderStatusPending:   models.OrderStatusConfirmed,
	models.OrderStatusConfirmed: models.OrderStatusShipped,
	models.OrderStatusShipped:   models.OrderStatusDelivered,
}

func canTransition(current, target models.OrderStatus) bool {
	if current == target {
		return true
	}
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

func canCancel(status models.OrderStatus) bool {
	return slices.Contains(cancellableStatuses, status)
}

func nextStatus(current models.OrderStatus) (models.OrderStatus, bool) {
	next, ok := progression[current]
	return next, ok
}

// paymentStatusFor returns the payment status implied by entering target,
// or "" when the payment status is left alone.
func paymentStatusFor(target models.OrderStatus) models.PaymentStatus {
	switch target {
	case models.OrderStatusDelivered:
		return models.PaymentStatusCompleted
	case models.OrderStatusCancelled:
		return models.PaymentStatusRefunded
	}
	return ""
}
