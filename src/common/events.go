package common

import (
	"accessbus/src/db"
	"accessbus/src/lib"
	"accessbus/src/models"
	"accessbus/src/types"
	"context"
	"log"
	"time"
)

// PublishEvent records the event in the outbox and hands it to the
// configured publisher. Failures are logged and never surface to callers.
func PublishEvent(ctx context.Context, eventType types.EventType, reference uint, userId uint, payload types.JSONB) {
	evt := types.Event{
		Type:      eventType,
		Reference: reference,
		UserID:    userId,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	}
	notification := models.Notification{
		Type:      eventType,
		Reference: reference,
		UserID:    userId,
	}
	if payload != nil {
		notification.Payload = &payload
	}

	publisher := lib.GetPublisher()
	if err := publisher.Publish(ctx, evt); err != nil {
		log.Printf("[%s] Error publishing %s: %s\n", publisher.Name(), eventType, err.Error())
	} else {
		notification.Delivered = true
		notification.DeliveredTo = publisher.Name()
	}

	db := db.GetDb()
	if err := db.WithContext(context.WithoutCancel(ctx)).Create(&notification).Error; err != nil {
		log.Printf("Error saving notification: %s\n", err.Error())
	}
}

// RedeliverNotifications retries outbox rows the publisher rejected earlier.
func RedeliverNotifications(ctx context.Context, limit int) (int, error) {
	var pending []models.Notification
	db := db.GetDb()
	if err := db.WithContext(ctx).
		Where("delivered = ?", false).
		Order("created_at asc").
		Limit(limit).
		Find(&pending).Error; err != nil {
		return 0, err
	}
	publisher := lib.GetPublisher()
	delivered := 0
	for _, n := range pending {
		evt := types.Event{
			Type:      n.Type,
			Reference: n.Reference,
			UserID:    n.UserID,
			Timestamp: n.CreatedAt.Unix(),
		}
		if n.Payload != nil {
			evt.Payload = *n.Payload
		}
		if err := publisher.Publish(ctx, evt); err != nil {
			log.Printf("[%s] Error redelivering %s: %s\n", publisher.Name(), n.ID, err.Error())
			continue
		}
		if err := db.WithContext(ctx).
			Model(&models.Notification{}).
			Where("id = ?", n.ID).
			Updates(map[string]any{"delivered": true, "delivered_to": publisher.Name()}).Error; err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}
