package common

import (
	"accessbus/src/config"
	"accessbus/src/db"
	"accessbus/src/lib"
	"accessbus/src/models"
	"accessbus/src/models/scopes"
	"accessbus/src/types"
	"context"
	"log"
	"time"

	"gorm.io/gorm"
)

// ExpireReservations deletes reservations whose time is older than the
// reservation TTL, together with their volunteer links.
func ExpireReservations(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-config.ReservationTTL())
	var expired []models.Reservation
	db := db.GetDb()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(scopes.ExpiredBefore(cutoff)).Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]uint, 0, len(expired))
		for _, r := range expired {
			ids = append(ids, r.ID)
		}
		if err := tx.Where("reservation_id IN (?)", ids).Delete(&models.VolunteerReservation{}).Error; err != nil {
			return err
		}
		return tx.Scopes(scopes.WithIDs(ids...)).Delete(&models.Reservation{}).Error
	})
	if err != nil {
		log.Printf("Error expiring reservations: %s\n", err.Error())
		return 0, err
	}
	for _, r := range expired {
		lib.CountReservationOp("expire")
		PublishEvent(ctx, types.EVENT_RESERVATION_EXPIRED, r.ID, r.OwnerID, types.JSONB{"time": r.Time.Format(time.RFC3339)})
	}
	if len(expired) > 0 {
		log.Printf("Expired %d reservations\n", len(expired))
	}
	return len(expired), nil
}

// ExpireReservationsJob is the scheduler entrypoint for ExpireReservations.
func ExpireReservationsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := ExpireReservations(ctx, time.Now()); err != nil {
		return
	}
	if _, err := RedeliverNotifications(ctx, 100); err != nil {
		log.Printf("Error redelivering notifications: %s\n", err.Error())
	}
}
