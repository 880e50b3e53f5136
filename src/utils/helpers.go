package utils

import (
	"accessbus/src/common"
	"accessbus/src/config"
	"accessbus/src/db"
	"accessbus/src/lib"
	"accessbus/src/lib/mailer"
	"accessbus/src/models"
	"accessbus/src/models/scopes"
	"accessbus/src/transit"
	"accessbus/src/types"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ParseReservationTime accepts RFC3339, TIME_PARSE_FORMAT or a bare "15:04"
// clock time. A clock time more than an hour in the past is taken as tomorrow.
func ParseReservationTime(value string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(config.TIME_PARSE_FORMAT, value); err == nil {
		return t, nil
	}
	clock, err := time.Parse("15:04", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", value)
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
	if t.Before(now.Add(-time.Hour)) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

// CreateReservation books a trip for userId, replacing any reservation the
// rider already holds.
func CreateReservation(ctx context.Context, userId uint, params *types.CreateReservationRequestBody) (*models.Reservation, error) {
	planner := transit.GetPlanner()
	if _, err := planner.Catalog.Get(params.OriginID); err != nil {
		return nil, types.ValidationError("Unknown origin stop")
	}
	if _, err := planner.Catalog.Get(params.DestinationID); err != nil {
		return nil, types.ValidationError("Unknown destination stop")
	}
	if params.OriginID == params.DestinationID {
		return nil, types.ValidationError("Origin and destination must differ")
	}
	at, err := ParseReservationTime(params.Time, time.Now())
	if err != nil {
		return nil, types.ValidationError(err.Error())
	}

	reservation := models.Reservation{
		OwnerID:       userId,
		OriginID:      params.OriginID,
		DestinationID: params.DestinationID,
		VehicleID:     params.VehicleID,
		RouteID:       params.RouteID,
		Time:          at.UTC().Truncate(time.Second),
	}
	var replaced *models.Reservation
	db := db.GetDb()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var previous models.Reservation
		err := tx.Scopes(scopes.OwnedBy(userId)).First(&previous).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			if err := deleteReservationTx(tx, previous.ID); err != nil {
				return err
			}
			replaced = &previous
		}
		return tx.Create(&reservation).Error
	})
	if err != nil {
		log.Printf("CreateReservation failed: %s\n", err.Error())
		return nil, err
	}

	if replaced != nil {
		lib.CountReservationOp("replace")
		common.PublishEvent(ctx, types.EVENT_RESERVATION_DELETED, replaced.ID, userId, types.JSONB{"replaced_by": reservation.ID})
	}
	lib.CountReservationOp("create")
	common.PublishEvent(ctx, types.EVENT_RESERVATION_CREATED, reservation.ID, userId, types.JSONB{
		"origin_id":      reservation.OriginID,
		"destination_id": reservation.DestinationID,
		"vehicle_id":     reservation.VehicleID,
	})
	return &reservation, nil
}

func deleteReservationTx(tx *gorm.DB, id uint) error {
	if err := tx.Where("reservation_id = ?", id).Delete(&models.VolunteerReservation{}).Error; err != nil {
		return err
	}
	return tx.Scopes(scopes.WithID(id)).Delete(&models.Reservation{}).Error
}

// DeleteReservation removes the rider's reservation. deleted is false when
// there was nothing to remove.
func DeleteReservation(ctx context.Context, userId uint) (deleted bool, err error) {
	var existing models.Reservation
	db := db.GetDb()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Scopes(scopes.OwnedBy(userId)).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		deleted = true
		return deleteReservationTx(tx, existing.ID)
	})
	if err != nil {
		return false, err
	}
	if deleted {
		lib.CountReservationOp("delete")
		common.PublishEvent(ctx, types.EVENT_RESERVATION_DELETED, existing.ID, userId, nil)
	}
	return deleted, nil
}

func GetOwnReservation(ctx context.Context, userId uint) (*types.ReservationView, error) {
	var r models.Reservation
	db := db.GetDb()
	err := db.WithContext(ctx).Scopes(scopes.OwnedBy(userId)).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFoundError("No reservation found")
	}
	if err != nil {
		return nil, err
	}
	view := DescribeReservation(ctx, &r, nil)
	return &view, nil
}

// DescribeReservation fills the derived fields from the vehicle feed. Feed
// errors leave them zero.
func DescribeReservation(ctx context.Context, r *models.Reservation, distance *float64) types.ReservationView {
	view := types.ReservationView{
		ReservationID:  r.ID,
		OriginID:       r.OriginID,
		DestinationID:  r.DestinationID,
		VehicleID:      r.VehicleID,
		RouteID:        r.RouteID,
		RouteName:      r.RouteID,
		Time:           r.Time.Format(time.RFC3339),
		VolunteerCount: r.VolunteerCount,
		Distance:       distance,
	}
	est, err := transit.GetPlanner().Describe(ctx, r.OriginID, r.VehicleID)
	view.Street = est.Street
	if err != nil {
		log.Printf("Error describing reservation %d: %s\n", r.ID, err.Error())
		return view
	}
	if est.RouteID != "" {
		view.RouteID = est.RouteID
		view.RouteName = est.RouteName
	}
	view.SeatsEmpty = est.SeatsEmpty
	view.RampType = est.RampType
	view.ArrivalMin = est.ArrivalMin
	view.ArrivalTime = est.ArrivalTime
	return view
}

// NearbyReservations lists reservations of other riders ordered by the
// distance from (lat, lon) to their origin stop, capped at limit.
func NearbyReservations(ctx context.Context, userId uint, lat, lon float64, limit int) ([]types.ReservationView, error) {
	var reservations []models.Reservation
	db := db.GetDb()
	cutoff := time.Now().Add(-config.ReservationTTL())
	if err := db.WithContext(ctx).
		Scopes(scopes.NotOwnedBy(userId)).
		Where("departs_at >= ?", cutoff.UTC()).
		Find(&reservations).
		Error; err != nil {
		return nil, err
	}
	planner := transit.GetPlanner()
	type ranked struct {
		r        *models.Reservation
		distance float64
	}
	candidates := make([]ranked, 0, len(reservations))
	for i := range reservations {
		d, err := planner.DistanceTo(reservations[i].OriginID, lat, lon)
		if err != nil {
			continue
		}
		candidates = append(candidates, ranked{r: &reservations[i], distance: d})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]types.ReservationView, 0, len(candidates))
	for _, c := range candidates {
		d := c.distance
		out = append(out, DescribeReservation(ctx, c.r, &d))
	}
	return out, nil
}

func AddVolunteer(ctx context.Context, userId uint, reservationId uint) (*models.Reservation, error) {
	var reservation models.Reservation
	db := db.GetDb()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Scopes(scopes.WithID(reservationId)).First(&reservation).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFoundError("Reservation not found")
		}
		if err != nil {
			return err
		}
		if reservation.OwnerID == userId {
			return types.ValidationError("You cannot volunteer for your own reservation")
		}
		var count int64
		if err := tx.Model(&models.VolunteerReservation{}).
			Where("reservation_id = ? AND user_id = ?", reservationId, userId).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return types.ConflictError("Already volunteering for this reservation")
		}
		if err := tx.Create(&models.VolunteerReservation{ReservationID: reservationId, UserID: userId}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Reservation{}).
			Scopes(scopes.WithID(reservationId)).
			UpdateColumn("volunteer_count", gorm.Expr("volunteer_count + 1")).Error; err != nil {
			return err
		}
		return tx.Scopes(scopes.WithID(reservationId)).Preload("Owner").First(&reservation).Error
	})
	if err != nil {
		return nil, err
	}
	lib.CountReservationOp("volunteer_attach")
	common.PublishEvent(ctx, types.EVENT_VOLUNTEER_ATTACHED, reservation.ID, userId, types.JSONB{"owner_id": reservation.OwnerID})
	if reservation.Owner != nil && reservation.Owner.Email != "" {
		mailer.NewMailerMessage(mailer.VolunteerAttached(reservation.Owner.Name, reservation.Owner.Email, reservation.ID, reservation.RouteID))
	}
	return &reservation, nil
}

func RemoveVolunteer(ctx context.Context, userId uint, reservationId uint) (*models.Reservation, error) {
	var reservation models.Reservation
	db := db.GetDb()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("reservation_id = ? AND user_id = ?", reservationId, userId).Delete(&models.VolunteerReservation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NotFoundError("Not volunteering for this reservation")
		}
		if err := tx.Model(&models.Reservation{}).
			Scopes(scopes.WithID(reservationId)).
			Where("volunteer_count > 0").
			UpdateColumn("volunteer_count", gorm.Expr("volunteer_count - 1")).Error; err != nil {
			return err
		}
		return tx.Scopes(scopes.WithID(reservationId)).First(&reservation).Error
	})
	if err != nil {
		return nil, err
	}
	lib.CountReservationOp("volunteer_detach")
	common.PublishEvent(ctx, types.EVENT_VOLUNTEER_DETACHED, reservation.ID, userId, nil)
	return &reservation, nil
}

var pdfMagic = []byte("%PDF-")

// SaveDocument stores an uploaded PDF. ownerId is nil for temporary uploads.
func SaveDocument(ctx context.Context, ownerId *uint, fh *multipart.FileHeader) (*models.Document, error) {
	if fh == nil {
		return nil, types.ValidationError("No file part")
	}
	if fh.Size > config.MAX_UPLOAD_SIZE {
		return nil, types.NewAPIError(http.StatusRequestEntityTooLarge, types.ERR_VALIDATION, "File is too large")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		return nil, types.ValidationError("Only PDF files are allowed")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return nil, types.ValidationError("Only PDF files are allowed")
	}
	body := io.MultiReader(bytes.NewReader(head), f)

	base := strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename))
	doc := models.Document{
		ID:          uuid.New(),
		OwnerID:     ownerId,
		Filename:    fh.Filename,
		ContentType: "application/pdf",
		Size:        fh.Size,
	}
	doc.Key = fmt.Sprintf("documents/%s-%s.pdf", doc.ID.String(), slug.Make(base))

	storage := lib.GetStorage()
	if err := storage.Put(ctx, doc.Key, doc.ContentType, body, fh.Size); err != nil {
		log.Printf("[%s] Error storing document: %s\n", storage.Name(), err.Error())
		return nil, err
	}
	db := db.GetDb()
	if err := db.WithContext(ctx).Create(&doc).Error; err != nil {
		if derr := storage.Delete(ctx, doc.Key); derr != nil {
			log.Printf("Error removing orphaned document %s: %s\n", doc.Key, derr.Error())
		}
		return nil, err
	}
	return &doc, nil
}

// LatestDocument returns the most recently uploaded document of userId.
func LatestDocument(ctx context.Context, userId uint) (*models.Document, error) {
	var doc models.Document
	db := db.GetDb()
	err := db.WithContext(ctx).
		Where("owner_id = ?", userId).
		Order("created_at desc").
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFoundError("No document uploaded")
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// LinkDocument attaches a temporary upload to userId.
func LinkDocument(ctx context.Context, userId uint, documentId uuid.UUID) (*models.Document, error) {
	var doc models.Document
	db := db.GetDb()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", documentId).First(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFoundError("Document not found")
		}
		if err != nil {
			return err
		}
		if doc.OwnerID != nil {
			if *doc.OwnerID == userId {
				return nil
			}
			return types.ConflictError("Document is already linked to another user")
		}
		doc.OwnerID = &userId
		return tx.Model(&doc).Update("owner_id", userId).Error
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
