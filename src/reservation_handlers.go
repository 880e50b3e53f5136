package main

import (
	"accessbus/src/types"
	"accessbus/src/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

func reservationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/create_reservation", func(ctx *gin.Context) {
			var body types.CreateReservationRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				abortWithError(ctx, http.StatusBadRequest, types.ValidationError("origin_id, destination_id, vehicle_id and a valid time are required"))
				return
			}
			userId := ctx.GetUint("id")
			reservation, err := utils.CreateReservation(ctx, userId, &body)
			if err != nil {
				abortWithError(ctx, http.StatusInternalServerError, err)
				return
			}
			view := utils.DescribeReservation(ctx, reservation, nil)
			ctx.JSON(http.StatusCreated, gin.H{
				"message": "Reservation created",
				"success": true,
				"data":    view,
			})
		}).
		POST("/delete_reservation", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			deleted, err := utils.DeleteReservation(ctx, userId)
			if err != nil {
				abortWithError(ctx, http.StatusInternalServerError, err)
				return
			}
			msg := "Reservation deleted"
			if !deleted {
				msg = "No reservation to delete"
			}
			ctx.JSON(http.StatusOK, gin.H{"message": msg, "success": true, "deleted": deleted})
		}).
		GET("/see_reservation", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			view, err := utils.GetOwnReservation(ctx, userId)
			if err != nil {
				abortWithError(ctx, http.StatusInternalServerError, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": view})
		})
	return g
}

func volunteerHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/show_reservations", func(ctx *gin.Context) {
			var query types.NearbyReservationsQuery
			if err := ctx.ShouldBindQuery(&query); err != nil {
				abortWithError(ctx, http.StatusBadRequest, types.ValidationError("latitude and longitude are required"))
				return
			}
			userId := ctx.GetUint("id")
			data, err := utils.NearbyReservations(ctx, userId, *query.Latitude, *query.Longitude, query.Limit)
			if err != nil {
				abortWithError(ctx, http.StatusInternalServerError, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		}).
		POST("/add_volunteer", func(ctx *gin.Context) {
			var body types.VolunteerRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				abortWithError(ctx, http.StatusBadRequest, types.ValidationError("reservation_id is required"))
				return
			}
			reservation, err := utils.AddVolunteer(ctx, ctx.GetUint("id"), body.ReservationID)
			if err != nil {
				abortWithError(ctx, http.StatusInternalServerError, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"message": "Volunteer added",
				"success": true,
				"data": gin.H{
					"reservation_id":  reservation.ID,
					"volunteer_count": reservation.VolunteerCount,
				},
			})
		}).
		POST("/remove_volunteer", func(ctx *gin.Context) {
			var body types.VolunteerRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				abortWithError(ctx, http.StatusBadRequest, types.ValidationError("reservation_id is required"))
				return
			}
			reservation, err := utils.RemoveVolunteer(ctx, ctx.GetUint("id"), body.ReservationID)
			if err != nil {
				abortWithError(ctx, http.StatusInternalServerError, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"message": "Volunteer removed",
				"success": true,
				"data": gin.H{
					"reservation_id":  reservation.ID,
					"volunteer_count": reservation.VolunteerCount,
				},
			})
		})
	return g
}
