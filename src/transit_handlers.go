package main

import (
	"accessbus/src/transit"
	"accessbus/src/types"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

func transitHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.GET("/autocomplete", func(ctx *gin.Context) {
		var query types.AutocompleteQuery
		if err := ctx.ShouldBindQuery(&query); err != nil {
			abortWithError(ctx, http.StatusBadRequest, types.ValidationError("input is required"))
			return
		}
		stops := transit.GetPlanner().Catalog.Autocomplete(query.Input, query.Limit)
		ctx.JSON(http.StatusOK, gin.H{"data": stops, "count": len(stops)})
	})
	return g
}

func timetableHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.GET("/timetables", func(ctx *gin.Context) {
		var query types.TimetablesQuery
		if err := ctx.ShouldBindQuery(&query); err != nil {
			abortWithError(ctx, http.StatusBadRequest, types.ValidationError("origin_id is required"))
			return
		}
		data, err := transit.GetPlanner().Timetables(ctx, query.OriginID, query.DestinationID)
		if errors.Is(err, transit.ErrStopNotFound) {
			abortWithError(ctx, http.StatusNotFound, types.NotFoundError("Unknown stop"))
			return
		}
		if err != nil {
			abortWithError(ctx, http.StatusInternalServerError, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
	})
	return g
}
