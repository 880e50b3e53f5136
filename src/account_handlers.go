package main

import (
	"accessbus/src/controllers"
	"net/http"

	"github.com/gin-gonic/gin"
)

func accountHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/user-info", func(ctx *gin.Context) {
			info, status, err := controllers.AccountsUserInfo(ctx)
			if err != nil {
				abortWithError(ctx, status, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": info})
		}).
		POST("/edit_profile", func(ctx *gin.Context) {
			info, status, err := controllers.AccountsEditProfile(ctx)
			if err != nil {
				abortWithError(ctx, status, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"message": "Profile updated", "success": true, "data": info})
		}).
		POST("/change_password", func(ctx *gin.Context) {
			status, err := controllers.AccountsChangePassword(ctx)
			if err != nil {
				abortWithError(ctx, status, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"message": "Password changed", "success": true})
		})
	return g
}
