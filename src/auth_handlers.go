package main

import (
	"accessbus/src/controllers"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

func authHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/login", func(ctx *gin.Context) {
			res, status, err := controllers.AuthLogin(ctx)
			if err != nil {
				log.Printf("[AuthLogin] error: %s\n", err.Error())
				abortWithError(ctx, status, err)
				return
			}
			ctx.JSON(http.StatusOK, res)
		}).
		POST("/register", func(ctx *gin.Context) {
			res, status, err := controllers.AuthRegister(ctx)
			if err != nil {
				log.Printf("[AuthRegister] error: %s\n", err.Error())
				abortWithError(ctx, status, err)
				return
			}
			ctx.JSON(status, res)
		})
	return g
}

func refreshHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.GET("/refresh", func(ctx *gin.Context) {
		res, status, err := controllers.AuthRefresh(ctx)
		if err != nil {
			abortWithError(ctx, status, err)
			return
		}
		ctx.JSON(http.StatusOK, res)
	})
	return g
}

func sessionHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.POST("/logout", func(ctx *gin.Context) {
		status, err := controllers.AuthLogout(ctx)
		if err != nil {
			abortWithError(ctx, status, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"message": "Logged out", "success": true})
	})
	return g
}
