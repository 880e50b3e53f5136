package middlewares

import (
	"accessbus/src/db"
	"accessbus/src/lib"
	"accessbus/src/models"
	"accessbus/src/types"
	"accessbus/src/utils"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func abortUnauthorized(ctx *gin.Context, code string, message string) {
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   code,
		"message": message,
		"success": false,
	})
}

func bearerToken(ctx *gin.Context) string {
	header := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func loadUser(claims *types.Claims) (*models.User, error) {
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, err
	}
	db := db.GetDb()
	var user models.User
	if err := db.Where("id = ?", uint(uid)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func setUser(ctx *gin.Context, user *models.User) {
	ctx.Set("id", user.ID)
	ctx.Set("email", user.Email)
	ctx.Set("role", user.Role)
}

// AuthMiddleware requires a valid access token.
func AuthMiddleware(ctx *gin.Context) {
	claims, code, err := utils.ParseJWT(bearerToken(ctx), types.TOKEN_ACCESS)
	if err != nil {
		abortUnauthorized(ctx, code, err.Error())
		return
	}
	user, err := loadUser(claims)
	if err != nil {
		log.Printf("Error loading token subject %s: %s\n", claims.Subject, err.Error())
		abortUnauthorized(ctx, types.ERR_INVALID_TOKEN, "token is invalid")
		return
	}
	setUser(ctx, user)
}

// RefreshMiddleware requires a refresh token that has not been revoked.
func RefreshMiddleware(ctx *gin.Context) {
	claims, code, err := utils.ParseJWT(bearerToken(ctx), types.TOKEN_REFRESH)
	if err != nil {
		abortUnauthorized(ctx, code, err.Error())
		return
	}
	if !refreshTokenUsable(ctx, claims.ID) {
		abortUnauthorized(ctx, types.ERR_REVOKED_TOKEN, "token has been revoked")
		return
	}
	user, err := loadUser(claims)
	if err != nil {
		abortUnauthorized(ctx, types.ERR_INVALID_TOKEN, "token is invalid")
		return
	}
	setUser(ctx, user)
	ctx.Set("jti", claims.ID)
}

func refreshTokenUsable(ctx *gin.Context, jti string) bool {
	rdb := lib.GetRedisClient()
	found, err := lib.RefreshTokenCached(ctx, rdb, jti)
	if err != nil {
		log.Printf("[redis] Error reading refresh token: %s\n", err.Error())
	}
	if found {
		return true
	}
	db := db.GetDb()
	var token models.Token
	err = db.Where("id = ?", jti).First(&token).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Error reading refresh token: %s\n", err.Error())
		}
		return false
	}
	return token.Usable(time.Now())
}
