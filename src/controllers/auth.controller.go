package controllers

import (
	"accessbus/src/config"
	"accessbus/src/db"
	"accessbus/src/lib"
	"accessbus/src/models"
	"accessbus/src/types"
	"accessbus/src/utils"
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errInvalidCredentials = types.UnauthorizedError(types.ERR_INVALID_CREDENTIALS, "Invalid email or password")

func AuthLogin(ctx *gin.Context) (res *types.AuthResponse, status int, err error) {
	var body types.LoginRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, types.ValidationError("Email and password are required")
	}

	db := db.GetDb()
	var user models.User
	if err := db.
		Where("email = ?", utils.NormalizeEmail(body.Email)).
		First(&user).
		Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Error looking up user: %s\n", err.Error())
			return nil, http.StatusInternalServerError, err
		}
		return nil, http.StatusUnauthorized, errInvalidCredentials
	}
	if !utils.CheckPassword(user.PasswordHash, body.Password) {
		return nil, http.StatusUnauthorized, errInvalidCredentials
	}

	if err := db.
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("last_active", time.Now()).
		Error; err != nil {
		log.Printf("Error updating last_active for user [%d]: %s\n", user.ID, err.Error())
	}

	res, err = issueTokens(ctx, &user)
	if err != nil {
		log.Printf("Error issuing tokens for user [%d]: %s\n", user.ID, err.Error())
		return nil, http.StatusInternalServerError, err
	}
	res.Message = "Login successful"
	return res, http.StatusOK, nil
}

func issueTokens(ctx context.Context, user *models.User) (*types.AuthResponse, error) {
	access, err := utils.GenerateJWT(user, types.TOKEN_ACCESS, config.AccessTokenTTL())
	if err != nil {
		return nil, err
	}
	refresh, err := utils.GenerateJWT(user, types.TOKEN_REFRESH, config.RefreshTokenTTL())
	if err != nil {
		return nil, err
	}
	db := db.GetDb()
	record := models.Token{
		ID:        uuid.MustParse(refresh.JTI),
		UserID:    user.ID,
		Kind:      types.TOKEN_REFRESH,
		ExpiresAt: refresh.ExpiresAt,
		Status:    models.TokenStatusActive,
	}
	if err := db.Create(&record).Error; err != nil {
		return nil, err
	}
	rdb := lib.GetRedisClient()
	if err := lib.CacheRefreshToken(ctx, rdb, refresh.JTI, user.ID, config.RefreshTokenTTL()); err != nil {
		log.Printf("[redis] Error caching refresh token: %s\n", err.Error())
	}
	return &types.AuthResponse{
		Success:      true,
		UserID:       user.ID,
		Role:         user.Role,
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
	}, nil
}

// registrationRole resolves the role of a new account. An explicit role wins.
func registrationRole(body *types.RegisterUserRequestBody) types.Role {
	if body.Role != "" {
		return body.Role
	}
	if body.HasDisability {
		return types.ROLE_DISABLED
	}
	return types.ROLE_VOLUNTEER
}

func AuthRegister(ctx *gin.Context) (res *types.AuthResponse, status int, err error) {
	var body types.RegisterUserRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, types.ValidationError("All fields are required")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return nil, http.StatusBadRequest, types.ValidationError("All fields are required")
	}
	email := utils.NormalizeEmail(body.Email)
	if !utils.ValidEmail(email) {
		return nil, http.StatusBadRequest, types.ValidationError("Invalid email address")
	}
	if !utils.StrongPassword(body.Password) {
		return nil, http.StatusBadRequest, types.ValidationError(utils.WeakPasswordMessage)
	}
	hash, err := utils.HashPassword(body.Password)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         registrationRole(&body),
	}
	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return types.ValidationError("User already exists")
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		var apiErr *types.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr.Status, err
		}
		log.Printf("Error creating user: %s\n", err.Error())
		return nil, http.StatusInternalServerError, err
	}

	return &types.AuthResponse{
		Message: "User registered successfully",
		Success: true,
		UserID:  user.ID,
		Role:    user.Role,
	}, http.StatusCreated, nil
}

// AuthRefresh runs behind RefreshMiddleware and mints a new access token.
func AuthRefresh(ctx *gin.Context) (res *types.AuthResponse, status int, err error) {
	userId := ctx.GetUint("id")
	db := db.GetDb()
	var user models.User
	if err := db.Where("id = ?", userId).First(&user).Error; err != nil {
		return nil, http.StatusUnauthorized, types.UnauthorizedError(types.ERR_INVALID_TOKEN, "token is invalid")
	}
	access, err := utils.GenerateJWT(&user, types.TOKEN_ACCESS, config.AccessTokenTTL())
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return &types.AuthResponse{
		Message:     "Token refreshed",
		Success:     true,
		UserID:      user.ID,
		Role:        user.Role,
		AccessToken: access.Token,
	}, http.StatusOK, nil
}

// AuthLogout revokes every active refresh token of the user.
func AuthLogout(ctx *gin.Context) (status int, err error) {
	userId := ctx.GetUint("id")
	var jtis []uuid.UUID
	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.Token{}).
			Where("user_id = ? AND status = ?", userId, models.TokenStatusActive).
			Pluck("id", &jtis).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Token{}).
			Where("user_id = ? AND status = ?", userId, models.TokenStatusActive).
			Update("status", models.TokenStatusRevoked).
			Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userId).Update("last_active", time.Now()).Error
	})
	if err != nil {
		log.Printf("Error on user logout: %s\n", err.Error())
		return http.StatusInternalServerError, err
	}
	rdb := lib.GetRedisClient()
	for _, jti := range jtis {
		if err := lib.RevokeRefreshToken(ctx, rdb, jti.String()); err != nil {
			log.Printf("[redis] Error revoking refresh token: %s\n", err.Error())
		}
	}
	return http.StatusOK, nil
}
