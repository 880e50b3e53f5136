package controllers

import (
	"accessbus/src/db"
	"accessbus/src/lib/mailer"
	"accessbus/src/models"
	"accessbus/src/types"
	"accessbus/src/utils"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func userInfo(tx *gorm.DB, userId uint) (*types.UserInfo, error) {
	var user models.User
	if err := tx.
		Where("id = ?", userId).
		Preload("Requirements").
		First(&user).
		Error; err != nil {
		return nil, err
	}
	var docs int64
	if err := tx.Model(&models.Document{}).Where("owner_id = ?", userId).Count(&docs).Error; err != nil {
		return nil, err
	}
	requirements := make([]string, 0, len(user.Requirements))
	for _, r := range user.Requirements {
		requirements = append(requirements, r.Name)
	}
	return &types.UserInfo{
		ID:                        user.ID,
		Name:                      user.Name,
		Email:                     user.Email,
		Role:                      user.Role,
		AccessibilityRequirements: requirements,
		HasDocument:               docs > 0,
	}, nil
}

func AccountsUserInfo(ctx *gin.Context) (info *types.UserInfo, status int, err error) {
	userId := ctx.GetUint("id")
	db := db.GetDb()
	info, err = userInfo(db, userId)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, http.StatusNotFound, types.NotFoundError("User not found")
	}
	if err != nil {
		log.Printf("Error loading user [%d]: %s\n", userId, err.Error())
		return nil, http.StatusInternalServerError, err
	}
	return info, http.StatusOK, nil
}

func AccountsEditProfile(ctx *gin.Context) (info *types.UserInfo, status int, err error) {
	var body types.EditProfileRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, types.ValidationError("Invalid profile data")
	}
	userId := ctx.GetUint("id")
	updates := map[string]any{}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			return nil, http.StatusBadRequest, types.ValidationError("Name cannot be empty")
		}
		updates["name"] = name
	}
	if body.Email != nil {
		email := utils.NormalizeEmail(*body.Email)
		if !utils.ValidEmail(email) {
			return nil, http.StatusBadRequest, types.ValidationError("Invalid email address")
		}
		updates["email"] = email
	}

	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", userId).First(&user).Error; err != nil {
			return err
		}
		if email, ok := updates["email"]; ok && email != user.Email {
			var count int64
			if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, userId).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return types.ConflictError("Email is already in use")
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return err
			}
		}
		if body.AccessibilityRequirements != nil {
			names := *body.AccessibilityRequirements
			if len(names) == 0 {
				if err := tx.Model(&user).Association("Requirements").Clear(); err != nil {
					return err
				}
			} else {
				var requirements []models.AccessibilityRequirement
				if err := tx.Where("name IN (?)", names).Find(&requirements).Error; err != nil {
					return err
				}
				if len(requirements) != len(uniqueStrings(names)) {
					return types.ValidationError("Unknown accessibility requirement")
				}
				if err := tx.Model(&user).Association("Requirements").Replace(requirements); err != nil {
					return err
				}
			}
		}
		info, err = userInfo(tx, userId)
		return err
	})
	if err != nil {
		var apiErr *types.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr.Status, err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, http.StatusNotFound, types.NotFoundError("User not found")
		}
		log.Printf("Error editing profile of user [%d]: %s\n", userId, err.Error())
		return nil, http.StatusInternalServerError, err
	}
	return info, http.StatusOK, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func AccountsChangePassword(ctx *gin.Context) (status int, err error) {
	var body types.ChangePasswordRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return http.StatusBadRequest, types.ValidationError("Old and new password are required")
	}
	if !utils.StrongPassword(body.NewPassword) {
		return http.StatusBadRequest, types.ValidationError(utils.WeakPasswordMessage)
	}
	userId := ctx.GetUint("id")
	var user models.User
	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", userId).First(&user).Error; err != nil {
			return err
		}
		if !utils.CheckPassword(user.PasswordHash, body.OldPassword) {
			return types.ValidationError("Old password is incorrect")
		}
		hash, err := utils.HashPassword(body.NewPassword)
		if err != nil {
			return err
		}
		return tx.Model(&user).Update("password_hash", hash).Error
	})
	if err != nil {
		var apiErr *types.APIError
		if errors.As(err, &apiErr) {
			return apiErr.Status, err
		}
		log.Printf("Error changing password of user [%d]: %s\n", userId, err.Error())
		return http.StatusInternalServerError, err
	}
	mailer.NewMailerMessage(mailer.PasswordChanged(user.Name, user.Email))
	return http.StatusOK, nil
}
