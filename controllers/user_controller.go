// file: controllers/user_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/noob-master-jpb/CTFd/database"
	"github.com/noob-master-jpb/CTFd/models"
	"github.com/noob-master-jpb/CTFd/utils"
)

// Login issues the JWT the instance routes' middleware expects.
func Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		utils.Fail(c, http.StatusUnauthorized, "wrong email or password")
		return
	}
	if !user.CheckPassword(req.Password) {
		utils.Fail(c, http.StatusUnauthorized, "wrong email or password")
		return
	}
	if user.Status == models.StatusBanned {
		utils.Fail(c, http.StatusForbidden, "user is banned")
		return
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		utils.Fail(c, http.StatusInternalServerError, "token generation failed")
		return
	}

	utils.Success(c, "login success", gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}
