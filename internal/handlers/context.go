package handlers

import (
	"ridelink/internal/utils"
	"ridelink/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// currentUser reads the identity set by the auth middleware. It writes the
// 401 itself when the identity is missing.
func currentUser(c *gin.Context) (primitive.ObjectID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, false
	}

	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok || userObjectID.IsZero() {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, false
	}

	return userObjectID, true
}

func pathID(c *gin.Context, name, label string) (primitive.ObjectID, bool) {
	id, err := validators.ParseObjectID(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+label+" ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return false
	}
	return true
}

func respondValidation(c *gin.Context, errs validators.ValidationErrors) bool {
	if errs == nil {
		return false
	}
	utils.ValidationErrorResponse(c, errs.Details())
	return true
}
