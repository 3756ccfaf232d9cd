// file: routes/router.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/noob-master-jpb/CTFd/controllers"
	"github.com/noob-master-jpb/CTFd/middlewares"
	"github.com/noob-master-jpb/CTFd/models"
)

func SetupRouter() *gin.Engine {
	r := gin.Default()
	r.Use(middlewares.RequestID())

	apiV1 := r.Group("/api/v1")
	{
		usersPublic := apiV1.Group("/users")
		{
			usersPublic.POST("/login", controllers.Login)
		}

		instanceRoutes := apiV1.Group("/challenges/instance")
		instanceRoutes.Use(middlewares.JWTAuthMiddleware())
		{
			instanceRoutes.GET("", controllers.GetInstance)
			instanceRoutes.POST("", controllers.CreateInstance)
			instanceRoutes.DELETE("", controllers.DeleteInstance)
		}

		adminRoutes := apiV1.Group("/admin")
		adminRoutes.Use(middlewares.JWTAuthMiddleware(), middlewares.RoleAuthMiddleware(models.RoleAdmin))
		{
			adminRoutes.GET("/instances", controllers.ListBackendContainers)
		}
	}

	return r
}
