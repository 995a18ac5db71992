package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/gpt400/schedule-gap-api/internal/middleware"
	"github.com/gpt400/schedule-gap-api/internal/service"
)

// Handlers bundles every HTTP handler the API mounts.
type Handlers struct {
	Auth     *AuthHandler
	User     *UserHandler
	Schedule *ScheduleHandler
	Compare  *CompareHandler
	Report   *ReportHandler
}

// RegisterRoutes mounts the API surface under /api/v1.
func RegisterRoutes(router *gin.Engine, h Handlers, authSvc *service.AuthService) {
	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), h.Auth.Logout)

	// Download is authorized by the signed token itself.
	v1.GET("/reports/download", h.Report.Download)

	secured := v1.Group("")
	secured.Use(middleware.JWT(authSvc))

	secured.GET("/users", h.User.List)
	secured.GET("/users/roster", h.User.Roster)
	secured.GET("/users/:username", h.User.Get)
	secured.DELETE("/users/:username", h.User.Deactivate)

	secured.GET("/schedule", h.Schedule.Week)
	secured.GET("/schedule/export", h.Schedule.Export)
	secured.GET("/schedule/days/:day", h.Schedule.Day)
	secured.PUT("/schedule/days/:day/blocks/:block", h.Schedule.SetBlock)
	secured.PUT("/schedule/days/:day/hours/:hour", h.Schedule.ToggleHour)

	secured.POST("/compare/free", h.Compare.CommonFree)
	secured.POST("/compare/best-hour", h.Compare.BestHour)

	secured.POST("/reports", h.Report.Create)
	secured.GET("/reports/:id", h.Report.Status)
}
