package httpapi

import (
	"cms-api/internal/rbac"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the auth and API routes. protect guards every route
// that needs an authenticated caller.
//
// /auth/register, /auth/login, /auth/refresh and /auth/logout are public.
// Logout stays public so a client holding only expired tokens can still clear
// its cookies.
func RegisterRoutes(r gin.IRouter, h Handlers, protect gin.HandlerFunc) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/profile", protect, h.Profile)
	}

	v1 := r.Group("/v1")
	v1.Use(protect)
	{
		v1.GET("/me", h.Me)

		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.GET("/ping", h.AdminPing)
		}
	}
}
