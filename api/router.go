package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter 注册路由，avatarDir 为空时不提供头像文件
func SetupRouter(handler *Handler, avatarDir string, isDebug bool) *gin.Engine {
	var r *gin.Engine
	if isDebug {
		gin.SetMode(gin.DebugMode)
		r = gin.Default()
	} else {
		gin.SetMode(gin.ReleaseMode)
		r = gin.New()
		r.Use(gin.Recovery())
	}

	// TraceID 中间件 - 必须在其他中间件之前
	r.Use(TraceIDMiddleware())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Trace-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Trace-ID"},
		AllowCredentials: false,
	}))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if avatarDir != "" {
		r.Static("/files/avatars", avatarDir)
	}

	api := r.Group("/api/v1")
	{
		api.GET("/status", handler.GetStatus)

		contacts := api.Group("/contacts")
		{
			contacts.GET("", handler.ListContacts)
			contacts.GET("/:id", handler.GetContact)
			contacts.PUT("/:id", handler.UpdateContact)
			contacts.PUT("/:id/detail", handler.UpdateContactDetail)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "404 page not found")
	})

	return r
}
