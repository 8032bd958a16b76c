package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chattersphere/internal/metrics"
	"chattersphere/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
// Las rutas de tokens y /me solo se registran si jwtSvc tiene secreto; mensajes y
// streams aceptan un token opcional que fija quien puede actuar.
func NewRouter(
	logger *zap.Logger,
	userH *UserHandler,
	chatH *ChatHandler,
	streamH *StreamHandler,
	healthH *HealthHandler,
	jwtSvc *service.JWTService,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery, metricas y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), metricsMiddleware(), jsonContentTypeMiddleware())

	r.GET("/health", healthH.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	users := r.Group("/users")
	users.POST("", userH.CreateUser)
	users.GET("", userH.ListUsers)

	r.POST("/auth", userH.Auth)
	auth := r.Group("/auth")
	auth.POST("/reset-password", userH.ResetPassword)
	if jwtSvc.Enabled() {
		auth.POST("/refresh", userH.RefreshToken)
		auth.POST("/logout", userH.Logout)
		r.GET("/me", JWTAuthMiddleware(jwtSvc), userH.Me)
	}

	optionalAuth := OptionalJWTMiddleware(jwtSvc)
	messages := r.Group("/messages", optionalAuth)
	messages.POST("", chatH.PostMessage)
	messages.GET("", chatH.ListMessages)
	messages.GET("/stream", streamH.StreamMessages)

	r.GET("/events/ws", optionalAuth, streamH.EventsWS)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// metricsMiddleware registra contador y latencia por ruta; usa el patron de la ruta
// para no disparar la cardinalidad.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
// Los handlers de streaming y /metrics lo sobreescriben.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
