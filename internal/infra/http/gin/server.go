package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/infra/config"
	"rentdesk/internal/infra/obs"
)

type PropertyHTTP interface {
	Register(c *gin.Context)
	Get(c *gin.Context)
	AddFeed(c *gin.Context)
	Availability(c *gin.Context)
	Quote(c *gin.Context)
	Calendar(c *gin.Context)
}

type BookingHTTP interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	ChangeDates(c *gin.Context)
	Confirm(c *gin.Context)
	CheckIn(c *gin.Context)
	CheckOut(c *gin.Context)
	Cancel(c *gin.Context)
	NoShow(c *gin.Context)
	Complete(c *gin.Context)
}

type PaymentHTTP interface {
	List(c *gin.Context)
	Record(c *gin.Context)
	Reconcile(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

type CalendarHTTP interface {
	SyncProperty(c *gin.Context)
	SyncAll(c *gin.Context)
}

type PublicHTTP interface {
	RequestBooking(c *gin.Context)
	CalendarFeed(c *gin.Context)
}

type Handlers struct {
	Properties PropertyHTTP
	Bookings   BookingHTTP
	Payments   PaymentHTTP
	Calendars  CalendarHTTP
	Public     PublicHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg.Env, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(env string, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", OrgHeader, IdempotencyHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"Content-Disposition",
			obs.RequestIDHeader,
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Properties != nil {
		props := api.Group("/properties")
		props.POST("", h.Properties.Register)
		props.GET("/:id", h.Properties.Get)
		props.POST("/:id/feeds", h.Properties.AddFeed)
		props.GET("/:id/availability", h.Properties.Availability)
		props.GET("/:id/quote", h.Properties.Quote)
		props.GET("/:id/calendar", h.Properties.Calendar)
	}
	if h.Calendars != nil {
		api.POST("/properties/:id/calendar-sync", h.Calendars.SyncProperty)
		api.POST("/calendar-sync", h.Calendars.SyncAll)
	}
	if h.Bookings != nil {
		bookings := api.Group("/bookings")
		bookings.POST("", h.Bookings.Create)
		bookings.GET("", h.Bookings.List)
		bookings.GET("/:id", h.Bookings.Get)
		bookings.PUT("/:id/dates", h.Bookings.ChangeDates)
		bookings.POST("/:id/confirm", h.Bookings.Confirm)
		bookings.POST("/:id/check-in", h.Bookings.CheckIn)
		bookings.POST("/:id/check-out", h.Bookings.CheckOut)
		bookings.POST("/:id/cancel", h.Bookings.Cancel)
		bookings.POST("/:id/no-show", h.Bookings.NoShow)
		bookings.POST("/:id/complete", h.Bookings.Complete)
	}
	if h.Payments != nil {
		api.GET("/bookings/:id/payments", h.Payments.List)
		api.POST("/bookings/:id/payments", h.Payments.Record)
		api.POST("/bookings/:id/reconcile", h.Payments.Reconcile)
		api.PATCH("/payments/:id", h.Payments.Update)
		api.DELETE("/payments/:id", h.Payments.Delete)
	}
	if h.Public != nil {
		public := api.Group("/public/properties")
		public.POST("/:id/booking-requests", h.Public.RequestBooking)
		public.GET("/:id/calendar.ics", h.Public.CalendarFeed)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
