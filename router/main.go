package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/courseloop/api/config"
	"github.com/courseloop/api/database"
	"github.com/courseloop/api/handlers"
	cart_handlers "github.com/courseloop/api/handlers/cart"
	course_handlers "github.com/courseloop/api/handlers/course"
	enrollment_handlers "github.com/courseloop/api/handlers/enrollment"
	order_handlers "github.com/courseloop/api/handlers/order"
	payment_handlers "github.com/courseloop/api/handlers/payment"
	"github.com/courseloop/api/services"
	"github.com/courseloop/api/services/portone"
	"github.com/courseloop/api/utils/auth"
	"github.com/courseloop/api/utils/cache"
	"github.com/courseloop/api/utils/middleware"
)

func SetupRoutes(app *fiber.App, store database.Storage, getEnv *config.EnviornmentVariable) {
	if getEnv.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := getEnv.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "courseloop-api"
	}

	// Initialize JWT manager with config
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: getEnv.JWT_SECRET,
		Expiry: 24 * time.Hour,
		Issuer: jwtIssuer,
	})

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis shares gateway access tokens across instances; the gateway
	// client still works without it.
	redisURL := getEnv.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Gateway token caching is disabled.", err)
		redisCache = nil
	}

	// PortOne gateway client
	gateway := portone.NewClient(portone.Config{
		BaseURL:   getEnv.PORTONE_BASE_URL,
		APIKey:    getEnv.PORTONE_API_KEY,
		APISecret: getEnv.PORTONE_API_SECRET,
		Cache:     redisCache,
	})

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Initialize services
	cartService := services.NewCartService(db)
	orderService := services.NewOrderService(db)
	enrollmentService := services.NewEnrollmentService(db)
	paymentService := services.NewPaymentService(db, gateway, enrollmentService, getEnv.SETTLEMENT_CURRENCY)
	progressService := services.NewProgressService(db)

	// Initialize handlers
	courseHandler := course_handlers.NewCourseHandler(db)
	cartHandler := cart_handlers.NewCartHandler(cartService)
	orderHandler := order_handlers.NewOrderHandler(orderService)
	paymentHandler := payment_handlers.NewPaymentHandler(paymentService)
	enrollmentHandler := enrollment_handlers.NewEnrollmentHandler(enrollmentService, progressService)

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(store))

	// API v1 group
	api := app.Group("/api/v1")

	// Courses routes (public catalog reads)
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.ListCourses)
	courses.Get("/:id", courseHandler.GetCourse)

	// Cart routes (protected)
	cart := api.Group("/cart", authMiddleware.Required())
	cart.Get("/", cartHandler.ListItems)
	cart.Post("/items", cartHandler.AddItem)
	cart.Delete("/items/:courseId", cartHandler.RemoveItem)

	// Order routes (protected)
	orders := api.Group("/orders", authMiddleware.Required())
	orders.Post("/", orderHandler.Create)
	orders.Get("/", orderHandler.List)
	orders.Get("/:id", orderHandler.Get)
	orders.Post("/:id/cancel", orderHandler.Cancel)

	// Payment routes
	payments := api.Group("/payments")
	payments.Post("/verify", authMiddleware.Required(), paymentHandler.Verify)
	payments.Post("/webhook", paymentHandler.Webhook) // Called by the gateway, no user token

	// Enrollment routes (protected)
	enrollments := api.Group("/enrollments", authMiddleware.Required())
	enrollments.Get("/", enrollmentHandler.List)
	enrollments.Get("/:id", enrollmentHandler.Get)
	enrollments.Patch("/:id/progress", enrollmentHandler.UpdateProgress)
}
