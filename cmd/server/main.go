package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/ovomonie/backend/docs"
	"github.com/ovomonie/backend/internal/config"
	"github.com/ovomonie/backend/internal/database"
	"github.com/ovomonie/backend/internal/gateway"
	"github.com/ovomonie/backend/internal/ledger"
	"github.com/ovomonie/backend/internal/metrics"
	mW "github.com/ovomonie/backend/internal/middleware"
	"github.com/ovomonie/backend/internal/notify"
	"github.com/ovomonie/backend/internal/services"
)

// @title Ovomonie Ledger API
// @version 1.0
// @description Wallet, transfer and bill payment API for the Ovomonie ledger core
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.BindEnv("rail.endpoint", "RAIL_ENDPOINT")
	viper.BindEnv("rail.bic", "RAIL_BIC")
	viper.BindEnv("rail.timeout", "RAIL_TIMEOUT")

	viper.BindEnv("vfd.base_url", "VFD_BASE_URL")
	viper.BindEnv("vfd.api_key", "VFD_API_KEY")
	viper.BindEnv("vfd.timeout", "VFD_TIMEOUT")

	viper.BindEnv("cards.suspense_account", "CARDS_SUSPENSE_ACCOUNT")

	docs.SwaggerInfo.Title = "Ovomonie Ledger API"
	docs.SwaggerInfo.Description = "Wallet, transfer and bill payment API for the Ovomonie ledger core"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()
	limits := config.LoadLimitTable()
	store := ledger.NewPostgresStore(db)
	rail := gateway.NewISO20022Rail()
	issuer := gateway.NewVFDCardIssuer()
	dispatcher := notify.NewDispatcher(redisClient, m)
	engine := ledger.NewEngine(store, limits, rail, dispatcher, m)
	reconciler := ledger.NewReconciler(store, engine, rail, m)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if redisClient != nil {
		go notify.NewWorker(redisClient).Run(rootCtx)
	}

	authService := services.NewAuthService(db, redisClient)
	transferService := services.NewTransferService(engine, store, authService)
	cardService := services.NewCardService(db, engine, store, authService, issuer)
	reconciler.AddSweep(cardService.ReconcilePendingFundings)
	go reconciler.Run(rootCtx)
	billService := services.NewBillService(engine, store, authService)
	bankService := services.NewBankService()
	qrService := services.NewQRService(redisClient, store, authService)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Get("/banks", bankService.GetAllBanks)
		r.Get("/bills/billers", billService.ListBillers)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/transfers/internal", transferService.InternalTransfer)
			r.Post("/transfers/external", transferService.ExternalTransfer)
			r.Get("/transfers/{reference}", transferService.TransferStatus)

			r.Get("/balance", transferService.Balance)
			r.Get("/accounts/name-enquiry", transferService.NameEnquiry)
			r.Get("/transactions", transferService.Transactions)

			r.Post("/cards/virtual-new", cardService.CreateVirtualCard)
			r.Get("/cards", cardService.ListCards)

			r.Post("/bills/pay", billService.PayBill)

			r.Post("/qr/payment-request", qrService.CreatePaymentRequest)
			r.Get("/qr/{code}", qrService.ResolvePaymentRequest)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
