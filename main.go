package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"facescan-backend/internal/attendance"
	"facescan-backend/internal/checkin"
	"facescan-backend/internal/class"
	"facescan-backend/internal/face"
	"facescan-backend/internal/platform/auth"
	"facescan-backend/internal/platform/db"
)

func main() {
	// .env は任意（無ければ環境変数のみ）
	_ = godotenv.Load()

	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	mode := cfg.Server.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if mode != "dev" && mode != "release" {
		log.Fatal("server.mode must be dev or release")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Internal-Key"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	secret := []byte(cfg.Auth.JWTSecret)

	// サービス組み立て（依存は下から上へ）
	authSvc := auth.NewService(conn, secret, time.Duration(cfg.Auth.TokenTTLHrs)*time.Hour)
	classSvc := class.NewService(conn)
	checkinSvc := checkin.NewService(conn, checkin.Config{
		DefaultRadiusMeters: cfg.Checkin.DefaultRadiusMeters,
		WindowTolerance:     time.Duration(cfg.Checkin.WindowToleranceSeconds) * time.Second,
	})
	encoder := face.NewEncoderClient(cfg.Face.EncoderBaseURL,
		time.Duration(cfg.Face.EncoderTimeoutMS)*time.Millisecond)
	faceSvc := face.NewService(conn, encoder, classSvc, face.Config{Threshold: cfg.Face.MatchThreshold})
	attSvc := attendance.NewService(conn, checkinSvc, faceSvc, classSvc)

	// /api/v1
	public := r.Group("/api/v1")
	authed := r.Group("/api/v1")
	authed.Use(auth.RequireAuth(secret))

	auth.RegisterRoutes(public, authed, authSvc)
	face.RegisterRoutes(public, authed, faceSvc, cfg.Face.InternalKey)
	class.RegisterRoutes(authed, classSvc)
	checkin.RegisterRoutes(authed, checkinSvc)
	attendance.RegisterRoutes(authed, attSvc)

	// 期限切れ session の掃除。shutdown と同時に止める。
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	checkin.StartSweeper(sweepCtx, checkinSvc,
		time.Duration(cfg.Checkin.SweepIntervalSeconds)*time.Second)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		log.Printf("[INFO] listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
