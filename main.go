package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"

	"ATLAS-backend/internal/asset_mgmt/assets"
	"ATLAS-backend/internal/asset_mgmt/borrowers"
	"ATLAS-backend/internal/asset_mgmt/categories"
	"ATLAS-backend/internal/asset_mgmt/lending"
	"ATLAS-backend/internal/asset_mgmt/maintenance"
	"ATLAS-backend/internal/platform/auth"
	"ATLAS-backend/internal/platform/db"
)

func main() {
	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	// 動作モード取得
	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if cfg.Mode != "dev" && cfg.Mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
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
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	secret := []byte(cfg.JWTSecret)

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterRoutes(api, auth.NewService(conn, secret))

	// release では書き込み系を含む資産管理APIは要トークン
	protected := gin.IRoutes(api)
	if mode == "release" {
		protected = api.Group("", auth.RequireAuth(secret))
	}

	lendSvc := lending.NewService(conn)
	guard := lending.NewDeletionGuard(conn)

	assets.RegisterRoutes(protected, assets.NewService(conn, guard))
	borrowers.RegisterRoutes(protected, borrowers.NewService(conn))
	lending.RegisterRoutes(protected, lendSvc)
	maintenance.RegisterRoutes(protected, maintenance.NewService(conn))
	categories.RegisterRoutes(protected, categories.NewService(conn))

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: r,
	}

	var certFile, keyFile string

	// TLS設定
	if mode == "dev" {
		//開発用
		certFile = fmt.Sprintf("config/tls/dev/%s", cfg.Certificate.Cert)
		keyFile = fmt.Sprintf("config/tls/dev/%s", cfg.Certificate.Key)
	} else {
		//本番用
		certFile = fmt.Sprintf("config/tls/release/%s", cfg.Certificate.Cert)
		keyFile = fmt.Sprintf("config/tls/release/%s", cfg.Certificate.Key)
	}

	go func() {
		log.Printf("[INFO] listening on https://0.0.0.0%s", cfg.Listen)
		if err := srv.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
