// main.go
//
// Hierarchical settings service for jam-build applications
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of settingsdb.
// settingsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// settingsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with settingsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/settingsdb/internal/config"
	"github.com/localnerve/settingsdb/internal/database"
	"github.com/localnerve/settingsdb/internal/handlers"
	"github.com/localnerve/settingsdb/internal/middleware"
	"github.com/localnerve/settingsdb/internal/registrations"
	"github.com/localnerve/settingsdb/internal/services"
	"github.com/localnerve/settingsdb/internal/settings"
	"github.com/localnerve/settingsdb/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	_ "github.com/localnerve/settingsdb/docs/api" // Swagger docs
)

// @title SettingsDB API
// @version 1.0.0
// @description Hierarchical settings service with global and personal layers
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/settingsdb
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	// Connect to database
	db, err := database.Connect(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db, cfg); err != nil {
		zlog.Fatal("failed to migrate database", zap.Error(err), zap.String("mode", cfg.DBMigrate))
	}

	cache, err := services.OpenCache(cfg)
	if err != nil {
		zlog.Fatal("failed to open cache", zap.Error(err))
	}
	defer cache.Close()

	// Settings registry, frozen before the first request
	registry := settings.NewRegistry()
	if err := registrations.Register(registry); err != nil {
		zlog.Fatal("failed to register settings entities", zap.Error(err))
	}
	registry.Freeze()

	files := services.NewFileQueue(db, zlog)
	resolver := settings.NewResolver(registry,
		services.NewGormStore(db, zlog),
		services.NewCacheMetrics(prometheus.DefaultRegisterer).Instrument(cfg.CacheType, cache),
		settings.WithPermissionChecker(services.NewScopeChecker(db)),
		settings.WithFileRemover(files),
		settings.WithLogger(zlog),
	)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	metrics := fiberprometheus.New("settingsdb")
	metrics.RegisterAt(app, "/metrics")
	app.Use(metrics.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.RequestContext())

	auth := services.NewAuthService(cfg, zlog)
	settingsHandler := &handlers.SettingsHandler{
		Resolver:    resolver,
		Files:       files,
		GlobalScope: registrations.RoleAdmin,
	}
	settingsHandler.Routes(api.Group("/settings"),
		middleware.Authenticate(auth, false),
		middleware.Authenticate(auth, true),
	)

	// 404 handler
	app.Use(handlers.NotFound)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		zlog.Info("gracefully shutting down")
		_ = app.Shutdown()
	}()

	zlog.Info("starting server",
		zap.String("port", cfg.Port),
		zap.String("cache", cfg.CacheType),
		zap.Int("entities", len(registry.Enumerate())),
	)
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatal("failed to start server", zap.Error(err))
	}

	zlog.Info("server stopped")
}
