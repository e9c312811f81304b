package main

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/axgrid/raadmin"
	"github.com/axgrid/raadmin/internal/config"
	"github.com/axgrid/raadmin/webcrud"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// newRouter migrates the demo table and mounts its binder next to the
// health, metrics and route listing endpoints.
func newRouter(cfg *config.Config, log *zap.Logger, db *gorm.DB) (*gin.Engine, error) {
	if err := db.AutoMigrate(&Task{}); err != nil {
		return nil, fmt.Errorf("migrate tasks: %w", err)
	}

	repoCfg := raadmin.RepoConfig{}
	if cfg.Admin.SoftDeleteField != "" {
		repoCfg.SoftDelete = &raadmin.SoftDelete{
			Field:          cfg.Admin.SoftDeleteField,
			IncludeDeleted: cfg.Admin.IncludeDeleted,
		}
	}
	repo, err := raadmin.NewGormRepo[Task, uint](db, repoCfg)
	if err != nil {
		return nil, err
	}
	tasks := webcrud.New[Task, uint](repo, webcrud.Options[Task]{
		Prefix:          cfg.Admin.Prefix,
		Tags:            []string{"tasks"},
		IncludeInSchema: cfg.Admin.IncludeInSchema,
		StrictNotFound:  cfg.Admin.StrictNotFound,
		Logger:          log.Named("webcrud"),
	})

	router := gin.New()
	router.Use(ginzap.Ginzap(log, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(log, true))
	if cfg.Tracing.Enabled {
		router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	router.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/routes", func(c *gin.Context) {
		c.JSON(http.StatusOK, webcrud.Describe(tasks))
	})

	tasks.MountGin(router)
	return router, nil
}
