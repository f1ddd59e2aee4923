package main

import (
	"github.com/ajgcsol/videopipeline/config"
	"github.com/ajgcsol/videopipeline/database"
	"github.com/ajgcsol/videopipeline/handler"
	"github.com/ajgcsol/videopipeline/models"
	"github.com/ajgcsol/videopipeline/pkg/metrics"
	"github.com/ajgcsol/videopipeline/repository"
	"github.com/ajgcsol/videopipeline/router"
	"github.com/ajgcsol/videopipeline/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func autoMigrate(db *gorm.DB, logger *logrus.Logger) {
	if err := db.AutoMigrate(&models.Video{}, &models.SpeakerRecord{}); err != nil {
		logger.Fatalf("auto migrate failed: %v", err)
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg := config.LoadConfig()

	metrics.StartMetricsServer(cfg.Server.MetricsPort)
	logger.Infof("Prometheus metrics server started on :%s", cfg.Server.MetricsPort)

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatalf("failed to connect database: %v", err)
	}
	autoMigrate(db, logger)

	videoRepo := repository.NewVideoRepository(db)
	speakerRepo := repository.NewSpeakerRepository(db)

	storage, err := service.NewMinIOStorageService(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to create storage service: %v", err)
	}
	transcoder := service.NewTranscoderClient(cfg, logger)
	captions := service.NewHTTPCaptionStore(logger)

	sessions := service.NewSessionManager(cfg, storage, transcoder, captions, videoRepo, speakerRepo, logger)

	pipelineHandler := handler.NewPipelineHandler(sessions, logger)
	videoHandler := handler.NewVideoHandler(videoRepo, speakerRepo, logger)

	r := router.Setup(cfg.Server.APIKey, pipelineHandler, videoHandler)
	logger.Infof("Video pipeline server listening on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatalf("serve error: %v", err)
	}
}
