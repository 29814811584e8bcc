package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/signsense/signsense/config"
	"github.com/signsense/signsense/internal/api/handlers"
	"github.com/signsense/signsense/internal/api/middleware"
	"github.com/signsense/signsense/internal/api/routes"
	"github.com/signsense/signsense/internal/cache"
	"github.com/signsense/signsense/internal/logger"
	"github.com/signsense/signsense/internal/media"
	"github.com/signsense/signsense/internal/providers/engine"
	"github.com/signsense/signsense/internal/queue"
	"github.com/signsense/signsense/internal/relay"
	mongorepo "github.com/signsense/signsense/internal/repositories/mongo"
	pgrepo "github.com/signsense/signsense/internal/repositories/postgres"
	"github.com/signsense/signsense/internal/services"
	"github.com/signsense/signsense/internal/storage"
	"github.com/signsense/signsense/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			log.WithError(err).Fatalf("%s not found in PATH", bin)
		}
	}

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	log.Info("MongoDB connected")
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Fatal("MongoDB index setup error")
	}

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	log.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")

	cfg := config.LoadProcessing()
	db := config.PostgresDB
	rdb := config.RedisClient

	mongoDBName := config.GetEnvOrDefault("MONGO_DB", "signsense")
	mongoDB := config.MongoClient.Database(mongoDBName)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewFSStore(config.GetEnvOrDefault("STORAGE_ROOT", "./data"))
	if err != nil {
		log.WithError(err).Fatal("storage init error")
	}

	var uploader storage.Uploader
	if bucket := os.Getenv("GCS_THUMBNAIL_BUCKET"); bucket != "" {
		gcs, gerr := storage.NewGCSUploader(rootCtx, bucket)
		if gerr != nil {
			log.WithError(gerr).Fatal("GCS init error")
		}
		defer gcs.Close()
		uploader = gcs
		log.WithField("bucket", bucket).Info("thumbnail publishing enabled")
	}

	videoRepo := pgrepo.NewVideoRepo(db)
	jobRepo := pgrepo.NewJobRepo(db)
	frameRepo := pgrepo.NewFrameRepo(db)
	predictionRepo := pgrepo.NewPredictionRepo(db)
	transcriptRepo := mongorepo.NewTranscriptRepo(mongoDB)

	pub := relay.NewRedisPublisher(rdb)
	statusCache := cache.NewRedisCache(rdb)

	eng := engine.NewHTTPEngine(config.GetEnvOrDefault("ENGINE_URL", "http://localhost:8501"))
	defer eng.Close()

	ffmpeg := media.NewFFMpeg(log)

	inferenceSvc := services.NewInferenceService(
		eng, videoRepo, frameRepo, predictionRepo, pub, log, cfg.InferenceConcurrency)
	pipelineSvc := services.NewPipelineService(
		videoRepo, jobRepo, frameRepo, store, uploader,
		media.NewFFProbe(), ffmpeg, ffmpeg,
		inferenceSvc, pub, rdb, log, cfg)
	videoSvc := services.NewVideoService(
		videoRepo, jobRepo, frameRepo, predictionRepo, store, statusCache, log)
	liveSvc := services.NewLiveService(inferenceSvc, pub, transcriptRepo, log, cfg)

	liveSvc.Start(rootCtx)
	defer liveSvc.Stop()

	pool := &workers.PipelineWorkerPool{
		Redis:      rdb,
		Pipeline:   pipelineSvc,
		NumWorkers: cfg.PipelineWorkers,
		Logger:     log,
	}
	if err := pool.Start(rootCtx); err != nil {
		log.WithError(err).Fatal("pipeline worker pool start error")
	}

	// optional inbound trigger for producers that bypass HTTP
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		nc, nerr := nats.Connect(natsURL)
		if nerr != nil {
			log.WithError(nerr).Fatal("NATS connect error")
		}
		defer nc.Drain()

		js, jerr := nc.JetStream()
		if jerr != nil {
			log.WithError(jerr).Fatal("JetStream init error")
		}
		consumer := queue.NewConsumer(js, pipelineSvc, log)
		if err := consumer.Start(rootCtx); err != nil {
			log.WithError(err).Fatal("NATS consumer start error")
		}
		defer consumer.Stop()
	}

	if config.GetEnvOrDefault("GIN_MODE", "") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		Video: handlers.NewVideoHandler(videoSvc, pipelineSvc, inferenceSvc),
		Live:  handlers.NewLiveHandler(liveSvc, transcriptRepo),
		WS:    handlers.NewWSHandler(liveSvc, rdb),
	})

	port := config.GetEnvOrDefault("PORT", "8080")
	srv := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.WithField("port", port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
	_ = config.MongoClient.Disconnect(shutdownCtx)
	_ = rdb.Close()
}
