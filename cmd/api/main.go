// @title           Support RAG API
// @version         1.0
// @description     Help center question answering: streamed answers, retrieval, async chat jobs and ingestion
// @termsOfService  http://swagger.io/terms/

// @contact.name    support platform
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

//go:generate swag init -g main.go --dir ./,../../internal --parseInternal --output ./docs

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/SupportRAG/internal/app"
	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/data/store"
	jobmodel "github.com/akolanti/SupportRAG/internal/domain/jobModel"
	"github.com/akolanti/SupportRAG/internal/handlers"
	"github.com/akolanti/SupportRAG/internal/job"
	"github.com/akolanti/SupportRAG/internal/middleware"
	"github.com/akolanti/SupportRAG/internal/server"
	"github.com/akolanti/SupportRAG/internal/worker"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

var (
	configPath        string
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	flag.StringVar(&configPath, "config", "config.yaml", "path to the yaml config")
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address, overrides server.listen_addr")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger_i.Init(config.LogConfig{})
		logger_i.NewLogger("main").Error("Invalid configuration", "path", configPath, "error", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	logger_i.Init(cfg.Log)
	var logger = logger_i.NewLogger("main")

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init job service and job store
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
	}
	logger.Info("Starting job service")

	//typed nil pointers would hide an offline redis behind a non-nil interface
	redisJobs := store.GetRedisJobStore(serviceContext, cfg.Redis)
	redisMessages := store.GetRedisMessageStore(serviceContext, cfg.Redis)
	if redisJobs != nil && redisMessages != nil {
		serviceConfig.JobStore = redisJobs
		serviceConfig.MessageStore = redisMessages
	} else {
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			logger.Error("Redis stores are offline. Shutting down.")
			return
		}
		logger.Error("Redis stores are offline, falling back to in-memory stores")
		serviceConfig.JobStore = store.InitInMemoryJobStore()
		serviceConfig.MessageStore = store.InitMessageStore()
	}
	service := job.InitJobService(serviceConfig)

	stack, err := app.Build(serviceContext, cfg)
	if err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.", "error", err)
		return
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error("Error closing the vector index", "error", err)
		}
	}()

	handlers.InitJobHandler(service)
	handlers.InitRAGHandler(stack.Service, cfg.Server.StreamDelay)
	handlers.SetUploadDir(cfg.Server.UploadDir)
	middleware.Init(cfg.Auth, cfg.Server)

	//init worker pool
	worker.InitServices(service, stack.Service)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(cfg.Server.ListenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
