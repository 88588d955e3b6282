package main

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/nqvinh/inventory-core/internal/adapter/handler"
	"github.com/nqvinh/inventory-core/internal/adapter/storage"
	"github.com/nqvinh/inventory-core/internal/core/domain"
	"github.com/nqvinh/inventory-core/internal/core/service"
	"github.com/nqvinh/inventory-core/internal/port"
)

const (
	defaultHTTPPort  = ":8080"
	defaultGRPCPort  = ":50051"
	defaultMySQLDSN  = "root:root@tcp(localhost:3306)/inventory?parseTime=true"
	defaultRedisAddr = "localhost:6379"
	alertWorkerCount = 4
	alertQueueSize   = 1024
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using environment variables")
	}

	httpPort := envOr("HTTP_PORT", defaultHTTPPort)
	grpcPort := envOr("GRPC_PORT", defaultGRPCPort)
	mysqlDSN := envOr("MYSQL_DSN", defaultMySQLDSN)
	redisAddr := envOr("REDIS_ADDR", defaultRedisAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL: ledger store, adjustment log and catalog.
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		logrus.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logrus.Fatalf("failed to ping mysql: %v", err)
	}
	logrus.Info("connected to mysql")

	// Redis: level cache and alert publishing.
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logrus.Fatalf("failed to connect redis: %v", err)
	}
	logrus.Info("connected to redis")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	alerts := service.NewAlertEvaluator(alertQueueSize)
	adjustments := service.NewAdjustmentService(mysqlAdapter, mysqlAdapter, mysqlAdapter, redisAdapter, alerts)

	// Alert delivery workers
	var wg sync.WaitGroup
	for i := 0; i < alertWorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			deliverLoop(id, alerts.Notifications(), redisAdapter)
		}(i)
	}
	logrus.Infof("started %d alert workers", alertWorkerCount)

	// gRPC server
	grpcServer := grpc.NewServer(grpc.ForceServerCodec(handler.JSONCodec{}))
	handler.RegisterStockServiceServer(grpcServer, handler.NewGRPCHandler(adjustments))

	lis, err := net.Listen("tcp", grpcPort)
	if err != nil {
		logrus.Fatalf("failed to listen: %v", err)
	}

	go func() {
		logrus.Infof("gRPC server listening on %s", grpcPort)
		if err := grpcServer.Serve(lis); err != nil {
			logrus.Errorf("gRPC server error: %v", err)
		}
	}()

	// HTTP server
	httpHandler := handler.NewHTTPHandler(adjustments)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/adjustments", httpHandler.Adjust)
	mux.HandleFunc("/api/levels", httpHandler.Level)
	mux.HandleFunc("/api/history", httpHandler.History)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    httpPort,
		Handler: mux,
	}

	go func() {
		logrus.Infof("HTTP server listening on %s", httpPort)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logrus.Errorf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logrus.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logrus.Info("gRPC server stopped")

	// Drain pending alerts before closing connections.
	alerts.Close()
	wg.Wait()
	logrus.Info("alert workers stopped")

	rdb.Close()
	db.Close()
	logrus.Info("connections closed")
}

func deliverLoop(id int, queue <-chan domain.AlertNotification, sink port.NotificationSink) {
	for n := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := sink.Notify(ctx, n); err != nil {
			// Best-effort: the adjustment that produced the alert is
			// already applied and stays applied.
			logrus.WithFields(logrus.Fields{
				"worker":      id,
				"productID":   n.ProductID,
				"warehouseID": n.WarehouseID,
				"kind":        n.Kind,
			}).WithError(err).Warn("alert delivery failed")
		}

		cancel()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
