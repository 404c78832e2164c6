package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imrishuroy/go-shipment-tracker/internal/config"
	"github.com/imrishuroy/go-shipment-tracker/internal/handlers"
	"github.com/imrishuroy/go-shipment-tracker/internal/web"
)

func setupRouter(cfg handlers.HandlerConfig, reg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), gin.Logger())
	r.Use(handlers.RequestID(), handlers.CORS())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if reg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	web.Register(r)
	handlers.RegisterShipmentRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.UsesDefaultSecret() && cfg.Environment != "development" {
		log.Printf("warning: SECRET_KEY is the development default in env=%s", cfg.Environment)
	}

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	recorder, reg, err := newRecorder(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init metrics: %v", err)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer st.Close()

	r := setupRouter(handlers.HandlerConfig{
		Shipments:   st.Shipments,
		Idempotency: st.Idempotency,
		Metrics:     recorder,
	}, reg)

	if cfg.RunLocal {
		if err := serveLocal(r, ":"+cfg.Port); err != nil {
			log.Printf("local server stopped with error: %v", err)
			st.Close()
			os.Exit(1)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

// serveLocal runs an HTTP server until SIGINT or SIGTERM, then drains in-flight requests.
func serveLocal(h http.Handler, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("running local server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down local server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
