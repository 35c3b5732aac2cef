package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/medcards-tracker/internal/app"
	"github.com/joseph-ayodele/medcards-tracker/internal/async"
	"github.com/joseph-ayodele/medcards-tracker/internal/common"
	"github.com/joseph-ayodele/medcards-tracker/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfgFile := flag.String("config", "", "config file (default: ./medcards.yaml or ./configs/medcards.yaml)")
	flag.Parse()

	cfg, err := common.LoadConfig(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, flush, err := common.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer flush()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("medcardsd.exit", "error", err)
		flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.DB.HealthCheck(ctx, cfg.Database.DialTimeout); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	logger.Info("db.health.ok", "driver", a.DB.Dialect())

	model, err := a.NewModel()
	if err != nil {
		return err
	}
	sheet, err := a.NewSheet()
	if err != nil {
		return err
	}
	defer func() {
		if err := sheet.Close(); err != nil {
			logger.Warn("sheet.close_failed", "error", err)
		}
	}()

	proc, err := a.NewProcessor(model, sheet)
	if err != nil {
		return err
	}
	queue := a.NewQueue(proc,
		async.WithBaseContext(context.WithoutCancel(ctx)),
		async.WithOnDone(func(o async.Outcome) {
			if o.Result == nil {
				return
			}
			if err := sheet.Save(); err != nil {
				logger.Warn("sheet.save_failed", "error", err)
			}
		}),
	)

	svc, err := server.NewExtractionService(server.Deps{
		Extractor: a.Extractor,
		Processor: app.NewSavingProcessor(proc, sheet, logger),
		Records:   a.Records,
		Exporter:  a.Exporter,
		Scanner:   a.NewScanner(),
		Queue:     queue,
	}, logger)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(server.UnaryLogging(logger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	server.RegisterExtractionServer(grpcServer, svc)
	reflection.Register(grpcServer)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("grpc.serve", "addr", lis.Addr().String())
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("metrics.serve", "addr", cfg.Server.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("medcardsd.shutdown")
		hs.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		queue.Shutdown(shutdownCtx)
		if err := sheet.Save(); err != nil {
			logger.Warn("sheet.save_failed", "error", err)
		}
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
