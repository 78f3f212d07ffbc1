package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nlbridge/nlbridge/configs"
	"github.com/nlbridge/nlbridge/internal/adapter/inbound/nlhttp"
	"github.com/nlbridge/nlbridge/internal/adapter/inbound/resthttp"
	"github.com/nlbridge/nlbridge/internal/adapter/outbound/gemini"
	"github.com/nlbridge/nlbridge/internal/adapter/outbound/geminirest"
	"github.com/nlbridge/nlbridge/internal/adapter/outbound/memrepo"
	"github.com/nlbridge/nlbridge/internal/adapter/outbound/ollama"
	"github.com/nlbridge/nlbridge/internal/adapter/outbound/openaichat"
	"github.com/nlbridge/nlbridge/internal/adapter/outbound/openapi"
	"github.com/nlbridge/nlbridge/internal/usecase"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Configuration ===
	cfg, err := configs.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// === Logging ===
	logLevel := cfg.ParsedLogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", logLevel.String()))

	// === OpenTelemetry Initialization ===
	shutdownOtel, err := initOtelProvider(cfg)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry.", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry TracerProvider.", slog.Any("error", err))
		}
	}()

	// === Dependency Injection ===
	logger.Info("Initializing dependencies...")

	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	modelClient := &http.Client{Timeout: cfg.ModelClientTimeout}
	logger.Debug("HTTP clients configured.",
		slog.Duration("api_timeout", cfg.HTTPClientTimeout),
		slog.Duration("model_timeout", cfg.ModelClientTimeout))

	converter := openapi.NewConverter(httpClient, logger)

	strategy, err := buildStrategy(ctx, cfg, converter, modelClient, logger)
	if err != nil {
		logger.Error("Failed to build provider strategy.", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Provider strategy selected.", slog.String("provider", strategy.ProviderID()))

	orchestrator := usecase.NewOrchestrator(strategy, converter, httpClient, cfg.APIBaseURL, logger)

	// === HTTP Router ===
	products := memrepo.NewProductStore()
	orders := memrepo.NewOrderStore()

	router := mux.NewRouter()
	resthttp.NewHandlers(products, orders, logger).Register(router)
	nlhttp.NewHandlers(orchestrator, logger).Register(router)

	handler := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(router)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	// === Server Startup ===
	// Bind synchronously so the deferred initialization below cannot race
	// the listener coming up.
	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("Failed to bind listen address.", slog.String("address", cfg.ListenAddr), slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		logger.Info("HTTP server starting.", slog.String("address", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed.", slog.Any("error", err))
			stop()
		}
	}()

	// === Deferred Strategy Initialization ===
	// The default spec URL points at this very server. The listener is
	// already bound at this point, so the self-hosted fetch can proceed;
	// until Init succeeds the orchestrator rejects requests as not ready.
	go func() {
		if !initWithRetry(ctx, orchestrator, cfg.SpecURL, initAttempts, initRetryBase, logger) {
			logger.Error("Strategy initialization did not complete. Natural-language endpoint stays unavailable.")
		}
	}()

	// Wait for interrupt signal.
	<-ctx.Done()

	// === Server Shutdown ===
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed.", slog.Any("error", err))
	}
	logger.Info("Server shut down gracefully.")
}

const (
	initAttempts  = 5
	initRetryBase = time.Second
)

// initializer is the slice of the orchestrator the retry loop needs.
type initializer interface {
	Init(ctx context.Context, specURL string) error
}

// initWithRetry drives deferred strategy initialization with linear
// backoff, covering transient failures of the self-hosted spec fetch.
// Returns false when every attempt failed or the context ended.
func initWithRetry(ctx context.Context, target initializer, specURL string, attempts int, baseDelay time.Duration, logger *slog.Logger) bool {
	for attempt := 1; attempt <= attempts; attempt++ {
		err := target.Init(ctx, specURL)
		if err == nil {
			logger.Info("Strategy initialization completed. Service is ready.")
			return true
		}
		logger.Error("Strategy initialization failed.",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Any("error", err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempt) * baseDelay):
		}
	}
	return false
}

// buildStrategy selects and constructs the provider strategy named in the
// configuration.
func buildStrategy(ctx context.Context, cfg *configs.Config, converter *openapi.Converter, modelClient *http.Client, logger *slog.Logger) (usecase.ProviderStrategy, error) {
	switch cfg.Provider {
	case gemini.ProviderID:
		return gemini.New(ctx, converter, gemini.Config{
			APIKey:         cfg.GeminiAPIKey,
			VertexProject:  cfg.VertexProject,
			VertexLocation: cfg.VertexLocation,
			Model:          cfg.GeminiModel,
		}, logger)
	case geminirest.ProviderID:
		return geminirest.New(converter, modelClient, geminirest.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger), nil
	case ollama.ProviderID:
		return ollama.New(converter, modelClient, ollama.Config{
			BaseURL: cfg.OllamaBaseURL,
			Model:   cfg.OllamaModel,
		}, logger), nil
	case openaichat.ProviderID:
		return openaichat.New(converter, openaichat.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (expected one of: gemini, gemini-rest, ollama, openai)", cfg.Provider)
	}
}

// initOtelProvider initializes the OpenTelemetry SDK and sets up the OTLP trace exporter.
// It returns a shutdown function to be called on application exit.
func initOtelProvider(cfg *configs.Config) (func(context.Context) error, error) {
	ctx := context.Background()

	if cfg.OtelExporterOtlpEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, OpenTelemetry tracing disabled.")
		return func(context.Context) error { return nil }, nil
	}

	slog.Info("Initializing OTLP exporter.", slog.String("endpoint", cfg.OtelExporterOtlpEndpoint))

	grpcOpts := []grpc.DialOption{}
	if cfg.OtelExporterOtlpInsecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		slog.Warn("Using insecure connection for OTLP exporter.")
	} else {
		slog.Info("Using secure connection for OTLP exporter (assuming system CAs). Adjust if needed.")
	}

	conn, err := grpc.NewClient(cfg.OtelExporterOtlpEndpoint, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("nlbridge"),
		),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	slog.Info("OpenTelemetry TracerProvider configured.")

	return func(ctx context.Context) error {
		providerErr := tp.Shutdown(ctx)
		connErr := conn.Close()
		return errors.Join(providerErr, connErr)
	}, nil
}
