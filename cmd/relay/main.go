package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"sayhey/handler"
	appconfig "sayhey/internal/config"
	"sayhey/internal/integrations/chatapi"
	"sayhey/internal/integrations/paramstore"
	"sayhey/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := appconfig.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	// ---- Endpoint ----
	var params appconfig.EndpointGetter
	if cfg.NeedsAWS() {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		params = ssmClient
	}
	baseURL, err := cfg.ResolveBaseURL(ctx, params)
	if err != nil {
		slog.Error("failed to resolve chat endpoint", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	opts := []chatapi.Option{chatapi.WithConfig(cfg.ClientConfig())}
	if cfg.Trace {
		opts = append(opts, chatapi.WithTrace(slog.Default()))
	}
	chatClient, err := chatapi.NewClient(baseURL, opts...)
	if err != nil {
		slog.Error("failed to create chat client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	relay, err := usecase.NewRelayService(chatClient, cfg.MaxMessageLen)
	if err != nil {
		slog.Error("failed to create relay service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(relay)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	slog.Info("relay ready", "base_url", baseURL, "variant", cfg.Variant)
	lambda.Start(h.Handle)
}
