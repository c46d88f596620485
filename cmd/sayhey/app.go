package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"sayhey/internal/config"
	"sayhey/internal/identity"
	"sayhey/internal/integrations/chatapi"
	"sayhey/internal/integrations/paramstore"
	"sayhey/internal/repository"
	"sayhey/internal/usecase"
)

// app holds everything wired from configuration for one CLI invocation.
type app struct {
	cfg     config.Config
	client  *chatapi.Client
	ids     identity.Provider
	archive *repository.Client
	closers []func() error
}

func newApp(ctx context.Context, userIDOverride string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	a := &app{cfg: cfg}

	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
	}

	var params config.EndpointGetter
	if cfg.BaseURL == "" && cfg.EndpointParam != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, err
		}
		params = ssmClient
	}
	baseURL, err := cfg.ResolveBaseURL(ctx, params)
	if err != nil {
		return nil, err
	}

	opts := []chatapi.Option{chatapi.WithConfig(cfg.ClientConfig())}
	if cfg.Trace {
		opts = append(opts, chatapi.WithTrace(slog.Default()))
	}
	a.client, err = chatapi.NewClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}

	if id := strings.TrimSpace(userIDOverride); id != "" {
		a.ids = identity.Static(id)
	} else {
		path, err := cfg.ResolvedStatePath()
		if err != nil {
			return nil, err
		}
		store, err := identity.Open(path)
		if err != nil {
			return nil, err
		}
		a.ids = store
		a.closers = append(a.closers, store.Close)
	}

	if cfg.ArchiveTable != "" {
		a.archive, err = repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.ArchiveTable)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	slog.Debug("sayhey configured", "base_url", baseURL, "variant", cfg.Variant, "archive", cfg.ArchiveTable != "")
	return a, nil
}

func (a *app) conversation(ctx context.Context) (*usecase.Conversation, error) {
	opts := []usecase.ConversationOption{usecase.WithLogger(slog.Default())}
	if a.archive != nil {
		opts = append(opts, usecase.WithArchive(a.archive))
	}
	return usecase.NewConversation(ctx, a.client, a.ids, opts...)
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
