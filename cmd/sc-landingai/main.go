package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/pgmiso/sc-landingai/internal/ade"
	"github.com/pgmiso/sc-landingai/internal/ai"
	"github.com/pgmiso/sc-landingai/internal/artifact"
	"github.com/pgmiso/sc-landingai/internal/config"
	"github.com/pgmiso/sc-landingai/internal/filestore"
	"github.com/pgmiso/sc-landingai/internal/grounding"
	"github.com/pgmiso/sc-landingai/internal/handler"
	"github.com/pgmiso/sc-landingai/internal/index"
	"github.com/pgmiso/sc-landingai/internal/ingest"
	"github.com/pgmiso/sc-landingai/internal/job"
	"github.com/pgmiso/sc-landingai/internal/middleware"
	"github.com/pgmiso/sc-landingai/internal/model"
	"github.com/pgmiso/sc-landingai/internal/pagerender"
	"github.com/pgmiso/sc-landingai/internal/pkg/jwt"
	"github.com/pgmiso/sc-landingai/internal/retrieval"
	"github.com/pgmiso/sc-landingai/internal/schedule"
)

// app bundles the wired components shared by the server and the one-shot
// commands.
type app struct {
	cfg           *config.Config
	store         filestore.Store
	keys          artifact.Keyspace
	pipeline      *ingest.Pipeline
	retrieval     *retrieval.Service
	reconstructor *grounding.Reconstructor
	embedder      ai.IEmbedder
	index         index.Service
	syncJob       *job.IndexSyncJob
	sweepJob      *job.SweepJob
}

func buildApp(cfg *config.Config) (*app, error) {
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}
	keys := artifact.NewKeyspace(cfg.Pipeline.OutputPrefix)
	writer := artifact.NewWriter(store, keys, cfg.Pipeline.WriteWorkers)

	adeClient, err := ade.NewClient(ade.Config{
		Endpoint:       cfg.ADE.Endpoint,
		APIKey:         cfg.ADE.APIKey,
		Model:          cfg.ADE.Model,
		TimeoutSeconds: cfg.ADE.TimeoutSeconds,
		RPS:            cfg.ADE.RPS,
	})
	if err != nil {
		return nil, fmt.Errorf("init parse client: %w", err)
	}
	renderer := pagerender.New(store, keys, pagerender.Config{
		DPI:         cfg.Render.DPI,
		PdftoppmBin: cfg.Render.PdftoppmBin,
	})
	pipeline := ingest.NewPipeline(store, adeClient, writer, renderer, ingest.Config{
		InputPrefix:    cfg.Pipeline.InputPrefix,
		DefaultDomain:  cfg.Pipeline.DefaultDomain,
		ForceReprocess: cfg.Pipeline.ForceReprocess,
		FetchAttempts:  cfg.Pipeline.FetchAttempts,
	})

	provider, err := ai.NewProvider(cfg.Embedder.Provider, cfg.Embedder.Data)
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	embedder := ai.WrapLRU(
		ai.NewEmbedder(provider, cfg.Embedder.Model),
		cfg.Embedder.CacheSize,
		time.Duration(cfg.Embedder.CacheTTLMinutes)*time.Minute,
	)

	idx, err := index.New(index.Config{
		Provider:  cfg.Index.Provider,
		Dimension: cfg.Index.Dimension,
		Data:      cfg.Index.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	reconstructor := grounding.New(store, keys, pagerender.NewSource(renderer, store), grounding.Config{
		CacheSize:       cfg.Grounding.CacheSize,
		CacheTTLMinutes: cfg.Grounding.CacheTTLMinutes,
		BorderWidth:     cfg.Grounding.BorderWidth,
		DefaultColor:    cfg.Grounding.DefaultColor,
	})

	return &app{
		cfg:           cfg,
		store:         store,
		keys:          keys,
		pipeline:      pipeline,
		retrieval:     retrieval.New(embedder, idx, reconstructor),
		reconstructor: reconstructor,
		embedder:      embedder,
		index:         idx,
		syncJob:       job.NewIndexSyncJob(store, cfg.Pipeline.OutputPrefix, embedder, idx),
		sweepJob:      job.NewSweepJob(store, pipeline, cfg.Pipeline.InputPrefix),
	}, nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "sc-landingai",
		Short: "document chunk extraction and visual grounding service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the api server and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			application, err := buildApp(cfg)
			if err != nil {
				return err
			}
			return runServer(application)
		},
	}

	var ingestKey string
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "process one uploaded document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ingestKey == "" {
				return fmt.Errorf("--key is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			application, err := buildApp(cfg)
			if err != nil {
				return err
			}
			outcome, err := application.pipeline.ProcessObject(cmd.Context(), ingestKey)
			if err != nil {
				return err
			}
			return printJSON(outcome)
		},
	}
	ingestCmd.Flags().StringVar(&ingestKey, "key", "", "object key of the uploaded document")

	var searchQuery string
	var searchTopK int
	var searchWithImage bool
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "query the index and print grounded results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if searchQuery == "" {
				return fmt.Errorf("--query is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			application, err := buildApp(cfg)
			if err != nil {
				return err
			}
			results, err := application.retrieval.Search(cmd.Context(), searchQuery, retrieval.Options{
				TopK:      searchTopK,
				WithImage: searchWithImage,
				Style:     model.DefaultHighlightStyle(),
			})
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "search query text")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 10, "number of results")
	searchCmd.Flags().BoolVar(&searchWithImage, "with-image", false, "reconstruct grounding images")

	var tokenOperator string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "mint a bearer token for the api",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tokenOperator == "" {
				return fmt.Errorf("--operator is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			token, err := jwt.GenerateToken(
				tokenOperator,
				[]byte(cfg.JWTSecret),
				time.Duration(cfg.JWTTTLHours)*time.Hour,
			)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "", "operator name embedded in the token")

	rootCmd.AddCommand(runCmd, ingestCmd, searchCmd, tokenCmd)
	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runServer(a *app) error {
	cfg := a.cfg
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("index", a.index.Name()),
		zap.String("embed_model", a.embedder.ModelName()),
	)

	deps := handler.RouterDeps{
		Events:    handler.NewEventHandler(a.pipeline),
		Search:    handler.NewSearchHandler(a.retrieval),
		Grounding: handler.NewGroundingHandler(a.reconstructor),
		Status:    handler.NewStatusHandler(a.store, a.keys, a.syncJob),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cfg.Jobs.SweepSpec != "" {
		if err := scheduler.AddJob(a.sweepJob, cfg.Jobs.SweepSpec); err != nil {
			return err
		}
	}
	if cfg.Jobs.IndexSyncSpec != "" {
		if err := scheduler.AddJob(a.syncJob, cfg.Jobs.IndexSyncSpec); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()
	logutil.GetLogger(context.Background()).Info("http server listening",
		zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
