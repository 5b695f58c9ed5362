package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/yungbote/newsreel-backend/internal/data/db"
	"github.com/yungbote/newsreel-backend/internal/data/repos"
	"github.com/yungbote/newsreel-backend/internal/http/handlers"
	"github.com/yungbote/newsreel-backend/internal/observability"
	"github.com/yungbote/newsreel-backend/internal/pipeline/assetgen"
	"github.com/yungbote/newsreel-backend/internal/pipeline/render"
	"github.com/yungbote/newsreel-backend/internal/platform/envutil"
	"github.com/yungbote/newsreel-backend/internal/platform/gcp"
	"github.com/yungbote/newsreel-backend/internal/platform/gemini"
	"github.com/yungbote/newsreel-backend/internal/platform/logger"
	"github.com/yungbote/newsreel-backend/internal/platform/sandbox"
	"github.com/yungbote/newsreel-backend/internal/policy"
	"github.com/yungbote/newsreel-backend/internal/server"
	"github.com/yungbote/newsreel-backend/internal/temporalx"
	"github.com/yungbote/newsreel-backend/internal/temporalx/temporalworker"
)

func main() {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "newsreel",
		Environment: envutil.String("ENVIRONMENT", "development"),
		Version:     envutil.String("SERVICE_VERSION", "dev"),
	})
	if shutdownOTel != nil {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(sctx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	thePG := postgresService.DB()
	if err := db.AutoMigrateAll(thePG); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}

	// Repos
	videoRepo := repos.NewVideoRepo(thePG, log)
	scriptRepo := repos.NewVideoScriptRepo(thePG, log)
	assetRepo := repos.NewGeneratedAssetRepo(thePG, log)
	policyRepo := repos.NewPolicyRunRepo(thePG, log)
	costRepo := repos.NewCostLogRepo(thePG, log)

	// Platform services
	bucketService, err := gcp.NewBucketService(ctx, log)
	if err != nil {
		log.Fatal("Could not init BucketService", "error", err)
	}
	geminiClient, err := gemini.NewClient(ctx, log)
	if err != nil {
		log.Fatal("Could not init GeminiClient", "error", err)
	}
	sandboxService, err := sandbox.NewService(log)
	if err != nil {
		log.Fatal("Could not init SandboxService", "error", err)
	}
	checker := policy.NewChecker(log, geminiClient, envutil.String("POLICY_MODEL", "gemini-2.5-flash"))

	// Temporal
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Fatal("Could not connect to Temporal", "error", err)
	}
	if temporalClient != nil {
		defer temporalClient.Close()

		assetActs := &assetgen.Activities{
			Log:      log,
			Videos:   videoRepo,
			Scripts:  scriptRepo,
			Assets:   assetRepo,
			Policies: policyRepo,
			Costs:    costRepo,
			Bucket:   bucketService,
			Gen:      geminiClient,
			Checker:  checker,
			HTTP:     &http.Client{Timeout: 30 * time.Second},
		}
		renderActs := &render.Activities{
			Log:     log,
			Videos:  videoRepo,
			Assets:  assetRepo,
			Bucket:  bucketService,
			Sandbox: sandboxService,
		}
		runner, err := temporalworker.NewRunner(log, temporalClient, assetActs, renderActs)
		if err != nil {
			log.Fatal("Could not init Temporal worker", "error", err)
		}
		if err := runner.Start(ctx); err != nil {
			log.Fatal("Temporal worker failed to start", "error", err)
		}
	}

	// Router
	videoHandler := handlers.NewVideoHandler(log, temporalClient, videoRepo, assetRepo, policyRepo)
	router := server.NewRouter(server.RouterConfig{VideoHandler: videoHandler})

	port := envutil.String("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
