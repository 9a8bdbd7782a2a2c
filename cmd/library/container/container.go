package container

import (
	"context"
	"fmt"

	"github.com/sitewise/estimator/cmd/library/repository"
	"github.com/sitewise/estimator/cmd/library/service"
	"github.com/sitewise/estimator/common/bootstrap"
	"github.com/sitewise/estimator/common/clients"
	rediscommon "github.com/sitewise/estimator/common/redis"
	"github.com/sitewise/estimator/common/validation"
)

// Container holds all initialized services and repositories. Everything is
// created once at startup and injected explicitly; nothing reaches for
// package-level singletons.
type Container struct {
	// Components
	Components *bootstrap.Components
	Redis      *rediscommon.Client

	// Repositories
	ItemRepo      *repository.ItemRepository
	FactorRepo    *repository.FactorRepository
	VersionRepo   *repository.VersionRepository
	RatesRepo     *repository.RatesRepository
	HierarchyRepo *repository.HierarchyRepository
	CatalogRepo   *repository.CatalogRepository

	// Services
	LibraryService *service.LibraryService
	RatesService   *service.RatesService
	Popularity     *service.PopularityTracker
	JobsClient     *clients.JobsClient
}

// NewContainer initializes all services and repositories once
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	redisClient, err := rediscommon.Connect(ctx, cfg, components.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Initialize repositories
	itemRepo := repository.NewItemRepository(components.DB)
	factorRepo := repository.NewFactorRepository(components.DB)
	versionRepo := repository.NewVersionRepository(components.DB)
	ratesRepo := repository.NewRatesRepository(components.DB)
	hierarchyRepo := repository.NewHierarchyRepository(components.DB, components.Cache, cfg.Cache.HierarchyTTL)
	catalogRepo := repository.NewCatalogRepository(components.DB)

	// Compile the item-quality policy rules. Broken rules are logged and
	// skipped rather than taking the service down.
	policy, compileErrs := validation.NewPolicyEvaluator(cfg.Policy.Rules)
	for _, err := range compileErrs {
		components.Logger.Warn("policy rule rejected", "error", err)
	}

	libraryService := service.NewLibraryService(&service.LibraryServiceOpts{
		Items:     itemRepo,
		Factors:   factorRepo,
		Versions:  versionRepo,
		Hierarchy: hierarchyRepo,
		Policy:    policy,
		Publisher: components.Queue,
		Logger:    components.Logger,
	})

	ratesService := service.NewRatesService(&service.RatesServiceOpts{
		Rates:    ratesRepo,
		Catalog:  catalogRepo,
		Cache:    redisClient,
		CacheTTL: cfg.Cache.RatesTTL,
		Limits: validation.RateLimits{
			MaxRate:          cfg.Rates.MaxRate,
			DeviationPercent: cfg.Rates.DeviationPercent,
		},
		Publisher: components.Queue,
		Logger:    components.Logger,
	})

	popularity := service.NewPopularityTracker(redisClient, components.Logger)
	if err := popularity.Start(ctx, components.Queue); err != nil {
		return nil, fmt.Errorf("failed to start popularity tracker: %w", err)
	}

	jobsClient := clients.NewJobsClient(components.DB, components.Logger)

	return &Container{
		Components:     components,
		Redis:          redisClient,
		ItemRepo:       itemRepo,
		FactorRepo:     factorRepo,
		VersionRepo:    versionRepo,
		RatesRepo:      ratesRepo,
		HierarchyRepo:  hierarchyRepo,
		CatalogRepo:    catalogRepo,
		LibraryService: libraryService,
		RatesService:   ratesService,
		Popularity:     popularity,
		JobsClient:     jobsClient,
	}, nil
}

// Close releases container-owned resources
func (c *Container) Close() error {
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}
