// -----------------------------------------------------------------------
// Command lensfeed: one-shot lens-driven entity ingestion CLI.
// -----------------------------------------------------------------------

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/edinburghfinds/lensfeed/internal/adapter"
	"github.com/edinburghfinds/lensfeed/internal/common"
	"github.com/edinburghfinds/lensfeed/internal/engine"
	"github.com/edinburghfinds/lensfeed/internal/lens"
	"github.com/edinburghfinds/lensfeed/internal/orchestrator"
	"github.com/edinburghfinds/lensfeed/internal/persistence"
	"github.com/edinburghfinds/lensfeed/internal/pipeline"
	"github.com/edinburghfinds/lensfeed/internal/planner"
	"github.com/edinburghfinds/lensfeed/internal/queryfeatures"
	"github.com/edinburghfinds/lensfeed/internal/ratelimit"
	"github.com/edinburghfinds/lensfeed/internal/scheduler"
	"github.com/edinburghfinds/lensfeed/internal/storage/postgres"
)

// repeatableFlag is a custom flag type allowing a flag to be specified
// multiple times, collecting each value. Mirrors the teacher's configPaths
// flag type in cmd/quaero/main.go.
type repeatableFlag []string

func (r *repeatableFlag) String() string {
	return fmt.Sprintf("%v", *r)
}

func (r *repeatableFlag) Set(value string) error {
	*r = append(*r, value)
	return nil
}

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "run":
		runCommand(args[1:])
	case "schedule":
		scheduleCommand(args[1:])
	case "version", "-version", "-v":
		fmt.Printf("lensfeed version %s\n", common.GetVersion())
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: lensfeed <run|schedule|version> [flags]")
	fmt.Fprintln(os.Stderr, "  lensfeed run <query> [--lens id] [--mode resolve_one|discover_many] [--connector name] [--persist] [--allow-default-lens]")
	fmt.Fprintln(os.Stderr, "  lensfeed schedule [--cron expr] --lens id --query text [--mode resolve_one|discover_many]")
}

// runtimeDeps are the shared, config-derived objects both subcommands
// need: a logger, the adapter registry, the orchestrator, and (when
// persistence is enabled) a Store.
type runtimeDeps struct {
	config  *common.Config
	logger  arbor.ILogger
	orch    *orchestrator.Orchestrator
	store   *persistence.Store
	db      *postgres.DB
	knownOf map[string]struct{}
}

// bootstrap runs the teacher's required startup order (load config, apply
// flag overrides, initialize the logger, print the banner) and then wires
// the adapter registry, rate limiter, orchestrator, and persistence layer.
func bootstrap(configFiles []string, databaseURL, defaultLensID string, persist bool) (*runtimeDeps, error) {
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		return nil, fmt.Errorf("lensfeed: failed to load configuration: %w", err)
	}

	common.ApplyFlagOverrides(config, databaseURL, defaultLensID)

	logger := common.SetupLogger(config)
	common.PrintBanner(config, logger)

	registry := adapter.NewRegistry()
	roster := planner.Roster()
	registerAdapter(registry, roster["serper"], config.Adapters.Serper, func() adapter.Adapter {
		return adapter.NewSerper(config.Adapters.Serper.APIKey, config.Adapters.Serper.Duration(), logger)
	})
	registerAdapter(registry, roster["google_places"], config.Adapters.GooglePlaces, func() adapter.Adapter {
		return adapter.NewGooglePlaces(config.Adapters.GooglePlaces.APIKey, minSpacing(config.Adapters.GooglePlaces.RateLimitPerDay), config.Adapters.GooglePlaces.Duration(), logger)
	})
	registerAdapter(registry, roster["openstreetmap"], config.Adapters.OpenStreetMap, func() adapter.Adapter {
		return adapter.NewOpenStreetMap(config.Adapters.OpenStreetMap.Duration(), logger)
	})
	registerAdapter(registry, roster["government_geojson"], config.Adapters.GovernmentGeoJSON, func() adapter.Adapter {
		return adapter.NewGovernmentGeoJSON(config.Adapters.GovernmentGeoJSON.BaseURL, config.Adapters.GovernmentGeoJSON.Duration(), logger)
	})
	registerAdapter(registry, roster["overture_release"], config.Adapters.OvertureRelease, func() adapter.Adapter {
		return adapter.NewOvertureRelease(config.Adapters.OvertureRelease.BaseURL, logger)
	})

	known := map[string]struct{}{}
	for name := range roster {
		known[name] = struct{}{}
	}

	deps := &runtimeDeps{config: config, logger: logger, knownOf: known}

	if !persist {
		deps.orch = orchestrator.New(registry, noopRateLimiter{})
		return deps, nil
	}

	db, err := postgres.New(logger, postgres.Config{
		DatabaseURL:     config.Database.URL,
		MaxOpenConns:    config.Database.MaxOpenConns,
		MaxIdleConns:    config.Database.MaxIdleConns,
		ConnMaxLifetime: config.Database.ConnMaxLifetimeSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("lensfeed: failed to connect to database: %w", err)
	}

	store := persistence.NewStore(db, logger, config.Database.DataRoot)
	usage := persistence.NewConnectorUsageStore(store)
	limiter := ratelimit.New(usage)

	deps.db = db
	deps.store = store
	deps.orch = orchestrator.New(registry, limiter)

	return deps, nil
}

// registerAdapter registers one concrete adapter built by build, using
// roster's scheduling metadata plus the config's timeout to build its
// adapter.Spec. Adapters whose roster entry is missing are skipped - this
// only happens if planner.Roster() and the registration list above drift
// apart, which is a programming error the caller should fix, not a
// runtime condition to recover from silently, so it also logs nothing:
// the resulting empty registry slot surfaces immediately as an "adapter
// not registered" error from orchestrator.runConnector.
func registerAdapter(registry *adapter.Registry, rosterSpec planner.ConnectorSpec, cfg common.AdapterConfig, build func() adapter.Adapter) {
	if rosterSpec.Name == "" {
		return
	}
	spec := adapter.Spec{
		Name:              rosterSpec.Name,
		Phase:             rosterSpec.Phase,
		TrustLevel:        rosterSpec.TrustLevel,
		SupportsQueryOnly: rosterSpec.SupportsQueryOnly,
		EstimatedCostUSD:  rosterSpec.EstimatedCostUSD,
		TimeoutSeconds:    cfg.TimeoutSeconds,
		RateLimitPerDay:   rosterSpec.RateLimitPerDay,
		Requires:          rosterSpec.Requires,
		Provides:          rosterSpec.Provides,
	}
	registry.Register(build(), spec)
}

// minSpacing converts a daily rate limit into the minimum interval
// between requests an in-process single-request gate should enforce.
func minSpacing(rateLimitPerDay int) time.Duration {
	if rateLimitPerDay <= 0 {
		return 0
	}
	return 24 * time.Hour / time.Duration(rateLimitPerDay)
}

// noopRateLimiter always allows; used when --persist is not set, since
// there is no connector_usage table to check against without a database.
type noopRateLimiter struct{}

func (noopRateLimiter) Allow(ctx context.Context, source string, limitPerDay int) (bool, error) {
	return true, nil
}

func runCommand(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var configFiles repeatableFlag
	var lensPaths repeatableFlag
	fs.Var(&configFiles, "config", "configuration file path (repeatable)")
	fs.Var(&lensPaths, "lens-path", "additional lens search root (repeatable)")
	lensID := fs.String("lens", "", "lens identifier to resolve and load")
	mode := fs.String("mode", "resolve_one", "ingestion mode: resolve_one or discover_many")
	connector := fs.String("connector", "", "bypass the planner and run a single named adapter")
	persist := fs.Bool("persist", false, "write results to the database")
	allowDevFallback := fs.Bool("allow-default-lens", false, "allow falling back to a hardcoded dev lens when none resolves")
	targetCount := fs.Int("target-count", 0, "target number of entities for discover_many mode (0 = unset)")
	minConfidence := fs.Float64("min-confidence", 0, "minimum confidence threshold (0 = unset)")
	budgetUSD := fs.Float64("budget-usd", 0, "budget ceiling in USD (0 = unset)")
	databaseURL := fs.String("database-url", "", "override the configured database URL")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	query := fs.Arg(0)
	if query == "" {
		fmt.Fprintln(os.Stderr, "lensfeed run: a query argument is required")
		os.Exit(1)
	}

	deps, err := bootstrap(configFiles, *databaseURL, *lensID, *persist)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if deps.db != nil {
		defer deps.db.Close()
	}

	config := deps.config
	config.Lens.SearchRoots = append(config.Lens.SearchRoots, []string(lensPaths)...)

	request := engine.IngestRequest{
		Mode:      engine.IngestionMode(*mode),
		Query:     query,
		Persist:   *persist,
		LensID:    *lensID,
		Connector: *connector,
	}
	if *targetCount > 0 {
		request.TargetEntityCount = targetCount
	}
	if *minConfidence > 0 {
		request.MinConfidence = minConfidence
	}
	if *budgetUSD > 0 {
		request.BudgetUSD = budgetUSD
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := execute(ctx, deps, request, *allowDevFallback)
	if err != nil {
		deps.logger.Error().Err(err).Msg("lensfeed: run failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	encoded, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(encoded))
}

// execute resolves the lens, extracts query features, builds the
// execution plan, runs the orchestrator, and (when request.Persist)
// pushes accepted candidates through the extraction pipeline and
// finalization.
func execute(ctx context.Context, deps *runtimeDeps, request engine.IngestRequest, allowDevFallback bool) (*engine.Report, error) {
	config := deps.config
	logger := deps.logger

	resolvedLensID, usedDevFallback, err := lens.ResolveLensID(
		request.LensID, os.Getenv("LENS_ID"), config.Lens.DefaultLensID, "dev-default", allowDevFallback, logger)
	if err != nil {
		return nil, err
	}
	if usedDevFallback && logger != nil {
		logger.Warn().Str("lens_id", resolvedLensID).Msg("no lens resolved via flag/env/config; using dev-fallback lens")
	}

	contract, lensHash, err := lens.Load(resolvedLensID, config.Lens.SearchRoots, deps.knownOf)
	if err != nil {
		return nil, err
	}
	execCtx := engine.NewExecutionContext(resolvedLensID, contract, lensHash)
	logger.Debug().Str("lens_id", execCtx.LensID).Str("lens_hash", execCtx.LensHash).Msg("lensfeed: lens loaded")

	keywords := queryfeatures.DefaultKeywords()
	if len(contract.CategoryKeywords) > 0 {
		keywords.CategoryTerms = contract.CategoryKeywords
	}
	if len(contract.SpecificIndicators) > 0 {
		keywords.SpecificIndicators = contract.SpecificIndicators
	}
	if len(contract.LocationNames) > 0 {
		keywords.LocationNames = contract.LocationNames
	}
	features := queryfeatures.Extract(request.Query, keywords)

	var plan planner.ExecutionPlan
	if request.Connector != "" {
		spec, ok := planner.Roster()[request.Connector]
		if !ok {
			return nil, fmt.Errorf("lensfeed: unknown connector %q", request.Connector)
		}
		plan.AddConnector(spec)
	} else {
		plan = planner.Select(request, features, contract)
	}

	state := deps.orch.Execute(ctx, request, features, plan)
	report := engine.FromState(request.Query, state)

	if !request.Persist || deps.store == nil {
		return report, nil
	}

	persistedCount, extractionTotal, extractionSuccess := 0, len(state.AcceptedEntities), 0
	var extractionErrors []string
	entitiesCreated, entitiesUpdated := 0, 0

	for _, candidate := range state.AcceptedEntities {
		payload, _ := json.Marshal(candidate.Raw)
		rawRecord, err := deps.store.UpsertRawIngestion(ctx, candidate.Source, payload)
		rawIngestionID := ""
		if err != nil {
			extractionErrors = append(extractionErrors, fmt.Sprintf("%s: %v", candidate.Source, err))
			continue
		}
		rawIngestionID = rawRecord.ID

		entity, err := pipeline.BuildExtractedEntity(contract, candidate, rawIngestionID)
		if err != nil {
			extractionErrors = append(extractionErrors, fmt.Sprintf("%s: %v", candidate.Source, err))
			continue
		}

		if err := deps.store.InsertExtractedEntity(ctx, &entity); err != nil {
			extractionErrors = append(extractionErrors, fmt.Sprintf("%s: %v", candidate.Source, err))
			continue
		}
		extractionSuccess++
		persistedCount++
	}

	allExtracted, err := deps.store.ListExtractedEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("lensfeed: failed to list extracted entities: %w", err)
	}

	finalizeResult, err := deps.store.Finalize(ctx, allExtracted)
	if err != nil {
		return nil, fmt.Errorf("lensfeed: finalize failed: %w", err)
	}
	entitiesCreated = finalizeResult.EntitiesCreated
	entitiesUpdated = finalizeResult.EntitiesUpdated

	report.PersistedCount = &persistedCount
	report.EntitiesCreated = &entitiesCreated
	report.EntitiesUpdated = &entitiesUpdated
	report.ExtractionTotal = &extractionTotal
	report.ExtractionSuccess = &extractionSuccess
	report.ExtractionErrors = extractionErrors

	if err := deps.store.InsertOrchestrationRun(ctx, resolvedLensID, string(request.Mode), request.Query, state.BudgetSpentUSD, state.Confidence, report); err != nil {
		logger.Warn().Err(err).Msg("lensfeed: failed to record orchestration run")
	}

	return report, nil
}

func scheduleCommand(args []string) {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	var configFiles repeatableFlag
	fs.Var(&configFiles, "config", "configuration file path (repeatable)")
	lensID := fs.String("lens", "", "lens identifier")
	query := fs.String("query", "", "query to re-run on schedule")
	mode := fs.String("mode", "discover_many", "ingestion mode: resolve_one or discover_many")
	cronExpr := fs.String("cron", "0 */6 * * *", "five-field cron schedule expression")
	databaseURL := fs.String("database-url", "", "override the configured database URL")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *lensID == "" || *query == "" {
		fmt.Fprintln(os.Stderr, "lensfeed schedule: --lens and --query are required")
		os.Exit(1)
	}

	deps, err := bootstrap(configFiles, *databaseURL, *lensID, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if deps.db != nil {
		defer deps.db.Close()
	}

	runFunc := func(ctx context.Context, lensID, query, mode string) error {
		request := engine.IngestRequest{
			Mode:    engine.IngestionMode(mode),
			Query:   query,
			Persist: true,
			LensID:  lensID,
		}
		_, err := execute(ctx, deps, request, false)
		return err
	}

	svc := scheduler.NewService(deps.logger, runFunc)
	if err := svc.RegisterJob("scheduled-run", *cronExpr, *lensID, *query, *mode); err != nil {
		deps.logger.Fatal().Err(err).Msg("lensfeed: failed to register scheduled job")
		os.Exit(1)
	}
	svc.Start()

	deps.logger.Info().Str("schedule", *cronExpr).Str("lens_id", *lensID).Msg("lensfeed: scheduler started, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	common.PrintShutdownBanner(deps.logger)
	svc.Stop()
}
