package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oakfund/fundcore-backend/internal/adapter/brokerage"
	"github.com/oakfund/fundcore-backend/internal/adapter/notify"
	"github.com/oakfund/fundcore-backend/internal/adapter/repository/postgres"
	"github.com/oakfund/fundcore-backend/internal/config"
	"github.com/oakfund/fundcore-backend/internal/domain"
	"github.com/oakfund/fundcore-backend/internal/logger"
	"github.com/oakfund/fundcore-backend/internal/usecase/aggregator"
	"github.com/oakfund/fundcore-backend/internal/usecase/etl"
	"github.com/oakfund/fundcore-backend/internal/usecase/seeder"
	"github.com/oakfund/fundcore-backend/internal/usecase/shareledger"
	"github.com/oakfund/fundcore-backend/internal/usecase/validator"
	"github.com/oakfund/fundcore-backend/internal/usecase/valuation"
)

const usage = `usage: fundcore [-config path] <command> [args]

commands:
  valuate            run the daily valuation for today
  flows              process all matched fund flow requests
  etl                run the brokerage transaction pipeline
  validate           run the invariant checks and print the report
  close <investor>   close an investor's account at the current NAV
  tax <year>         estimate the quarterly tax settlement for a year
  serve              run scheduled valuation, etl and flow processing
`

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envOnly := flag.Bool("env-only", false, "ignore the config file and read environment only")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, *envOnly)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, flag.Args()); err != nil {
		log.Fatal("command failed", zap.Error(err))
	}
}

type app struct {
	cfg    config.Config
	log    *zap.Logger
	db     *postgres.DB
	nav    *valuation.Service
	ledger *shareledger.Service
	etl    *etl.Service
	checks *validator.Service
}

func run(cfg config.Config, log *zap.Logger, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.db.Close()

	switch args[0] {
	case "valuate":
		return a.valuate(ctx)
	case "flows":
		return a.flows(ctx)
	case "etl":
		return a.runETL(ctx)
	case "validate":
		return a.validate(ctx)
	case "close":
		if len(args) < 2 {
			return fmt.Errorf("close requires an investor id")
		}
		return a.closeAccount(ctx, args[1])
	case "tax":
		if len(args) < 2 {
			return fmt.Errorf("tax requires a year")
		}
		return a.taxEstimate(ctx, args[1])
	case "serve":
		return a.serve(ctx)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	db, err := postgres.NewDB(cfg.DB.DSN, postgres.PoolOptions{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	settingsRepo := postgres.NewSettingsRepository(db)
	if err := seedSettings(ctx, cfg, settingsRepo); err != nil {
		db.Close()
		return nil, err
	}
	settings, err := settingsRepo.Get(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	investorRepo := postgres.NewInvestorRepository(db)
	navRepo := postgres.NewNAVRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	taxEventRepo := postgres.NewTaxEventRepository(db)
	fundFlowRepo := postgres.NewFundFlowRepository(db)
	ledgerRepo := postgres.NewLedgerRepository(db)
	stagingRepo := postgres.NewStagingRepository(db)
	tradeRepo := postgres.NewTradeRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	clients, err := buildClients(cfg.Sources)
	if err != nil {
		db.Close()
		return nil, err
	}

	sink := notify.NewLogSink(log)

	balances := aggregator.NewService(clients, aggregator.RetryConfig{
		Attempts: cfg.Aggregator.RetryAttempts,
		Backoff:  cfg.Aggregator.RetryBackoff,
	}, log)

	navService := valuation.NewService(balances, investorRepo, navRepo, auditRepo, sink, log)
	ledgerService := shareledger.NewService(investorRepo, fundFlowRepo, transactionRepo,
		taxEventRepo, ledgerRepo, navService, settings.TaxRate, sink, log)
	etlService := etl.NewService(clients, stagingRepo, tradeRepo, log)
	checkService := validator.NewService(investorRepo, navRepo, transactionRepo, log)

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		nav:    navService,
		ledger: ledgerService,
		etl:    etlService,
		checks: checkService,
	}, nil
}

func seedSettings(ctx context.Context, cfg config.Config, repo domain.SettingsRepository) error {
	taxRate, err := decimal.NewFromString(cfg.Fund.TaxRate)
	if err != nil {
		return fmt.Errorf("invalid fund.tax_rate %q: %w", cfg.Fund.TaxRate, err)
	}
	return seeder.NewSystemSeederWithDefaults(repo, taxRate, cfg.Fund.BaseCurrency).Seed(ctx)
}

func buildClients(sources []config.SourceConfig) (map[string]domain.BrokerageClient, error) {
	clients := make(map[string]domain.BrokerageClient, len(sources))
	for _, source := range sources {
		switch source.Kind {
		case "file":
			clients[source.Name] = brokerage.NewFileClient(source.Path)
		default:
			return nil, fmt.Errorf("%w: unknown source kind %q for %s",
				domain.ErrConfiguration, source.Kind, source.Name)
		}
	}
	return clients, nil
}

func (a *app) valuate(ctx context.Context) error {
	record, err := a.nav.UpdateNAV(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	a.log.Info("valuation complete",
		zap.String("date", record.Date.Format("2006-01-02")),
		zap.String("nav_per_share", record.NAVPerShare.String()),
		zap.String("total_portfolio_value", record.TotalPortfolioValue.String()),
	)
	return nil
}

func (a *app) flows(ctx context.Context) error {
	result, err := a.ledger.ProcessMatched(ctx)
	if err != nil {
		return err
	}
	a.log.Info("fund flows processed",
		zap.Int("processed", result.Processed),
		zap.Int("rejected", result.Rejected),
		zap.Int("failed", result.Failed),
	)
	for _, procErr := range result.Errors {
		a.log.Warn("fund flow error", zap.Error(procErr))
	}
	return nil
}

func (a *app) runETL(ctx context.Context) error {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -a.cfg.ETL.LookbackDays)

	result, err := a.etl.Run(ctx, start, end)
	if err != nil {
		return err
	}
	a.log.Info("etl complete",
		zap.Int("staged", result.Extract.Inserted),
		zap.Int("already_staged", result.Extract.Existing),
		zap.Int("extract_errors", result.Extract.Errors),
		zap.Int("transformed", result.Transform.Transformed),
		zap.Int("loaded", result.Load.Loaded),
		zap.Int("duplicates", result.Load.Duplicates),
	)
	return nil
}

func (a *app) validate(ctx context.Context) error {
	report, err := a.checks.Run(ctx)
	if err != nil {
		return err
	}

	for _, check := range report.Checks {
		status := "PASS"
		if !check.Passed {
			status = "FAIL"
		}
		fmt.Printf("%-28s %s", check.Name, status)
		if !check.Passed && check.Diff != "" {
			fmt.Printf("  (expected %s, actual %s)", check.Expected, check.Actual)
		}
		fmt.Println()
		for _, detail := range check.Details {
			fmt.Printf("    %s\n", detail)
		}
	}

	if !report.Passed() {
		return fmt.Errorf("%d invariant check(s) failed", len(report.Failed()))
	}
	return nil
}

func (a *app) closeAccount(ctx context.Context, rawID string) error {
	investorID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid investor id %q: %w", rawID, err)
	}

	result, err := a.ledger.CloseAccount(ctx, investorID)
	if err != nil {
		return err
	}
	a.log.Info("account closed",
		zap.String("investor_id", investorID.String()),
		zap.String("shares_redeemed", result.SharesTransacted.String()),
		zap.String("net_proceeds", result.NetProceeds.String()),
	)
	return nil
}

func (a *app) taxEstimate(ctx context.Context, rawYear string) error {
	year, err := strconv.Atoi(rawYear)
	if err != nil {
		return fmt.Errorf("invalid year %q: %w", rawYear, err)
	}

	estimate, err := a.ledger.QuarterlyTaxEstimate(ctx, year)
	if err != nil {
		return err
	}
	fmt.Printf("quarterly tax estimate for %d: %s\n", year, estimate.StringFixed(2))
	return nil
}

// serve runs the scheduled jobs until interrupted. Each job logs its own
// failure and keeps the schedule alive; a broken valuation at 18:00 must
// not cancel the 18:30 etl run.
func (a *app) serve(ctx context.Context) error {
	if !a.cfg.Cron.Enabled {
		return fmt.Errorf("%w: cron is disabled", domain.ErrConfiguration)
	}

	scheduler := cron.New()

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"valuate", a.cfg.Cron.Valuation, a.valuate},
		{"etl", a.cfg.Cron.ETL, a.runETL},
		{"flows", a.cfg.Cron.Flows, a.flows},
	}
	for _, job := range jobs {
		job := job
		if _, err := scheduler.AddFunc(job.spec, func() {
			if err := job.run(ctx); err != nil {
				a.log.Error("scheduled job failed", zap.String("job", job.name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
	}

	scheduler.Start()
	a.log.Info("scheduler started",
		zap.String("valuation", a.cfg.Cron.Valuation),
		zap.String("etl", a.cfg.Cron.ETL),
		zap.String("flows", a.cfg.Cron.Flows),
	)

	<-ctx.Done()
	a.log.Info("shutting down")

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		a.log.Warn("timed out waiting for running jobs")
	}

	return nil
}
