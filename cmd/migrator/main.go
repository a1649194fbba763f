package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorgen-health/migrator/pkg/common/config"
	"github.com/gorgen-health/migrator/pkg/common/database"
	"github.com/gorgen-health/migrator/pkg/common/kafka"
	"github.com/gorgen-health/migrator/pkg/common/logger"
	"github.com/gorgen-health/migrator/pkg/dedup"
	"github.com/gorgen-health/migrator/pkg/ident"
	"github.com/gorgen-health/migrator/pkg/match"
	"github.com/gorgen-health/migrator/pkg/migrate"
	"github.com/gorgen-health/migrator/pkg/normalize"
	"github.com/gorgen-health/migrator/pkg/patient"
	"github.com/gorgen-health/migrator/pkg/source"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

func main() {
	app := &cli.Command{
		Name:  "migrator",
		Usage: "Migrate legacy clinic spreadsheets into Gorgen",
		Commands: []*cli.Command{
			patientsCommand(),
			encountersCommand(),
			duplicatesCommand(),
			repairCodesCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    "Path to the xlsx export",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Simulate without writing to the database",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Process at most this many rows",
		},
		&cli.IntFlag{
			Name:  "batch",
			Usage: "Batch size for inserts",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Trace every processed row",
		},
		&cli.StringFlag{
			Name:  "mappings",
			Usage: "YAML file overriding the built-in synonym tables",
		},
	}
}

func patientsCommand() *cli.Command {
	flags := append(runFlags(), &cli.BoolFlag{
		Name:  "upsert",
		Usage: "Update existing patients instead of suffixing new identifiers",
	})
	return &cli.Command{
		Name:   "patients",
		Usage:  "Migrate the patient export",
		Flags:  flags,
		Action: runPatients,
	}
}

func encountersCommand() *cli.Command {
	return &cli.Command{
		Name:   "encounters",
		Usage:  "Migrate the encounter export",
		Flags:  runFlags(),
		Action: runEncounters,
	}
}

func duplicatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "duplicates",
		Usage: "Report duplicate patient groups for manual review",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "report",
				Usage: "Path for the JSON report artifact",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Trace every group found",
			},
		},
		Action: runDuplicates,
	}
}

func repairCodesCommand() *cli.Command {
	return &cli.Command{
		Name:  "repair-codes",
		Usage: "Rewrite legacy encounter codes into canonical form",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Trace every repaired code",
			},
		},
		Action: runRepairCodes,
	}
}

// runEnv holds the wired run dependencies shared by the subcommands.
type runEnv struct {
	cfg      *config.Config
	log      *logrus.Logger
	db       *gorm.DB
	producer *kafka.Producer
	lock     *database.RunLock
}

func setup(cmd *cli.Command) (*runEnv, error) {
	cfg := config.Load()

	level := "info"
	if cmd.Bool("verbose") {
		level = "debug"
	}
	log := logger.New(level)

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	env := &runEnv{cfg: cfg, log: log, db: db}

	if len(cfg.KafkaBrokers) > 0 {
		env.producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaReportTopic)
	}

	return env, nil
}

func (e *runEnv) close() {
	if e.producer != nil {
		if err := e.producer.Close(); err != nil {
			e.log.WithError(err).Warn("closing kafka producer")
		}
	}
	if err := database.Close(e.db); err != nil {
		e.log.WithError(err).Warn("closing database")
	}
}

// acquireLock takes the per-tenant run lock when redis is configured. Write
// runs must hold it; read-only commands never call this.
func (e *runEnv) acquireLock(ctx context.Context) error {
	if e.cfg.RedisHost == "" {
		return nil
	}
	client, err := database.NewRedis(e.cfg)
	if err != nil {
		return err
	}
	e.lock = database.NewRunLock(client, e.cfg.TenantID, uuid.New().String(), e.cfg.RunLockTTL)
	return e.lock.Acquire(ctx)
}

func (e *runEnv) releaseLock(ctx context.Context) {
	if e.lock == nil {
		return
	}
	if err := e.lock.Release(ctx); err != nil {
		e.log.WithError(err).Warn("releasing run lock")
	}
}

func (e *runEnv) options(cmd *cli.Command) (migrate.Options, error) {
	mappings := normalize.DefaultMappings()
	if path := cmd.String("mappings"); path != "" {
		loaded, err := normalize.LoadMappings(path)
		if err != nil {
			return migrate.Options{}, err
		}
		mappings = loaded
	}

	batch := int(cmd.Int("batch"))
	if batch <= 0 {
		batch = e.cfg.BatchSize
	}

	return migrate.Options{
		TenantID:     e.cfg.TenantID,
		BatchSize:    batch,
		Limit:        int(cmd.Int("limit")),
		DryRun:       cmd.Bool("dry-run"),
		Upsert:       cmd.Bool("upsert"),
		Verbose:      cmd.Bool("verbose"),
		MinBirthDate: e.cfg.MinBirthDate,
		MaxBirthDate: e.cfg.MaxBirthDate,
		Mappings:     mappings,
	}, nil
}

// finishRun persists, saves and publishes the run report. Dry runs only log
// and write the artifact.
func (e *runEnv) finishRun(ctx context.Context, runType string, opts migrate.Options, stats migrate.Stats, startedAt time.Time) error {
	report := migrate.NewReport(runType, opts, stats, startedAt)
	report.Log(stats, e.log)

	if !opts.DryRun {
		if err := migrate.NewReportRepository(e.db).Save(ctx, report); err != nil {
			return err
		}
		migrate.PublishReport(ctx, e.producer, report, e.log)
	}

	path := filepath.Join(e.cfg.ReportDir, fmt.Sprintf("%s-report-%s.json", runType, report.FinishedAt.Format("20060102-150405")))
	if err := report.WriteArtifact(path); err != nil {
		return fmt.Errorf("writing report artifact: %w", err)
	}
	e.log.WithField("path", path).Info("report artifact written")
	return nil
}

func runPatients(ctx context.Context, cmd *cli.Command) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	opts, err := env.options(cmd)
	if err != nil {
		return err
	}

	if err := env.acquireLock(ctx); err != nil {
		return err
	}
	defer env.releaseLock(ctx)

	repo := patient.NewRepository(env.db)
	if err := repo.AutoMigrate(); err != nil {
		return fmt.Errorf("migrating patients schema: %w", err)
	}
	if err := env.db.AutoMigrate(&migrate.Report{}); err != nil {
		return fmt.Errorf("migrating reports schema: %w", err)
	}

	rows, err := source.ReadSheet(cmd.String("file"), 0)
	if err != nil {
		return err
	}
	env.log.WithFields(logrus.Fields{"rows": len(rows), "mode": opts.Mode()}).Info("starting patient migration")

	startedAt := time.Now().UTC()
	stats, err := migrate.NewPatientMigration(repo, opts, env.log).Run(ctx, rows)
	if err != nil {
		return err
	}

	return env.finishRun(ctx, "patients", opts, stats, startedAt)
}

func runEncounters(ctx context.Context, cmd *cli.Command) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	opts, err := env.options(cmd)
	if err != nil {
		return err
	}

	if err := env.acquireLock(ctx); err != nil {
		return err
	}
	defer env.releaseLock(ctx)

	patientRepo := patient.NewRepository(env.db)
	encounterRepo := patient.NewEncounterRepository(env.db)
	if err := encounterRepo.AutoMigrate(); err != nil {
		return fmt.Errorf("migrating encounters schema: %w", err)
	}
	if err := env.db.AutoMigrate(&migrate.Report{}); err != nil {
		return fmt.Errorf("migrating reports schema: %w", err)
	}

	rows, err := source.ReadSheet(cmd.String("file"), 0)
	if err != nil {
		return err
	}
	env.log.WithFields(logrus.Fields{"rows": len(rows), "mode": opts.Mode()}).Info("starting encounter migration")

	resolver := match.NewResolver(match.NewRepositorySource(patientRepo, opts.TenantID))
	allocator := ident.NewAllocator(encounterRepo, opts.TenantID)

	startedAt := time.Now().UTC()
	stats, err := migrate.NewEncounterMigration(resolver, allocator, encounterRepo, opts, env.log).Run(ctx, rows)
	if err != nil {
		return err
	}

	return env.finishRun(ctx, "encounters", opts, stats, startedAt)
}

func runDuplicates(ctx context.Context, cmd *cli.Command) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	repo := patient.NewRepository(env.db)
	auditor := dedup.NewAuditor(repo, env.producer, env.cfg.TenantID, env.log)

	report, err := auditor.Run(ctx)
	if err != nil {
		return err
	}

	path := cmd.String("report")
	if path == "" {
		path = filepath.Join(env.cfg.ReportDir, fmt.Sprintf("duplicates-report-%s.json", report.GeneratedAt.Format("20060102-150405")))
	}
	if err := report.WriteArtifact(path); err != nil {
		return fmt.Errorf("writing duplicates report: %w", err)
	}
	env.log.WithField("path", path).Info("duplicates report written")
	return nil
}

func runRepairCodes(ctx context.Context, cmd *cli.Command) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.acquireLock(ctx); err != nil {
		return err
	}
	defer env.releaseLock(ctx)

	repairer := ident.NewRepairer(patient.NewEncounterRepository(env.db), env.cfg.TenantID, env.log)
	result, err := repairer.Run(ctx)
	if err != nil {
		return err
	}

	env.log.WithFields(logrus.Fields{
		"total":    result.Total,
		"repaired": result.Repaired,
		"skipped":  result.Skipped,
		"errors":   len(result.Errors),
	}).Info("encounter code repair finished")
	for _, msg := range result.Errors {
		env.log.Error(msg)
	}
	return nil
}
