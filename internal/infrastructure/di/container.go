package di

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"

	"github.com/fieldworks/jobflow/internal/application/port/output"
	"github.com/fieldworks/jobflow/internal/application/service"
	workflowusecase "github.com/fieldworks/jobflow/internal/application/usecase/workflow"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/model/rule"
	"github.com/fieldworks/jobflow/internal/domain/repository"
	archivegateway "github.com/fieldworks/jobflow/internal/infrastructure/gateway/archive"
	authzgateway "github.com/fieldworks/jobflow/internal/infrastructure/gateway/authorization"
	notificationgateway "github.com/fieldworks/jobflow/internal/infrastructure/gateway/notification"
	sqliterepo "github.com/fieldworks/jobflow/internal/infrastructure/persistence/sqlite"
	"github.com/fieldworks/jobflow/internal/infrastructure/transaction"
	"github.com/fieldworks/jobflow/internal/workflow"
)

// Container wires the engine's collaborators by hand, in dependency
// order: database, domain configuration, repositories, gateways,
// services, use case.
type Container struct {
	db *sql.DB

	definition *workflow.Holder
	registry   *phase.Registry
	rules      *rule.Engine

	jobRepo     repository.JobRepository
	historyRepo repository.HistoryRepository
	lockRepo    repository.JobLockRepository

	txManager    output.TransactionManager
	authz        output.AuthorizationGateway
	notification output.NotificationGateway
	archive      output.ArchiveGateway

	escalations *service.EscalationMonitor
	metrics     *service.MetricsService

	useCase workflowusecase.UseCase

	config Config
}

// Config holds configuration for the container
type Config struct {
	DBPath       string // Path to SQLite database file (default: ~/.jobflow/jobflow.db)
	WorkflowPath string // Path to workflow YAML; empty uses the built-in definition

	OutputWriter io.Writer
	Version      string

	// Archive gateway configuration
	ArchiveType    string // "local", "s3", "mock" (default: "mock")
	ArchiveBaseDir string // Base directory for local archives (default: DB directory)
	S3Bucket       string
	S3Prefix       string
	S3Region       string

	// Role assignments for the static authorization gateway
	RoleAssignments map[string][]string

	LockTTL time.Duration
}

// NewContainer creates and initializes the DI container
func NewContainer(config Config) (*Container, error) {
	c := &Container{config: config}

	if c.config.OutputWriter == nil {
		c.config.OutputWriter = os.Stdout
	}

	if err := c.initializeDomain(); err != nil {
		return nil, fmt.Errorf("initialize domain: %w", err)
	}
	if err := c.initializeInfrastructure(); err != nil {
		return nil, fmt.Errorf("initialize infrastructure: %w", err)
	}
	if err := c.initializeApplication(); err != nil {
		return nil, fmt.Errorf("initialize application: %w", err)
	}

	return c, nil
}

// initializeDomain loads the phase graph and rules, from YAML when a
// workflow path is configured and from the built-in definition otherwise
func (c *Container) initializeDomain() error {
	var (
		holder *workflow.Holder
		err    error
	)
	if c.config.WorkflowPath == "" {
		holder, err = workflow.NewDefaultHolder()
	} else {
		holder, err = workflow.NewHolder(afero.NewOsFs(), c.config.WorkflowPath)
	}
	if err != nil {
		return err
	}
	c.definition = holder
	c.registry, c.rules = holder.Snapshot()
	return nil
}

// initializeInfrastructure opens the database, runs migrations and builds
// repositories and gateways
func (c *Container) initializeInfrastructure() error {
	dbPath := c.config.DBPath
	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home directory: %w", err)
		}
		dbDir := filepath.Join(homeDir, ".jobflow")
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
		dbPath = filepath.Join(dbDir, "jobflow.db")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	c.db = db

	migrator := sqliterepo.NewMigrator(db)
	if err := migrator.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	c.jobRepo = sqliterepo.NewJobRepository(db, c.registry)
	c.historyRepo = sqliterepo.NewHistoryRepository(db)
	c.lockRepo = sqliterepo.NewJobLockRepository(db)
	c.txManager = transaction.NewSQLiteTransactionManager(db)

	c.authz = authzgateway.NewStaticAuthorizationGateway(c.config.RoleAssignments)
	c.notification = notificationgateway.NewLogNotificationGateway()

	archiveType := c.config.ArchiveType
	if archiveType == "" {
		archiveType = "mock"
	}
	switch archiveType {
	case "local":
		baseDir := c.config.ArchiveBaseDir
		if baseDir == "" {
			baseDir = filepath.Dir(dbPath)
		}
		c.archive = archivegateway.NewLocalArchiveGateway(afero.NewOsFs(), baseDir)
	case "s3":
		if c.config.S3Bucket == "" {
			return fmt.Errorf("S3 bucket name is required for S3 archive storage")
		}
		gateway, err := archivegateway.NewS3ArchiveGateway(archivegateway.S3Config{
			Bucket: c.config.S3Bucket,
			Prefix: c.config.S3Prefix,
			Region: c.config.S3Region,
		})
		if err != nil {
			return fmt.Errorf("create S3 archive gateway: %w", err)
		}
		c.archive = gateway
	case "mock":
		c.archive = archivegateway.NewS3ArchiveGatewayWithClient(
			archivegateway.NewMockS3Client(), "jobflow-test", "")
	default:
		return fmt.Errorf("unknown archive type: %s", archiveType)
	}

	return nil
}

// initializeApplication builds services and the workflow use case
func (c *Container) initializeApplication() error {
	c.escalations = service.NewEscalationMonitor(c.registry, c.jobRepo, c.historyRepo, c.notification)
	c.metrics = service.NewMetricsService(c.registry, c.historyRepo)

	c.useCase = workflowusecase.NewUseCase(workflowusecase.Config{
		Registry:     c.registry,
		Rules:        c.rules,
		JobRepo:      c.jobRepo,
		HistoryRepo:  c.historyRepo,
		LockRepo:     c.lockRepo,
		TxManager:    c.txManager,
		Authz:        c.authz,
		Notification: c.notification,
		Archive:      c.archive,
		Escalations:  c.escalations,
		Metrics:      c.metrics,
		LockTTL:      c.config.LockTTL,
	})

	return nil
}

// GetUseCase returns the workflow use case
func (c *Container) GetUseCase() workflowusecase.UseCase {
	return c.useCase
}

// GetRegistry returns the phase registry
func (c *Container) GetRegistry() *phase.Registry {
	return c.registry
}

// GetRuleEngine returns the rule engine
func (c *Container) GetRuleEngine() *rule.Engine {
	return c.rules
}

// GetDefinitionHolder returns the workflow definition holder. Reloading
// swaps the active definition; a running container keeps the snapshot it
// was built with.
func (c *Container) GetDefinitionHolder() *workflow.Holder {
	return c.definition
}

// GetEscalationMonitor returns the escalation monitor
func (c *Container) GetEscalationMonitor() *service.EscalationMonitor {
	return c.escalations
}

// GetMetricsService returns the metrics service
func (c *Container) GetMetricsService() *service.MetricsService {
	return c.metrics
}

// GetHistoryRepository returns the history repository
func (c *Container) GetHistoryRepository() repository.HistoryRepository {
	return c.historyRepo
}

// OutputWriter returns the configured output writer
func (c *Container) OutputWriter() io.Writer {
	return c.config.OutputWriter
}

// Close stops background services and closes the database
func (c *Container) Close() error {
	if c.escalations != nil {
		c.escalations.Stop()
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
