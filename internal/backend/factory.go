package backend

import (
	"fmt"
	"log/slog"

	"contas/internal/amqp"
	"contas/internal/core"
	"contas/internal/ledger/memory"
	"contas/internal/services"
	"contas/internal/storage"
)

// Config carries the settings the factory needs to build a backend.
type Config struct {
	Type         Type
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// Factory creates backend instances from configuration.
type Factory interface {
	CreateBackend(config Config) (*Result, error)
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	publisher, cleanup := f.initPublisher(config, repo.Close)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	return &Result{
		Backend:   repo,
		Publisher: publisher,
		Cleanup:   cleanup,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	store := memory.New(demoHousehold()...)

	publisher, cleanup := f.initPublisher(config, nil)

	f.logger.Info("Initialized memory backend", "amqp_enabled", publisher != nil)

	return &Result{
		Backend:   store,
		Publisher: publisher,
		Cleanup:   cleanup,
	}, nil
}

// initPublisher dials the broker when configured. A broker failure is
// not fatal; allocations still commit locally without the event feed.
func (f *DefaultFactory) initPublisher(config Config, base CleanupFunc) (services.EventPublisher, CleanupFunc) {
	if config.AMQPURL == "" {
		return nil, base
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil, base
	}

	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	cleanup := func() error {
		cerr := client.Close()
		if base != nil {
			if berr := base(); berr != nil {
				return berr
			}
		}
		return cerr
	}
	return client, cleanup
}

// demoHousehold seeds the memory backend with a small household so the
// API is explorable without a database.
func demoHousehold() []core.Account {
	return []core.Account{
		{
			ID:               "acc-checking",
			Name:             "Household Checking",
			Type:             core.Checking,
			TotalBalance:     core.DecPtr("2500.00"),
			AvailableBalance: core.DecPtr("2100.00"),
			AllocatedBalance: core.DecPtr("400.00"),
			IsPersonal:       false,
		},
		{
			ID:               "card-blue",
			Name:             "Blue Card",
			Type:             core.Credit,
			CreditLimit:      core.DecPtr("2000.00"),
			AllocatedBalance: core.DecPtr("400.00"),
			TotalBalance:     core.DecPtr("300.00"),
			DueDay:           15,
			ClosingDay:       7,
			LinkedAccountID:  "acc-checking",
			IsPersonal:       true,
			AccountOwnerID:   "owner-1",
		},
	}
}
