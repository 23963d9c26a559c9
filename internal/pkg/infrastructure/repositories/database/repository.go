package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ConnectorConfig struct {
	Host     string
	Port     string
	Username string
	DbName   string
	Password string
	SslMode  string
}

func LoadConfigFromEnv(ctx context.Context) ConnectorConfig {
	return ConnectorConfig{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     envOrDefault("POSTGRES_PORT", "5432"),
		Username: os.Getenv("POSTGRES_USER"),
		DbName:   envOrDefault("POSTGRES_DBNAME", "ecoenergy"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		SslMode:  envOrDefault("POSTGRES_SSLMODE", "disable"),
	}
}

func envOrDefault(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

type ConnectorFunc func() (*gorm.DB, zerolog.Logger, error)

func NewSQLiteConnector(ctx context.Context) ConnectorFunc {
	log := logging.GetFromContext(ctx)

	return func() (*gorm.DB, zerolog.Logger, error) {
		db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
			Logger:          logger.Default.LogMode(logger.Silent),
			CreateBatchSize: 1000,
			NowFunc:         nowUTC,
		})

		if err == nil {
			// the pragma is per connection, so the pool must never grow beyond one
			sqldb, _ := db.DB()
			sqldb.SetMaxOpenConns(1)
			err = db.Exec("PRAGMA foreign_keys = ON").Error
		}

		return db, log, err
	}
}

func NewPostgreSQLConnector(ctx context.Context, cfg ConnectorConfig) ConnectorFunc {
	dbURI := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s password=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.DbName, cfg.SslMode, cfg.Password)

	log := logging.GetFromContext(ctx)

	return func() (*gorm.DB, zerolog.Logger, error) {
		sublogger := log.With().Str("host", cfg.Host).Str("database", cfg.DbName).Logger()

		const maxAttempts int = 5

		for attempt := 1; ; attempt++ {
			sublogger.Info().Msg("connecting to database host")

			db, err := gorm.Open(postgres.Open(dbURI), &gorm.Config{
				Logger: logger.New(
					&sublogger,
					logger.Config{
						SlowThreshold:             time.Second,
						LogLevel:                  logger.Warn,
						IgnoreRecordNotFoundError: true,
						Colorful:                  false,
					},
				),
				NowFunc: nowUTC,
			})
			if err == nil {
				return db, sublogger, nil
			}

			if attempt == maxAttempts {
				return nil, sublogger, fmt.Errorf("failed to connect to database after %d attempts: %w", attempt, err)
			}

			sublogger.Error().Err(err).Msg("failed to connect to database")
			time.Sleep(3 * time.Second)
		}
	}
}

// Open connects using the supplied connector and migrates the schema.
func Open(connect ConnectorFunc) (*gorm.DB, error) {
	db, log, err := connect()
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&Organization{}, &Category{}, &Product{}, &AlertRule{}, &ProductAlertRule{},
		&Zone{}, &Device{}, &Measurement{}, &AlertEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Debug().Msg("database schema migrated")

	return db, nil
}

// nowUTC keeps generated timestamps in one zone so that they order the same
// as timestamps supplied by clients.
func nowUTC() time.Time {
	return time.Now().UTC()
}
