package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/application"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/catalog"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/devicemanagement"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/events"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/thresholds"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	catalogrepo "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database/catalog"
	dm "github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database/devicemanagement"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database/measurements"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/router"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/presentation/api"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/presentation/gui"
)

const serviceName string = "iot-energy-mgmt"

type flagType int
type flagMap map[flagType]string

const (
	listenAddress flagType = iota
	servicePort

	configurationFile
	devicesFile

	dbHost
	dbUser
	dbPassword
	dbPort
	dbName
	dbSSLMode

	thresholdCacheTTL

	amqpURL
	amqpExchange
)

func defaultFlags() flagMap {
	return flagMap{
		listenAddress: "0.0.0.0",
		servicePort:   "8080",

		configurationFile: "/opt/diwise/config/config.yaml",
		devicesFile:       "/opt/diwise/config/devices.csv",

		dbHost:     "",
		dbUser:     "",
		dbPassword: "",
		dbPort:     "5432",
		dbName:     "ecoenergy",
		dbSSLMode:  "disable",

		thresholdCacheTTL: "0",

		amqpURL:      "",
		amqpExchange: "iot-energy-mgmt",
	}
}

func main() {
	envErr := godotenv.Load()

	serviceVersion := version()

	ctx, logger := logging.NewLogger(context.Background(), serviceName, serviceVersion)
	logger.Info().Msg("starting up ...")

	if envErr != nil {
		logger.Debug().Msg("no .env file loaded, using environment variables")
	}

	flags := parseExternalConfig(ctx, defaultFlags())

	cleanup, err := tracing.Init(ctx, logger, serviceName, serviceVersion)
	exitIf(err, logger, "failed to init tracing")
	defer cleanup()

	cfgFile, err := os.Open(flags[configurationFile])
	exitIf(err, logger, "could not open configuration file")

	cfg, err := application.LoadConfiguration(cfgFile)
	cfgFile.Close()
	exitIf(err, logger, "could not load configuration")

	db, err := database.Open(newConnector(ctx, flags))
	exitIf(err, logger, "could not create or connect to database")

	var devices io.Reader
	if f, err := os.Open(flags[devicesFile]); err == nil {
		defer f.Close()
		devices = f
	} else {
		logger.Warn().Err(err).Msg("no devices file, skipping device seed")
	}

	r, shutdown, err := initialize(ctx, flags, db, cfg, devices)
	exitIf(err, logger, "failed to initialize service")
	defer shutdown()

	addr := flags[listenAddress] + ":" + flags[servicePort]
	logger.Info().Str("addr", addr).Msg("starting to listen for connections")

	err = http.ListenAndServe(addr, r)
	exitIf(err, logger, "failed to start request router")
}

func newConnector(ctx context.Context, flags flagMap) database.ConnectorFunc {
	if flags[dbHost] == "" {
		logger := logging.GetFromContext(ctx)
		logger.Warn().Msg("no database host configured, using an in-memory database")
		return database.NewSQLiteConnector(ctx)
	}

	return database.NewPostgreSQLConnector(ctx, database.ConnectorConfig{
		Host:     flags[dbHost],
		Port:     flags[dbPort],
		Username: flags[dbUser],
		DbName:   flags[dbName],
		Password: flags[dbPassword],
		SslMode:  flags[dbSSLMode],
	})
}

func initialize(ctx context.Context, flags flagMap, db *gorm.DB, cfg *application.Config, devices io.Reader) (*chi.Mux, func(), error) {
	log := logging.GetFromContext(ctx)

	ttl, err := time.ParseDuration(flags[thresholdCacheTTL])
	if err != nil {
		log.Warn().Str("ttl", flags[thresholdCacheTTL]).Msg("invalid threshold cache ttl, entries will not expire")
		ttl = 0
	}

	catalogRepo := catalogrepo.NewCatalogRepository(db)
	catalogSvc := catalog.New(catalogRepo, thresholds.NewResolver(catalogRepo, ttl))

	err = catalogSvc.Seed(ctx, cfg.Catalog)
	if err != nil {
		return nil, nil, err
	}

	sender, shutdown, err := newSender(ctx, flags, cfg)
	if err != nil {
		return nil, nil, err
	}

	svc := devicemanagement.New(
		dm.NewDeviceRepository(db),
		measurements.NewMeasurementRepository(db),
		catalogRepo,
		sender,
		cfg.Panel,
	)

	if devices != nil {
		err = svc.Seed(ctx, devices)
		if err != nil {
			shutdown()
			return nil, nil, err
		}
	}

	r := api.RegisterHandlers(ctx, router.New(serviceName), catalogSvc, svc)
	gui.RegisterHandlers(ctx, r, svc)

	return r, shutdown, nil
}

func newSender(ctx context.Context, flags flagMap, cfg *application.Config) (events.Sender, func(), error) {
	sender := events.New(&cfg.Config)

	if flags[amqpURL] == "" {
		return sender, func() {}, nil
	}

	amqpSender, closeAMQP, err := events.NewAMQPSender(ctx, events.AMQPConfig{
		URL:      flags[amqpURL],
		Exchange: flags[amqpExchange],
	})
	if err != nil {
		return nil, nil, err
	}

	return events.Combine(sender, amqpSender), closeAMQP, nil
}

func parseExternalConfig(ctx context.Context, flags flagMap) flagMap {
	// Allow environment variables to override certain defaults
	envOrDef := func(name, def string) string {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		return def
	}

	flags[listenAddress] = envOrDef("LISTEN_ADDRESS", flags[listenAddress])
	flags[servicePort] = envOrDef("SERVICE_PORT", flags[servicePort])

	flags[configurationFile] = envOrDef("CONFIG_FILE", flags[configurationFile])
	flags[devicesFile] = envOrDef("DEVICES_FILE", flags[devicesFile])

	flags[dbHost] = envOrDef("POSTGRES_HOST", flags[dbHost])
	flags[dbPort] = envOrDef("POSTGRES_PORT", flags[dbPort])
	flags[dbName] = envOrDef("POSTGRES_DBNAME", flags[dbName])
	flags[dbUser] = envOrDef("POSTGRES_USER", flags[dbUser])
	flags[dbPassword] = envOrDef("POSTGRES_PASSWORD", flags[dbPassword])
	flags[dbSSLMode] = envOrDef("POSTGRES_SSLMODE", flags[dbSSLMode])

	flags[thresholdCacheTTL] = envOrDef("THRESHOLD_CACHE_TTL", flags[thresholdCacheTTL])

	flags[amqpURL] = envOrDef("RABBITMQ_URL", flags[amqpURL])
	flags[amqpExchange] = envOrDef("RABBITMQ_EXCHANGE", flags[amqpExchange])

	apply := func(f flagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("config", "energy management configuration file", apply(configurationFile))
	flag.Func("devices", "list of known devices", apply(devicesFile))
	flag.Func("port", "the port to listen on", apply(servicePort))
	flag.Func("ttl", "how long resolved thresholds are remembered, 0 for ever", apply(thresholdCacheTTL))
	flag.Parse()

	logger := logging.GetFromContext(ctx)
	logger.Debug().Str("config", flags[configurationFile]).Str("devices", flags[devicesFile]).Msg("configuration parsed")

	return flags
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	buildSettings := buildInfo.Settings
	infoMap := map[string]string{}
	for _, s := range buildSettings {
		infoMap[s.Key] = s.Value
	}

	sha := infoMap["vcs.revision"]
	if infoMap["vcs.modified"] == "true" {
		sha += "+"
	}

	return strings.TrimSpace(sha)
}

func exitIf(err error, logger zerolog.Logger, msg string) {
	if err != nil {
		logger.Fatal().Err(err).Msg(msg)
	}
}
