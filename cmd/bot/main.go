package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/garage-discordbot/internal/application"
	"github.com/eugenenazirov/garage-discordbot/internal/bot"
	"github.com/eugenenazirov/garage-discordbot/internal/config"
	"github.com/eugenenazirov/garage-discordbot/internal/logging"
)

var signalNotify = signal.Notify

type cli struct {
	app *kingpin.Application

	configFile *string
	envFile    *string

	run            *kingpin.CmdClause
	logConfig      *string
	host           *string
	port           *string
	rateLimitRPS   *float64
	rateLimitBurst *int

	resolve     *kingpin.CmdClause
	resolveFile *string
}

func newCLI() *cli {
	app := kingpin.New("garage-discordbot", "Discord bot with a status API and token-resolved YAML configuration")
	c := &cli{app: app}

	c.configFile = app.Flag("config", "Path to YAML configuration file").String()
	c.envFile = app.Flag("env-file", "Path to a .env file loaded into the environment").Default(".env").String()

	c.run = app.Command("run", "Run the Discord bot and its status API").Default()
	c.logConfig = c.run.Flag("log-config", "Path to the YAML logging document").String()
	c.host = c.run.Flag("host", "Interface the status API binds to").String()
	c.port = c.run.Flag("port", "Port exposed by the status API").String()
	c.rateLimitRPS = c.run.Flag("rate-limit-rps", "Status API requests per second (set 0 to disable)").Default("-1").Float64()
	c.rateLimitBurst = c.run.Flag("rate-limit-burst", "Burst capacity for the status API limiter (set 0 to disable)").Default("-1").Int()

	c.resolve = app.Command("resolve", "Resolve @env, @format and @math tokens in a YAML file and print the result")
	c.resolveFile = c.resolve.Arg("file", "YAML file to resolve").Required().ExistingFile()

	return c
}

// overrides converts parsed run flags into config overrides. Unset numeric
// flags keep their -1 sentinel and are left out.
func (c *cli) overrides() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile: *c.configFile,
		EnvFile:    *c.envFile,
	}
	if *c.logConfig != "" {
		overrides.LogConfigFile = c.logConfig
	}
	if *c.host != "" {
		overrides.Host = c.host
	}
	if *c.port != "" {
		overrides.Port = c.port
	}
	if *c.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = c.rateLimitRPS
	}
	if *c.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = c.rateLimitBurst
	}
	return overrides
}

func main() {
	c := newCLI()
	command := kingpin.MustParse(c.app.Parse(os.Args[1:]))

	switch command {
	case c.resolve.FullCommand():
		c.app.FatalIfError(runResolve(*c.resolveFile, *c.envFile, os.Stdout), "resolve")
	default:
		runBot(c)
	}
}

// runResolve prints path as YAML with every token resolved.
func runResolve(path, envFile string, out io.Writer) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	doc, err := config.ReadDocument(path)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode resolved document: %w", err)
	}
	return enc.Close()
}

func runBot(c *cli) {
	cfg, err := config.Load(c.overrides())
	c.app.FatalIfError(err, "load configuration")

	logger := newLogger(cfg.LogConfigFile)
	defer func() {
		_ = logger.Sync()
	}()

	session, err := bot.NewSession(cfg.BotToken)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}

	app, err := application.New(cfg, logger, session)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Error("failed to start", zap.Error(err))
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		_ = app.Shutdown(ctx)
		cancel()
		_ = logger.Sync()
		os.Exit(1)
	}

	shutdown(app, cfg.ShutdownGracePeriod, logger)
}

// newLogger builds the logger from the logging document, falling back to the
// default settings when the document cannot be loaded.
func newLogger(path string) *zap.Logger {
	logger, err := logging.FromFile(path)
	if err == nil {
		return logger
	}

	logger, fallbackErr := logging.New(logging.Default())
	if fallbackErr != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", fallbackErr))
	}
	logger.Warn("using default logging settings", zap.String("path", path), zap.Error(err))
	return logger
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdown(target shutdowner, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := target.Shutdown(ctx); err != nil {
		logger.Warn("shutdown finished with errors", zap.Error(err))
		return
	}
	logger.Info("shutdown complete")
}
