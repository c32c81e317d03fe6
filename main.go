package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	app "github.com/rocketscienceinc/ultimate-tictactoe-backend/internal"
	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/config"
)

const (
	serviceName       = "ultimate-tictactoe"
	defaultConfigFile = "config.yml"
)

// main - loads .env and config.yml, then serves matchmaking and match sessions until a signal arrives.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	conf := initConfig()
	logger := initLogger(os.Stdout, conf)

	logger.Info("starting", "storage", conf.Storage, "port", conf.HTTP.Port)

	if err := app.RunApp(logger, conf); err != nil {
		panic(fmt.Errorf("app run failed: %w", err))
	}
}

// initConfig - .env is optional and may point CONFIG_PATH elsewhere.
func initConfig() *config.Config {
	baseDir, err := os.Getwd()
	if err != nil {
		panic(fmt.Errorf("failed to get current directory: %w", err))
	}

	if err = godotenv.Load(filepath.Join(baseDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Errorf("failed to load .env: %w", err))
	}

	return config.MustLoad(configPath(baseDir, os.Getenv("CONFIG_PATH")))
}

func configPath(baseDir, override string) string {
	switch {
	case override == "":
		return filepath.Join(baseDir, defaultConfigFile)
	case filepath.IsAbs(override):
		return override
	default:
		return filepath.Join(baseDir, override)
	}
}

// initLogger - JSON lines tagged with the service name; unknown levels fall back to info.
func initLogger(out io.Writer, conf *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(conf.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})

	return slog.New(handler).With("service", serviceName)
}
