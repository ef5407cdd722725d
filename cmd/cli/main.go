package main

import (
	"os"
	"strings"

	"github.com/oneclick/wa-gateway/internal/config"
	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/oneclick/wa-gateway/pkg/pg"
)

// Applies goose migrations against the write database.
//
//	cli --env=.env --dir=./migrations
func main() {
	envPath := argPath("--env=", ".env")
	if err := config.Load(envPath); err != nil {
		logger.Error("failed to load config", "error", err)
	}

	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	if err := pg.Migrate(pgConf, argPath("--dir=", "./migrations")); err != nil {
		logger.Error("migration: error running migrations", "error", err)
	}
}

// argPath returns the value of a --key=path argument, or fallback when
// the flag is absent. Either way the path must exist.
func argPath(prefix, fallback string) string {
	path := fallback
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			path = strings.TrimPrefix(v, prefix)
			break
		}
	}
	if _, err := os.Stat(path); err != nil {
		logger.Error("path not accessible", "path", path, "error", err)
		return ""
	}
	return path
}
