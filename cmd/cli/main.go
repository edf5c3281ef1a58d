package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/paint-rewards/internal/config"
	"github.com/nimasrn/paint-rewards/internal/model"
	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/nimasrn/paint-rewards/pkg/pg"
)

// main.go migrate [--dir=./migrations]
// main.go token --account=42 --role=Painter [--ttl=24h]
func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
	}

	cmd := "migrate"
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "--") {
		cmd = os.Args[1]
	}

	switch cmd {
	case "migrate":
		migrate()
	case "token":
		if err := mintToken(); err != nil {
			logger.Error("token: failed to mint", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("unknown command", "command", cmd)
		os.Exit(2)
	}
}

func migrate() {
	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	if err := pg.Migrate(pgConf, getMigrationPath()); err != nil {
		logger.Error("migration: error running migrations", "error", err)
	}
}

func mintToken() error {
	accountID, err := strconv.ParseInt(argValue("account"), 10, 64)
	if err != nil || accountID <= 0 {
		return fmt.Errorf("--account must be a positive id")
	}
	role := model.Role(argValue("role"))
	if !role.Valid() {
		return fmt.Errorf("--role %q is not a known role", role)
	}
	ttl := 24 * time.Hour
	if v := argValue("ttl"); v != "" {
		if ttl, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("--ttl: %w", err)
		}
	}
	if config.Get().JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	token, err := xhttp.NewJWTVerifier(config.Get().JWTSecret).Sign(xhttp.Actor{AccountID: accountID, Role: string(role)}, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func argValue(name string) string {
	prefix := "--" + name + "="
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			return strings.TrimPrefix(v, prefix)
		}
	}
	return ""
}

func getEnvPath() string {
	if p := argValue("env"); p != "" {
		if _, err := os.Stat(p); err != nil {
			logger.Error("failed to open the passed env file, got error" + err.Error())
			return ""
		}
		return p
	}
	if _, err := os.Stat(".env"); err != nil {
		return ""
	}
	return ".env"
}

// getMigrationPath returns "" when no directory is given, which selects the
// migrations embedded in pkg/pg.
func getMigrationPath() string {
	p := argValue("dir")
	if p == "" {
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		logger.Error("failed to open the migrations dir, got error" + err.Error())
		return ""
	}
	return p
}
