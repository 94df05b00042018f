package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/billsplit-floor/internal/config"
)

// DSN builds the driver connection string for the layout mirror database.
// Times are parsed into time.Time in UTC and multi statements are allowed
// for migrations.
func DSN(cfg config.Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.MultiStatements = true
	_ = mc.Apply(mysql.Charset("utf8mb4", ""))
	return mc.FormatDSN()
}

// Open connects to the configured MySQL database, applies the pool limits
// and pings it.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if !cfg.MySQLEnabled() {
		return nil, fmt.Errorf("open mysql: DB_HOST and DB_NAME are required")
	}
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql %s: %w", cfg.DBHost, err)
	}
	return db, nil
}
