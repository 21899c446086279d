package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/salon-live-queue/internal/config"
)

// DSN builds the MySQL data source name for cfg.  DATETIME columns are
// parsed into time.Time in UTC; wall-clock booking times are interpreted
// in the shop zone later, never by the driver.
func DSN(cfg config.Config) string {
	dc := mysql.NewConfig()
	dc.User = cfg.DBUser
	dc.Passwd = cfg.DBPass
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	dc.DBName = cfg.DBName
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.Timeout = 5 * time.Second
	dc.ReadTimeout = 10 * time.Second
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}

// Open connects to MySQL and verifies the connection.  The live queue
// only reads, so the pool is sized for many short concurrent queries from
// shop rooms.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}
