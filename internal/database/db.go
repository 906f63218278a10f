package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Options describes the MySQL connection and pool.
type Options struct {
	User, Pass, Host, Port, Name string
	MaxOpenConns                 int
	ConnMaxLifetime              time.Duration
}

// DSN builds the driver DSN.  parseTime=true scans DATE and DATETIME into
// time.Time and loc=UTC keeps them consistent; repositories format dates as
// YYYY-MM-DD.  The session time zone is pinned to UTC as well, so column
// defaults such as CURRENT_TIMESTAMP agree with the UTC cutoffs the
// repositories compare against.
func (o Options) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(o.Host, o.Port)
	cfg.DBName = o.Name
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	PinUTC(cfg)
	return cfg.FormatDSN()
}

// PinUTC makes the driver and the MySQL session agree on UTC.
func PinUTC(cfg *mysql.Config) {
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["time_zone"] = "'+00:00'"
}

// Open connects to MySQL and verifies the connection.
func Open(o Options) (*sql.DB, error) {
	db, err := sql.Open("mysql", o.DSN())
	if err != nil {
		return nil, err
	}

	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 25
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxOpenConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
