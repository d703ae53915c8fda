package storage

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Destination defaults for the materialized summary table.
const (
	DefaultDatabase = "postgres"
	DefaultSchema   = "public"
	DefaultTable    = "user_experiment_stats"
	DefaultPort     = 5432
)

// ConnParams are the destination connection parameters handed to a run.
//
// Host/Port/Username/Password/Database are used by network backends
// (postgres, mssql). Path is used by file backends (sqlite).
type ConnParams struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"-"`
	Database string `json:"database" yaml:"database"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Target returns a string identifying the destination without credentials.
// Two runs writing to the same Target race on the same table.
func (p ConnParams) Target(kind string) string {
	if kind == "sqlite" {
		return kind + ":" + p.Path
	}
	db := p.Database
	if db == "" {
		db = DefaultDatabase
	}
	return fmt.Sprintf("%s://%s/%s", kind, net.JoinHostPort(p.Host, strconv.Itoa(p.Port)), db)
}

// BuildDSN renders ConnParams into a connection string for the given backend
// kind.
//
// Edge cases:
//   - Database defaults to DefaultDatabase.
//   - Port defaults to DefaultPort for postgres and 1433 for mssql.
//   - Credentials are URL-escaped, so passwords may contain '@', ':' or '/'.
func BuildDSN(kind string, p ConnParams) (string, error) {
	db := p.Database
	if db == "" {
		db = DefaultDatabase
	}

	switch kind {
	case "postgres":
		if strings.TrimSpace(p.Host) == "" {
			return "", fmt.Errorf("postgres: host is required")
		}
		port := p.Port
		if port == 0 {
			port = DefaultPort
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(p.Username, p.Password),
			Host:   net.JoinHostPort(p.Host, strconv.Itoa(port)),
			Path:   "/" + db,
		}
		return u.String(), nil

	case "mssql":
		if strings.TrimSpace(p.Host) == "" {
			return "", fmt.Errorf("mssql: host is required")
		}
		port := p.Port
		if port == 0 {
			port = 1433
		}
		q := url.Values{}
		q.Set("database", db)
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(p.Username, p.Password),
			Host:     net.JoinHostPort(p.Host, strconv.Itoa(port)),
			RawQuery: q.Encode(),
		}
		return u.String(), nil

	case "sqlite":
		if strings.TrimSpace(p.Path) == "" {
			return "", fmt.Errorf("sqlite: path is required")
		}
		return p.Path, nil

	default:
		return "", fmt.Errorf("unsupported storage.kind=%s", kind)
	}
}
