package db

import (
	"fmt"
	"strings"

	"loyaltyhub/pkg/config"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// Dialect picks the gorm dialector from DATABASE.TYPE. An explicit
// DATABASE.DSN wins over the discrete host/port/user fields.
func Dialect(cfg *config.Config) (gorm.Dialector, error) {
	dbCfg := cfg.Database
	switch strings.ToLower(strings.TrimSpace(dbCfg.Type)) {
	case DialectPostgres, "postgresql":
		dsn := dbCfg.DSN
		if dsn == "" || dbCfg.Host != "" {
			dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
				dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.DBNAME, dbCfg.SSLMode, dbCfg.Timezone)
		}
		return postgres.Open(dsn), nil
	case DialectMySQL:
		dsn := dbCfg.DSN
		if dsn == "" || dbCfg.Host != "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				dbCfg.User, dbCfg.Password, dbCfg.Host, dbCfg.Port, dbCfg.DBNAME)
		}
		return mysql.Open(dsn), nil
	case DialectSQLite, "":
		dsn := dbCfg.DSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("db: unsupported dialect %q", dbCfg.Type)
	}
}
