// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorse-io/playlist/common/log"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	MySQLPrefix      = "mysql://"
	PostgresPrefix   = "postgres://"
	PostgreSQLPrefix = "postgresql://"
	SQLitePrefix     = "sqlite://"
)

// IsDatabase reports whether path is a database DSN.
func IsDatabase(path string) bool {
	return strings.HasPrefix(path, MySQLPrefix) ||
		strings.HasPrefix(path, PostgresPrefix) ||
		strings.HasPrefix(path, PostgreSQLPrefix) ||
		strings.HasPrefix(path, SQLitePrefix)
}

func newGORMConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
	}
}

// OpenDatabase connects to a database DSN through otelsql.
func OpenDatabase(path string) (*gorm.DB, error) {
	var (
		client    *sql.DB
		dialector gorm.Dialector
		err       error
	)
	spanOptions := otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true})
	if strings.HasPrefix(path, MySQLPrefix) {
		name := path[len(MySQLPrefix):]
		if client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(attribute.String("db.system", "mysql")), spanOptions); err != nil {
			return nil, errors.Trace(err)
		}
		dialector = mysql.New(mysql.Config{Conn: client})
	} else if strings.HasPrefix(path, PostgresPrefix) || strings.HasPrefix(path, PostgreSQLPrefix) {
		if client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(attribute.String("db.system", "postgresql")), spanOptions); err != nil {
			return nil, errors.Trace(err)
		}
		dialector = postgres.New(postgres.Config{Conn: client})
	} else if strings.HasPrefix(path, SQLitePrefix) {
		name := path[len(SQLitePrefix):]
		if client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(attribute.String("db.system", "sqlite")), spanOptions); err != nil {
			return nil, errors.Trace(err)
		}
		dialector = sqlite.Dialector{Conn: client}
	} else {
		return nil, errors.NotSupportedf("database %s", log.RedactDBURL(path))
	}
	db, err := gorm.Open(dialector, newGORMConfig())
	if err != nil {
		return nil, errors.Trace(err)
	}
	return db, nil
}

// LoadSQL reads (playlist, track) rows from a database table.
func LoadSQL(ctx context.Context, path string, opts Options) (*Builder, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	client, err := db.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Logger().Warn("failed to close database", zap.Error(err))
		}
	}()

	start := time.Now()
	rows, err := db.WithContext(ctx).
		Table(opts.Table).
		Select(opts.PlaylistColumn, opts.TrackColumn).
		Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	builder := NewBuilder()
	for rows.Next() {
		var playlist, track sql.NullString
		if err = rows.Scan(&playlist, &track); err != nil {
			return nil, errors.Trace(err)
		}
		if !playlist.Valid || !track.Valid {
			builder.Skip()
			continue
		}
		builder.Add(playlist.String, track.String)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Debug("load playlists from database",
		zap.String("database", log.RedactDBURL(path)),
		zap.Int("rows", builder.rows),
		zap.Duration("duration", time.Since(start)))
	return builder, nil
}
