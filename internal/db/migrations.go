package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goran-ethernal/ChainHound/internal/logger"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"

	// PrefixPlaceholder is replaced by Migration.Prefix in the migration SQL.
	PrefixPlaceholder = "/*dbprefix*/"
)

// Migration is one SQL migration with a Down section followed by an Up section.
// Handlers sharing a database set Prefix so that each gets its own tables.
type Migration struct {
	ID     string
	SQL    string
	Prefix string
}

// RunMigrations applies every pending migration to db.
func RunMigrations(log *logger.Logger, db *sql.DB, migrations []Migration) error {
	source := &migrate.MemoryMigrationSource{}

	ids := make([]string, 0, len(migrations))
	for _, m := range migrations {
		mig, err := m.parse()
		if err != nil {
			return err
		}

		source.Migrations = append(source.Migrations, mig)
		ids = append(ids, mig.Id)
	}

	// Other handlers on the same file have their own ids in the tracking table.
	set := migrate.MigrationSet{IgnoreUnknown: true}

	applied, err := set.Exec(db, "sqlite3", source, migrate.Up)
	if err != nil {
		return fmt.Errorf("failed to run migrations %s: %w", strings.Join(ids, ", "), err)
	}

	log.Infow("database migrations applied", "applied", applied, "migrations", ids)

	return nil
}

func (m Migration) parse() (*migrate.Migration, error) {
	prefixed := strings.ReplaceAll(m.SQL, PrefixPlaceholder, m.Prefix)

	down, up, found := strings.Cut(prefixed, upMarker)
	if !found {
		return nil, fmt.Errorf("migration %s missing '%s' separator", m.ID, upMarker)
	}

	if idx := strings.Index(down, downMarker); idx != -1 {
		down = down[idx+len(downMarker):]
	}

	return &migrate.Migration{
		Id:   m.Prefix + m.ID,
		Up:   []string{strings.TrimSpace(up)},
		Down: []string{strings.TrimSpace(down)},
	}, nil
}
