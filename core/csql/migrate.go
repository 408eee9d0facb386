package csql

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/apae-gestao/apae/core/logger"
)

// SchemaPlaceholder is replaced with the database schema in every migration
const SchemaPlaceholder = "{{schema}}"

// Migrate applies all *.sql files found at the root of migrations, in lexical
// order. Every file is applied once; applied names are tracked in the
// "_migration_" table of the schema. Each migration runs in its own transaction.
func (db *DB) Migrate(migrations fs.FS) error {
	rlog := logger.Default()
	_, err := db.Exec(`CREATE table IF NOT EXISTS ` + db.Table("_migration_") + `
(name varchar NOT NULL,
applied_at timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(name)
);`)
	if err != nil {
		return fmt.Errorf("cannot create migration table: %w", err)
	}

	names, err := migrationNames(migrations)
	if err != nil {
		return err
	}

	for _, name := range names {
		var applied string
		err := db.QueryRow(`SELECT name FROM `+db.Table("_migration_")+` WHERE name=$1;`, name).Scan(&applied)
		if err == nil {
			continue
		}
		if err != ErrNoRows {
			return fmt.Errorf("cannot read migration state: %w", err)
		}

		body, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("cannot read migration %s: %w", name, err)
		}
		query := strings.ReplaceAll(string(body), SchemaPlaceholder, db.Schema)

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err = tx.Exec(query); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
		if _, err = tx.Exec(`INSERT INTO `+db.Table("_migration_")+`(name) VALUES($1);`, name); err != nil {
			tx.Rollback()
			return fmt.Errorf("cannot record migration %s: %w", name, err)
		}
		if err = tx.Commit(); err != nil {
			return err
		}
		rlog.Infoln("applied migration", name)
	}
	return nil
}

func migrationNames(migrations fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("cannot read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
