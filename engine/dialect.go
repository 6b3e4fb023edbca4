package engine

import "gorm.io/gorm"

// WithForeignKeysRelaxed runs fn inside a scoped guard that relaxes
// foreign-key enforcement for the duration of fn, per the DBMS dialect
// rules in the concurrency model: SQLite reads its `foreign_keys`
// pragma and, if it is on, turns it off (fn runs on tx as given; no
// EXCLUSIVE transaction is begun); MySQL sets `foreign_key_checks = 0`
// for the session; every other dialect is a no-op (its driver is
// assumed to offer transaction-scoped deferred constraints, e.g.
// Postgres). Enforcement is restored on every exit path. Branches on tx.Dialector().Name() rather than importing
// driver-specific packages, since the engine only ever receives an
// already-opened *gorm.DB from the host.
func WithForeignKeysRelaxed(tx *gorm.DB, fn func(*gorm.DB) error) error {
	switch tx.Dialector().Name() {
	case "sqlite":
		return withSQLiteForeignKeysRelaxed(tx, fn)
	case "mysql":
		return withMySQLForeignKeysRelaxed(tx, fn)
	default:
		return fn(tx)
	}
}

func withSQLiteForeignKeysRelaxed(tx *gorm.DB, fn func(*gorm.DB) error) error {
	var enabled int
	if err := tx.Raw("PRAGMA foreign_keys").Scan(&enabled).Error; err != nil {
		return err
	}
	if enabled == 1 {
		if err := tx.Exec("PRAGMA foreign_keys = OFF").Error; err != nil {
			return err
		}
		defer tx.Exec("PRAGMA foreign_keys = ON")
	}
	return fn(tx)
}

func withMySQLForeignKeysRelaxed(tx *gorm.DB, fn func(*gorm.DB) error) error {
	if err := tx.Exec("SET foreign_key_checks = 0").Error; err != nil {
		return err
	}
	defer tx.Exec("SET foreign_key_checks = 1")
	return fn(tx)
}
