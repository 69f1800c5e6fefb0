// Package integrationtest provides db helpers used in integration tests.
package integrationtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-petr/unipay/internal/domain"
	"github.com/go-petr/unipay/internal/userrepo"
	"github.com/go-petr/unipay/pkg/configpkg"
	"github.com/go-petr/unipay/pkg/dbpkg"
	"github.com/go-petr/unipay/pkg/randompkg"

	_ "github.com/lib/pq"
)

// ConfigPath is the location of app.env relative to a package directory.
const ConfigPath = "../../configs"

// Config loads the configuration used by integration tests.
func Config(t *testing.T) configpkg.Config {
	t.Helper()

	config, err := configpkg.Load(ConfigPath)
	if err != nil {
		t.Fatalf("configpkg.Load(%q) returned error: %v", ConfigPath, err)
	}

	return config
}

// Flush flushes all db tables without droping.
func Flush(t *testing.T, db *sql.DB) {
	t.Helper()

	if _, err := db.Exec(`TRUNCATE TABLE transactions, wallets, sessions, users CASCADE`); err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}
}

// SetupDB sets up connection with database for testing and then cleans it.
func SetupDB(t *testing.T) *sql.DB {
	t.Helper()

	config := Config(t)

	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	t.Cleanup(func() {
		Flush(t, db)

		if err := db.Close(); err != nil {
			t.Fatalf("db cleanup failed. err: %v", err)
		}
	})

	return db
}

// SetupTX sets up a database transaction to be used in tests.
//
// Once the tests are done it will rollback the transaction.
func SetupTX(t *testing.T) *sql.Tx {
	t.Helper()

	config := Config(t)

	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("db.Begin() failed: %v", err)
	}

	t.Cleanup(func() {
		if err := tx.Rollback(); err != nil {
			t.Fatalf("tx.Rollback() failed: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("db.Close() failed: %v", err)
		}
	})

	return tx
}

// SeedUser inserts a random user.
func SeedUser(t *testing.T, db dbpkg.SQLInterface) domain.User {
	t.Helper()

	user, err := userrepo.NewRepoPGS(db).Create(context.Background(), domain.CreateUserParams{
		Email:          randompkg.Email(),
		HashedPassword: randompkg.String(60),
		FullName:       randompkg.Owner(),
	})
	if err != nil {
		t.Fatalf("SeedUser failed: %v", err)
	}

	return user
}
