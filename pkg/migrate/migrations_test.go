package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/readcycle-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoansMigrationEnforcesActiveLoanRules(t *testing.T) {
	content := readMigration(t, "create_loans")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS loans",
		"idx_loans_active_patron_book",
		"ON loans (patron_id, book_id) WHERE status = 'BORROWED'",
		"idx_loans_active_patron_category",
		"ON loans (patron_id, category) WHERE status = 'BORROWED'",
		"FOREIGN KEY (book_id) REFERENCES books(id) ON DELETE RESTRICT",
		"DROP TABLE IF EXISTS loans",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestBooksMigrationGuardsQuantity(t *testing.T) {
	content := readMigration(t, "create_books")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS books",
		"CHECK (quantity >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_books_title",
		"DROP TABLE IF EXISTS books",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationProducesValidFile(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Loan Notes!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_loan_notes.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("validate created file: %v", err)
	}
}

func TestValidateDirRejectsBrokenLayouts(t *testing.T) {
	cases := []struct {
		name  string
		files map[string]string
	}{
		{name: "empty", files: nil},
		{name: "bad filename", files: map[string]string{"add_loans.sql": "-- +goose Up\n-- +goose Down\n"}},
		{name: "down before up", files: map[string]string{"20260301090000_loans.sql": "-- +goose Down\n-- +goose Up\n"}},
		{name: "missing down", files: map[string]string{"20260301090000_loans.sql": "-- +goose Up\n"}},
		{name: "duplicate version", files: map[string]string{
			"20260301090000_books.sql": "-- +goose Up\n-- +goose Down\n",
			"20260301090000_loans.sql": "-- +goose Up\n-- +goose Down\n",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, body := range tc.files {
				if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
					t.Fatalf("write %s: %v", name, err)
				}
			}
			if err := migrate.ValidateDir(dir); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
