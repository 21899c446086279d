package database

import (
	"strings"
	"testing"

	"github.com/iliyamo/salon-live-queue/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.Config{DBUser: "salon", DBPass: "s3cret", DBHost: "db", DBPort: "3306", DBName: "salon"})

	for _, want := range []string{"salon:s3cret@tcp(db:3306)/salon", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("expected %q in %q", want, dsn)
		}
	}
}

func TestDSNWithoutPassword(t *testing.T) {
	dsn := DSN(config.Config{DBUser: "salon", DBHost: "db", DBPort: "3306", DBName: "salon"})
	if !strings.HasPrefix(dsn, "salon@tcp(db:3306)/salon") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}
