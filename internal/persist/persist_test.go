package persist

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/megameal/fireflies/internal/config"
)

func TestSampleArgsMatchPlaceholders(t *testing.T) {
	s := TelemetrySample{
		SampledAt:     time.Unix(100, 0),
		Tick:          42,
		LightsActive:  7,
		TickDuration:  1500 * time.Microsecond,
		CapacitySkips: 3,
		Exhausted:     2,
		Despawned:     5,
	}
	args := s.args("run-1")
	if got, want := len(args), strings.Count(insertTelemetrySQL, "$"); got != want {
		t.Fatalf("%d args for %d placeholders", got, want)
	}
	if args[0] != "run-1" || args[2] != int64(42) || args[3] != 7 {
		t.Errorf("leading args = %v", args[:4])
	}
	if args[13] != int64(1500) || args[14] != int64(3) || args[18] != 2 || args[19] != 5 {
		t.Errorf("trailing args = %v", args[13:])
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, migrationsDir+"/*.sql")
	if err != nil || len(files) == 0 {
		t.Fatalf("embedded migrations = %v, %v", files, err)
	}
	raw, err := fs.ReadFile(migrations, files[0])
	if err != nil {
		t.Fatal(err)
	}
	sql := string(raw)
	for _, want := range []string{"-- +goose Up", "-- +goose Down", "lighting_telemetry"} {
		if !strings.Contains(sql, want) {
			t.Errorf("%s missing %q", files[0], want)
		}
	}

	cols := insertTelemetrySQL[strings.Index(insertTelemetrySQL, "(")+1 : strings.Index(insertTelemetrySQL, ")")]
	for _, col := range strings.Split(cols, ",") {
		if col = strings.TrimSpace(col); !strings.Contains(sql, col+" ") {
			t.Errorf("insert column %q not created by %s", col, files[0])
		}
	}
}

func TestPoolConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		DSN:             "postgres://u:p@db.example:5432/fireflies?sslmode=disable",
		MaxOpenConns:    4,
		MaxIdleConns:    9,
		ConnMaxLifetime: time.Minute,
	}
	pc, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if pc.MaxConns != 4 || pc.MinConns != 4 || pc.MaxConnLifetime != time.Minute {
		t.Errorf("max=%d min=%d life=%v", pc.MaxConns, pc.MinConns, pc.MaxConnLifetime)
	}
	if pc.ConnConfig.Host != "db.example" || pc.ConnConfig.Database != "fireflies" {
		t.Errorf("host=%q db=%q", pc.ConnConfig.Host, pc.ConnConfig.Database)
	}

	cfg.MaxOpenConns = 0
	if pc, _ := poolConfig(cfg); pc.MaxConns != 1 || pc.MinConns != 0 {
		t.Errorf("zero open conns: max=%d min=%d", pc.MaxConns, pc.MinConns)
	}

	if _, err := poolConfig(config.DatabaseConfig{DSN: "postgres://u:p@host/%zz"}); err == nil {
		t.Error("bad dsn accepted")
	}
}
