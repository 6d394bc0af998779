package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/warp/agenda/config"
)

var configEnvVars = []string{
	"AGENDA_CONFIG",
	"AGENDA_ADDR",
	"AGENDA_DAILY_CAPACITY",
	"AGENDA_CACHE_TTL",
	"AGENDA_STORAGE_DRIVER",
	"AGENDA_CORS_ORIGINS",
	"AGENDA_POSTGRES_DSN",
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load("")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DailyCapacity, convey.ShouldEqual, 3)
				convey.So(cfg.CacheTTL, convey.ShouldEqual, 5*time.Second)
				convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.ReservationsTable, convey.ShouldEqual, "agenda")
				convey.So(cfg.EmployeesTable, convey.ShouldEqual, "empleados")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("AGENDA_ADDR", ":9000")
			_ = os.Setenv("AGENDA_DAILY_CAPACITY", "5")
			_ = os.Setenv("AGENDA_CACHE_TTL", "0s")
			_ = os.Setenv("AGENDA_STORAGE_DRIVER", "Memory")
			_ = os.Setenv("AGENDA_CORS_ORIGINS", "https://a.example,https://b.example")

			cfg, err := config.Load("")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9000")
				convey.So(cfg.DailyCapacity, convey.ShouldEqual, 5)
				convey.So(cfg.CacheTTL, convey.ShouldEqual, time.Duration(0))
				convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})
		})

		convey.Convey("When AGENDA_CORS_ORIGINS has spaces and empty entries", func() {
			_ = os.Setenv("AGENDA_CORS_ORIGINS", " https://a.example , ,https://b.example,")

			cfg, err := config.Load("")

			convey.Convey("Then each origin is trimmed and blanks are dropped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})
		})

		convey.Convey("When loading config with a YAML file named by AGENDA_CONFIG", func() {
			tmpFile := createTempConfigFile(t, "agenda.yaml", `
addr: ":9090"
daily_capacity: 4
cache_ttl: 10s
storage_driver: memory
`)
			_ = os.Setenv("AGENDA_CONFIG", tmpFile)
			_ = os.Setenv("AGENDA_DAILY_CAPACITY", "2") // env wins over the file

			cfg, err := config.Load("")

			convey.Convey("Then file values apply and env overrides them", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DailyCapacity, convey.ShouldEqual, 2)
				convey.So(cfg.CacheTTL, convey.ShouldEqual, 10*time.Second)
			})
		})

		convey.Convey("When loading config with a TOML file path", func() {
			tmpFile := createTempConfigFile(t, "agenda.toml", `
addr = ":7070"
daily_capacity = 6
storage_driver = "postgres"
postgres_dsn = "postgres://agenda@localhost/agenda"
`)

			cfg, err := config.Load(tmpFile)

			convey.Convey("Then it should parse TOML", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.DailyCapacity, convey.ShouldEqual, 6)
				convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverPostgres)
				convey.So(cfg.PostgresMaxConns, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When postgres is selected without a DSN", func() {
			_ = os.Setenv("AGENDA_STORAGE_DRIVER", "postgres")

			_, err := config.Load("")

			convey.Convey("Then validation should fail", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given default config", t, func() {
		cfg := config.New()

		convey.Convey("It should be valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("A zero capacity should be rejected", func() {
			cfg.DailyCapacity = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("An unknown driver should be rejected", func() {
			cfg.StorageDriver = "sheets"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Identical table names should be rejected", func() {
			cfg.EmployeesTable = cfg.ReservationsTable
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func clearConfigEnvVars() {
	for _, v := range configEnvVars {
		_ = os.Unsetenv(v)
	}
}

func createTempConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
