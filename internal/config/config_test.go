package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/podium/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.MaxChainLength, convey.ShouldEqual, 10_000)
			convey.So(cfg.MaxConflictRetries, convey.ShouldEqual, 16)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "podium")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()
		cfg.WorkerCount = 4
		cfg.QueueSize = 64

		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"unknown driver", func(c *config.Config) { c.StoreDriver = "postgres" }},
			{"sqlite without dsn", func(c *config.Config) { c.StoreDriver = config.DriverSQLite; c.SQLiteDSN = "" }},
			{"badger without path", func(c *config.Config) { c.StoreDriver = config.DriverBadger; c.BadgerPath = "" }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"zero chain length", func(c *config.Config) { c.MaxChainLength = 0 }},
			{"negative retries", func(c *config.Config) { c.MaxConflictRetries = -1 }},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
			{"queue smaller than workers", func(c *config.Config) { c.QueueSize = 2 }},
			{"empty namespace", func(c *config.Config) { c.MetricsNamespace = "" }},
		}

		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				bad := *cfg
				tc.mutate(&bad)

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(errors.Is(bad.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When badger runs in memory without a path", func() {
			cfg.StoreDriver = config.DriverBadger
			cfg.BadgerPath = ""
			cfg.BadgerInMemory = true

			convey.Convey("Then it is accepted", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the driver is written in upper case", func() {
			cfg.StoreDriver = "SQLITE"

			convey.Convey("Then it is accepted", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
