package qdemo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/qdemo/runtime"
)

func TestConfig(t *testing.T) {
	Convey("Given no config file and a clean environment", t, func() {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("QISKIT_IBM_TOKEN", "")
		t.Setenv("QDEMO_IBM_TOKEN", "")

		cfg, err := LoadConfig(NewViper())
		So(err, ShouldBeNil)

		Convey("It should match the built-in defaults", func() {
			want := NewConfig()
			So(cfg.MinWorkers, ShouldEqual, want.MinWorkers)
			So(cfg.MaxWorkers, ShouldEqual, want.MaxWorkers)
			So(cfg.OutputDir, ShouldEqual, "out")
			So(cfg.Fallback, ShouldBeTrue)
			So(cfg.Runtime.BaseURL, ShouldEqual, runtime.DefaultBaseURL)
			So(cfg.Runtime.Token, ShouldBeEmpty)
		})
	})

	Convey("Given environment overrides", t, func() {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("QDEMO_IBM_TOKEN", "")
		t.Setenv("QDEMO_RUN_SHOTS", "2048")
		t.Setenv("QDEMO_RUN_LOCAL", "true")
		t.Setenv("QDEMO_POOL_JOB_TIMEOUT", "90s")
		t.Setenv("QISKIT_IBM_TOKEN", "qiskit-token")

		cfg, err := LoadConfig(NewViper())
		So(err, ShouldBeNil)

		Convey("They should win over the defaults", func() {
			So(cfg.Shots, ShouldEqual, 2048)
			So(cfg.ForceLocal, ShouldBeTrue)
			So(cfg.JobTimeout, ShouldEqual, 90*time.Second)
		})

		Convey("The Qiskit token variable should be honored", func() {
			So(cfg.Runtime.Token, ShouldEqual, "qiskit-token")
		})
	})

	Convey("Given a qdemo.yaml file", t, func() {
		path := filepath.Join(t.TempDir(), "qdemo.yaml")
		t.Setenv("QISKIT_IBM_TOKEN", "")
		t.Setenv("QDEMO_IBM_TOKEN", "")
		yaml := "run:\n  backend: ibm_brisbane\n  seed: 7\noutput:\n  dir: plots\nibm:\n  token: file-token\n"
		So(os.WriteFile(path, []byte(yaml), 0o644), ShouldBeNil)

		v := NewViper()
		v.SetConfigFile(path)
		cfg, err := LoadConfig(v)
		So(err, ShouldBeNil)

		Convey("Its values should be loaded", func() {
			So(cfg.Backend, ShouldEqual, "ibm_brisbane")
			So(cfg.Seed, ShouldEqual, 7)
			So(cfg.OutputDir, ShouldEqual, "plots")
			So(cfg.Runtime.Token, ShouldEqual, "file-token")
		})
	})

	Convey("Given invalid settings", t, func() {
		Convey("Validate should reject them", func() {
			cfg := NewConfig()
			cfg.MaxWorkers = 1
			cfg.MinWorkers = 2
			So(cfg.Validate(), ShouldNotBeNil)

			cfg = NewConfig()
			cfg.Shots = -1
			So(cfg.Validate(), ShouldNotBeNil)

			So(NewConfig().Validate(), ShouldBeNil)
		})
	})
}
