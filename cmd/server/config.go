package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// serverConfig is read from the environment first; flags override it.
type serverConfig struct {
	Addr        string `env:"OPENIDLE_ADDR" envDefault:":8080"`
	ConfigDir   string `env:"OPENIDLE_CONFIGS" envDefault:"./configs"`
	DataDir     string `env:"OPENIDLE_DATA" envDefault:"./data"`
	TuningPath  string `env:"OPENIDLE_TUNING"`
	SavePath    string `env:"OPENIDLE_SAVE"`
	DisableDB   bool   `env:"OPENIDLE_DISABLE_DB"`
	EnablePprof bool   `env:"OPENIDLE_ENABLE_PPROF"`
	FreshStart  bool   `env:"OPENIDLE_FRESH"`
}

func loadServerConfig(args []string) (serverConfig, error) {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	fs.StringVar(&cfg.ConfigDir, "configs", cfg.ConfigDir, "config directory")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory")
	fs.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "path to tuning.yaml (default: <configs>/tuning.yaml)")
	fs.StringVar(&cfg.SavePath, "save", cfg.SavePath, "save file to resume from and autosave to (default: <data>/saves/current.save.zst)")
	fs.BoolVar(&cfg.DisableDB, "disable_db", cfg.DisableDB, "disable the sqlite index")
	fs.BoolVar(&cfg.EnablePprof, "pprof", cfg.EnablePprof, "serve /debug/pprof")
	fs.BoolVar(&cfg.FreshStart, "fresh", cfg.FreshStart, "ignore any existing save and start a new game")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if strings.TrimSpace(cfg.TuningPath) == "" {
		cfg.TuningPath = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}
	if strings.TrimSpace(cfg.SavePath) == "" {
		cfg.SavePath = filepath.Join(cfg.DataDir, "saves", "current.save.zst")
	}
	return cfg, nil
}
