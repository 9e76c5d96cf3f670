/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


/*
Package main is the entry point for the matsearch server.

Startup Flow:
=============

 1. Load configuration: defaults, config file, MATSEARCH_* environment,
    then explicitly set command-line flags
 2. Rebuild the main dataset from the primary source file
    (results-csv.xlsx, then results-csv.xls, then materials.csv)
 3. Start the HTTP API, health and metrics listeners
 4. Shut down gracefully on SIGINT or SIGTERM

Usage Examples:
===============

	matsearch
	matsearch -port 8080 -data-dir /var/lib/matsearch
	matsearch -source-csv materials.csv.gz -encoding gbk
	matsearch -config /etc/matsearch/matsearch.toml -log-json
	matsearch -port 8080 -write-config matsearch.toml
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"matsearch/internal/banner"
	"matsearch/internal/catalog"
	"matsearch/internal/config"
	"matsearch/internal/errors"
	"matsearch/internal/health"
	"matsearch/internal/logging"
	"matsearch/internal/metrics"
	"matsearch/internal/server"
	"matsearch/internal/tabular"
)

var (
	highlight = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	dimmed    = lipgloss.NewStyle().Faint(true)
)

// printUsage prints comprehensive help information.
func printUsage() {
	fmt.Println()
	fmt.Printf("%s - Materials dataset search server\n", highlight.Render("matsearch v"+banner.Version))
	fmt.Println()

	fmt.Println(highlight.Render("USAGE:"))
	fmt.Println("  matsearch [options]")
	fmt.Println()

	fmt.Println(highlight.Render("OPTIONS:"))
	flag.PrintDefaults()
	fmt.Println()

	fmt.Println(highlight.Render("ENVIRONMENT VARIABLES:"))
	for _, env := range []string{
		config.EnvPort, config.EnvDataDir, config.EnvUploadDir, config.EnvSourceXLSX,
		config.EnvSourceXLS, config.EnvSourceCSV, config.EnvSourceEncoding, config.EnvMaxUploadMB,
		config.EnvPropsCache, config.EnvLogLevel, config.EnvLogJSON, config.EnvHealthAddr,
		config.EnvMetricsAddr, config.EnvConfigFile,
	} {
		fmt.Println("  " + env)
	}
	fmt.Println()

	fmt.Println(highlight.Render("EXAMPLES:"))
	fmt.Println("  " + dimmed.Render("# Serve results-csv.xlsx from the working directory"))
	fmt.Println("  matsearch")
	fmt.Println()
	fmt.Println("  " + dimmed.Render("# Serve a compressed GBK encoded CSV"))
	fmt.Println("  matsearch -source-csv materials.csv.gz -encoding gbk")
	fmt.Println()
}

func main() {
	cfgMgr := config.Global()
	if err := cfgMgr.Load(); err != nil {
		if config.FindConfigFile() != "" {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	cfg := cfgMgr.Get()

	port := flag.Int("port", cfg.Port, "HTTP port for the API")
	dataDir := flag.String("data-dir", cfg.DataDir, "Directory for dataset files")
	uploadDir := flag.String("upload-dir", cfg.UploadDir, "Directory for uploaded workbooks")
	sourceXLSX := flag.String("source-xlsx", cfg.SourceXLSX, "Spreadsheet source for the main dataset")
	sourceXLS := flag.String("source-xls", cfg.SourceXLS, "Legacy spreadsheet source used when no xlsx exists")
	sourceCSV := flag.String("source-csv", cfg.SourceCSV, "Delimited source used when no spreadsheet exists")
	encoding := flag.String("encoding", cfg.SourceEncoding,
		"Encoding of the delimited source: "+strings.Join(tabular.EncodingNames, ", "))
	maxUpload := flag.Int("max-upload-mb", cfg.MaxUploadMB, "Maximum upload size in megabytes")
	propsCache := flag.Bool("properties-cache", cfg.PropertiesCache, "Cache property ranges per dataset file")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", cfg.LogJSON, "Enable JSON log output")
	healthAddr := flag.String("health-addr", cfg.Health.Addr, "Health check listen address")
	metricsAddr := flag.String("metrics-addr", cfg.Metrics.Addr, "Metrics listen address")
	configFile := flag.String("config", "", "Path to configuration file")
	writeConfig := flag.String("write-config", "", "Write the effective configuration to a TOML file and exit")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help message")

	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		banner.Print()
		os.Exit(0)
	}
	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	if *configFile != "" {
		if err := cfgMgr.LoadFromFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
			os.Exit(1)
		}
		// Environment variables take priority over the config file.
		cfgMgr.LoadFromEnv()
		cfg = cfgMgr.Get()
	}

	// Only flags set explicitly override file and environment values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "data-dir":
			cfg.DataDir = *dataDir
		case "upload-dir":
			cfg.UploadDir = *uploadDir
		case "source-xlsx":
			cfg.SourceXLSX = *sourceXLSX
		case "source-xls":
			cfg.SourceXLS = *sourceXLS
		case "source-csv":
			cfg.SourceCSV = *sourceCSV
		case "encoding":
			cfg.SourceEncoding = *encoding
		case "max-upload-mb":
			cfg.MaxUploadMB = *maxUpload
		case "properties-cache":
			cfg.PropertiesCache = *propsCache
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-json":
			cfg.LogJSON = *logJSON
		case "health-addr":
			cfg.Health.Addr = *healthAddr
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %s\n", errors.FormatError(err))
		os.Exit(1)
	}
	cfgMgr.Set(cfg)

	if *writeConfig != "" {
		if err := cfg.SaveToFile(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *writeConfig)
		os.Exit(0)
	}

	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)

	if !cfg.LogJSON {
		banner.PrintServerWithConfig(cfg)
	}

	log := logging.NewLogger("main")
	if cfg.ConfigFile != "" {
		log.Info("Configuration loaded", "file", cfg.ConfigFile)
	}
	log.Debug("Effective configuration", "config", cfg.String())

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", "error", err)
		if hint := errors.GetHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "Hint: "+hint)
		}
		os.Exit(1)
	}
	log.Info("Server stopped")
}

func run(cfg *config.Config, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := cfg.PrimarySource()
	if source == "" {
		return errors.SourceNotFound(fmt.Sprintf("%s, %s, %s", cfg.SourceXLSX, cfg.SourceXLS, cfg.SourceCSV)).
			WithHint("Place one of these files in the working directory or pass -source-xlsx, -source-xls or -source-csv")
	}

	format, _ := tabular.DetectFormat(source)
	opts := tabular.LoadOptions{
		AllText:  format != tabular.FormatCSV && format != tabular.FormatTSV,
		Encoding: cfg.SourceEncoding,
	}
	log.Info("Loading main dataset", "source", source, "all_text", opts.AllText)
	table, err := tabular.Load(source, opts)
	if err != nil {
		return err
	}

	cat := catalog.New(cfg.MainDBPath(), cfg.UserDBPath(), cfg.UploadDir)
	if err := cat.RebuildMain(ctx, table); err != nil {
		return err
	}
	m := metrics.Get()
	m.MainRows.Store(int64(len(table.Rows)))
	m.SetActive(string(catalog.VersionMain))

	checker := health.NewChecker(banner.Version)
	checker.RegisterCheck("dataset", health.DatasetCheck(cat.Check))
	checker.RegisterCheck("uploads", health.WritableDirCheck(filepath.Clean(cfg.UploadDir)))
	if !checker.IsHealthy() {
		log.Warn("Startup health checks failing", "addr", cfg.Health.Addr)
	}

	api := server.NewServer(fmt.Sprintf(":%d", cfg.Port), cat, cfg.MaxUploadMB)
	api.SetPropertiesCache(cfg.PropertiesCache)
	healthSrv := health.NewServer(&cfg.Health, checker)
	metricsSrv := metrics.NewServer(&cfg.Metrics)

	log.Info("matsearch server starting",
		"version", banner.Version,
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"rows", len(table.Rows),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Run(gctx) })
	g.Go(func() error { return healthSrv.Run(gctx) })
	g.Go(func() error { return metricsSrv.Run(gctx) })
	return g.Wait()
}

