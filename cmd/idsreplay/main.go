package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/xoelrdgz/idsreplay/internal/adapters/client"
	"github.com/xoelrdgz/idsreplay/internal/adapters/httpapi"
	"github.com/xoelrdgz/idsreplay/internal/adapters/inference"
	"github.com/xoelrdgz/idsreplay/internal/adapters/input"
	"github.com/xoelrdgz/idsreplay/internal/adapters/output"
	"github.com/xoelrdgz/idsreplay/internal/app"
	"github.com/xoelrdgz/idsreplay/internal/domain"
	"github.com/xoelrdgz/idsreplay/internal/tui"
)

var (
	cfgFile string
	noTUI   bool
	jsonOut bool

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "idsreplay",
	Short: "Replay labelled NSL-KDD traffic through an intrusion classifier",
	Long: `idsreplay serves a pre-trained network intrusion classifier over HTTP
and replays labelled sample connections from a chosen attack category.

Attack categories: normal, dos, probe, r2l, u2r`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP backend and the live feed",
	Long: `Load the sample datasets and model artifacts, start the live publisher
and serve the HTTP API.

Examples:
  idsreplay serve
  idsreplay serve --addr :8080 --interval 500ms
  IDSREPLAY_FEED_STREAM_MODE=fresh idsreplay serve`,
	RunE: runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll a running server and classify every streamed row",
	Long: `Poll /stream_data, submit each row to /predict and show the results in
an interactive dashboard. Number keys 1-5 switch the attack mode.

Examples:
  idsreplay watch
  idsreplay watch --url http://10.0.0.5:5000 --mode dos
  idsreplay watch --no-tui --json`,
	RunE: runWatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("idsreplay %s\n", Version)
		fmt.Printf("Commit:   %s\n", Commit)
		fmt.Printf("Built:    %s\n", BuildTime)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag(app.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))

	serveCmd.Flags().String("addr", ":5000", "HTTP listen address")
	serveCmd.Flags().Duration("interval", app.DefaultPublishInterval, "live feed publish interval")
	serveCmd.Flags().String("stream-mode", string(app.StreamLatest), "polling semantics: latest or fresh")
	serveCmd.Flags().String("model-format", inference.FormatForest, "model backend: forest or onnx")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag(app.KeyFeedInterval, serveCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag(app.KeyStreamMode, serveCmd.Flags().Lookup("stream-mode"))
	_ = viper.BindPFlag("model.format", serveCmd.Flags().Lookup("model-format"))

	watchCmd.Flags().String("url", "http://localhost:5000", "server base URL")
	watchCmd.Flags().Duration("interval", time.Second, "poll interval")
	watchCmd.Flags().String("mode", "", "attack mode to select before watching")
	watchCmd.Flags().BoolVar(&noTUI, "no-tui", false, "disable TUI, log observations to stderr")
	watchCmd.Flags().BoolVar(&jsonOut, "json", false, "write observations as JSON lines to stdout")
	_ = viper.BindPFlag("watch.url", watchCmd.Flags().Lookup("url"))
	_ = viper.BindPFlag("watch.interval", watchCmd.Flags().Lookup("interval"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/idsreplay")
	}

	viper.SetDefault("server.addr", ":5000")
	viper.SetDefault("server.cors_origins", []string{"*"})
	viper.SetDefault("server.predict_rate", 0)
	viper.SetDefault("server.predict_burst", 20)
	viper.SetDefault("server.max_body_bytes", 1<<20)
	viper.SetDefault(app.KeyFeedInterval, app.DefaultPublishInterval)
	viper.SetDefault(app.KeyStreamMode, string(app.StreamLatest))
	viper.SetDefault(app.KeyUnknownCategory, string(app.PolicyReject))
	viper.SetDefault(app.KeyLogLevel, "info")
	viper.SetDefault("inference.cache_size", 4096)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.listen", "")
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("health.check_interval", time.Second)
	for _, spec := range input.DefaultDatasets() {
		viper.SetDefault(datasetKey(spec.Category, "path"), spec.Path)
		viper.SetDefault(datasetKey(spec.Category, "max_rows"), spec.MaxRows)
	}
	defaults := inference.DefaultArtifactsConfig()
	for field, ap := range defaults.Encoders {
		viper.SetDefault("model.encoders."+field+".path", ap.Path)
		viper.SetDefault("model.encoders."+field+".blake3", "")
	}
	viper.SetDefault("model.path", defaults.Model.Path)
	viper.SetDefault("model.blake3", "")
	viper.SetDefault("model.format", defaults.Format)
	viper.SetDefault("model.onnx.shared_library", "")
	viper.SetDefault("model.onnx.threads", 1)
	viper.SetDefault("model.onnx.classes", []string{})
	viper.SetDefault("watch.url", "http://localhost:5000")
	viper.SetDefault("watch.interval", time.Second)
	viper.SetDefault("watch.timeout", 5*time.Second)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn().Err(err).Msg("Error reading config file")
		}
	}

	viper.SetEnvPrefix("IDSREPLAY")
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()
}

var envReplacer = strings.NewReplacer(".", "_")

func datasetKey(c domain.Category, field string) string {
	return "datasets." + c.String() + "." + field
}

// setupLogging uses the console writer on a terminal and JSON otherwise.
// The dashboard owns the terminal, so watch logs JSON to stderr unless
// --no-tui is set.
func setupLogging(console bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(viper.GetString(app.KeyLogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if console && isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogging(true)

	v := viper.GetViper()
	svcCfg, err := app.ValidateStartup(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var specs []input.DatasetSpec
	for _, c := range domain.AllCategories() {
		specs = append(specs, input.DatasetSpec{
			Category: c,
			Path:     v.GetString(datasetKey(c, "path")),
			MaxRows:  v.GetInt(datasetKey(c, "max_rows")),
		})
	}
	store, err := input.LoadSampleStore(ctx, specs)
	if err != nil {
		return fmt.Errorf("failed to load datasets: %w", err)
	}

	artifacts, err := inference.LoadArtifacts(artifactsConfig(v))
	if err != nil {
		return fmt.Errorf("failed to load model artifacts: %w", err)
	}
	defer artifacts.Close()

	infer, err := app.NewInferenceService(artifacts.Encoders, artifacts.Classifier)
	if err != nil {
		return err
	}
	infer.EnableCache(v.GetInt("inference.cache_size"))

	svc := app.NewService(svcCfg, store, infer)

	var promMetrics *output.PrometheusMetrics
	if v.GetBool("metrics.enabled") {
		promMetrics = output.NewPrometheusMetrics("idsreplay", nil, svc.InternalMetrics())
		svc.AddFeedObserver(promMetrics)
		svc.AddPredictionObserver(promMetrics)

		if addr := v.GetString("metrics.listen"); addr != "" {
			if err := promMetrics.StartServer(output.MetricsConfig{Addr: addr, Path: v.GetString("metrics.path")}); err != nil {
				log.Warn().Err(err).Msg("Failed to start metrics server")
			}
			defer promMetrics.StopServer()
		}
	}
	health := output.NewHealthChecker(svc, output.HealthCheckerConfig{
		CheckInterval: v.GetDuration("health.check_interval"),
	})

	reloader := app.NewHotReloadConfig(app.HotReloadOptions{
		ConfigPath: v.ConfigFileUsed(),
		Target:     svc,
	})
	if v.ConfigFileUsed() != "" {
		reloader.StartWatching()
	}
	defer reloader.Stop()

	apiCfg := httpapi.Config{
		Addr:         v.GetString("server.addr"),
		CORSOrigins:  v.GetStringSlice("server.cors_origins"),
		PredictRate:  v.GetFloat64("server.predict_rate"),
		PredictBurst: v.GetInt("server.predict_burst"),
		MaxBodyBytes: v.GetInt64("server.max_body_bytes"),
	}
	server := httpapi.NewServer(apiCfg, svc, promMetrics, health)

	log.Info().
		Str("addr", apiCfg.Addr).
		Str("model", infer.ModelName()).
		Int("classes", len(infer.Classes())).
		Dur("interval", svcCfg.Interval).
		Str("stream_mode", string(svcCfg.StreamMode)).
		Msg("idsreplay started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error { return server.Serve(gctx) })

	err = g.Wait()
	svc.Stop()
	cache := infer.CacheStats()
	log.Info().
		Uint64("cache_hits", cache.Hits).
		Uint64("cache_misses", cache.Misses).
		Msg("Shutdown complete")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func artifactsConfig(v *viper.Viper) inference.ArtifactsConfig {
	cfg := inference.DefaultArtifactsConfig()
	for field := range cfg.Encoders {
		cfg.Encoders[field] = inference.ArtifactPath{
			Path:   v.GetString("model.encoders." + field + ".path"),
			Digest: v.GetString("model.encoders." + field + ".blake3"),
		}
	}
	cfg.Model = inference.ArtifactPath{
		Path:   v.GetString("model.path"),
		Digest: v.GetString("model.blake3"),
	}
	cfg.Format = v.GetString("model.format")
	cfg.ONNX = inference.ONNXConfig{
		SharedLibraryPath: v.GetString("model.onnx.shared_library"),
		Classes:           v.GetStringSlice("model.onnx.classes"),
		NumThreads:        v.GetInt("model.onnx.threads"),
	}
	return cfg
}

func runWatch(cmd *cobra.Command, args []string) error {
	setupLogging(noTUI)

	v := viper.GetViper()
	c := client.New(v.GetString("watch.url"), v.GetDuration("watch.timeout"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []client.ObservationSink
	if jsonOut {
		jsonObs, err := output.NewJSONObserver(output.JSONObserverConfig{Stdout: true})
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		defer jsonObs.Close()
		sinks = append(sinks, jsonObs)
	}

	var dashboard *tui.App
	if !noTUI && !jsonOut {
		dashboard = tui.NewApp(nil)
		dashboard.SetServer(c.BaseURL())
		sinks = append(sinks, dashboard)
	} else if !jsonOut {
		sinks = append(sinks, logSink{})
	}

	watcher := client.NewWatcher(c, v.GetDuration("watch.interval"), sinks...)
	if dashboard != nil {
		dashboard.SetSwitcher(watcher)
	}

	if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
		accepted, err := watcher.SetAttackMode(ctx, mode)
		if err != nil {
			return fmt.Errorf("failed to set attack mode: %w", err)
		}
		log.Info().Str("attack_mode", accepted.String()).Msg("Attack mode selected")
	}

	if dashboard == nil {
		log.Info().Str("url", c.BaseURL()).Msg("Watching")
		return watcher.Run(ctx)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := watcher.Run(watchCtx); err != nil {
			log.Error().Err(err).Msg("Watcher error")
		}
	}()

	var tuiErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("TUI panic recovered")
				tuiErr = fmt.Errorf("TUI panic: %v", r)
			}
		}()
		tuiErr = dashboard.Run()
	}()
	cancel()

	if dropped := dashboard.DroppedObservations(); dropped > 0 {
		log.Warn().Int64("dropped", dropped).Msg("Dashboard fell behind")
	}
	return tuiErr
}

// logSink prints observations as log lines for --no-tui.
type logSink struct{}

func (logSink) OnObservation(obs domain.Observation) {
	if obs.Err != "" {
		log.Warn().Int64("seq", obs.Seq).Str("mode", obs.Mode.String()).Str("error", obs.Err).Msg("Poll failed")
		return
	}
	log.Info().
		Int64("seq", obs.Seq).
		Str("mode", obs.Mode.String()).
		Interface("protocol", obs.Row["protocol_type"]).
		Interface("service", obs.Row["service"]).
		Str("actual", obs.Actual).
		Str("predicted", obs.Predicted).
		Bool("match", obs.Match()).
		Dur("latency", obs.Latency).
		Msg("Observation")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
