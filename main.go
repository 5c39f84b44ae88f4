package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ksaito/speedprobe/speedprobe"
)

var (
	BuildName       = "\b"
	BuildAnnotation = "git"
)

var (
	flagList          string
	flagServer        string
	flagConfig        string
	flagJSON          bool
	flagDebug         bool
	flagIP4           bool
	flagIP6           bool
	flagShowVersion   bool
	flagStreams       int
	flagDownloadSecs  int
	flagUploadSecs    int
	flagPings         int
	flagDownloadSize  int
	flagUploadBytes   int64
	flagMaxCandidates int
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "speedprobe",
		Short:        "Measure network throughput, latency and jitter over HTTP",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logLevel := slog.LevelInfo
			if flagDebug {
				logLevel = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

			return loadConfig()
		},
		RunE: run,
	}

	cmd.Flags().StringVar(&flagList, "list", "", "URL of the server directory (JSON)")
	cmd.Flags().StringVar(&flagServer, "server", "", "base URL of a specific server (skips selection)")
	cmd.Flags().StringVar(&flagConfig, "config", "", "path to a config file")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "emit the result as JSON")
	cmd.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.Flags().BoolVarP(&flagIP4, "ip4", "4", false, "measure over IPv4")
	cmd.Flags().BoolVarP(&flagIP6, "ip6", "6", false, "measure over IPv6")
	cmd.Flags().BoolVar(&flagShowVersion, "version", false, "show version information and exit")
	cmd.Flags().IntVar(&flagStreams, "streams", speedprobe.DefaultStreams, "parallel streams per throughput phase")
	cmd.Flags().IntVar(&flagDownloadSecs, "download-duration", int(speedprobe.DefaultDownloadDuration.Seconds()), "download phase duration in seconds")
	cmd.Flags().IntVar(&flagUploadSecs, "upload-duration", int(speedprobe.DefaultUploadDuration.Seconds()), "upload phase duration in seconds")
	cmd.Flags().IntVar(&flagPings, "pings", speedprobe.DefaultPingCount, "number of latency probes")
	cmd.Flags().IntVar(&flagDownloadSize, "download-size", speedprobe.DefaultDownloadSizeMB, "download size hint in MB")
	cmd.Flags().Int64Var(&flagUploadBytes, "upload-bytes", speedprobe.DefaultUploadBytes, "upload payload size in bytes")
	cmd.Flags().IntVar(&flagMaxCandidates, "max-candidates", 0, "cap on probed candidate servers (0 = all)")

	for _, name := range []string{"list", "server", "streams", "download-duration", "upload-duration", "pings", "download-size", "upload-bytes", "max-candidates"} {
		if err := viper.BindPFlag("measure."+name, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	return cmd
}

func loadConfig() error {
	viper.SetEnvPrefix("SPEEDPROBE")
	viper.AutomaticEnv()

	if flagConfig != "" {
		viper.SetConfigFile(flagConfig)
		return viper.ReadInConfig()
	}

	viper.SetConfigName("speedprobe")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return err
		}
	}
	return nil
}

func measurementConfig() speedprobe.Config {
	cfg := speedprobe.DefaultConfig()
	cfg.Streams = viper.GetInt("measure.streams")
	cfg.DownloadDuration = time.Duration(viper.GetInt("measure.download-duration")) * time.Second
	cfg.UploadDuration = time.Duration(viper.GetInt("measure.upload-duration")) * time.Second
	cfg.PingCount = viper.GetInt("measure.pings")
	cfg.DownloadSizeMB = viper.GetInt("measure.download-size")
	cfg.UploadBytes = viper.GetInt64("measure.upload-bytes")
	cfg.MaxCandidates = viper.GetInt("measure.max-candidates")
	return cfg
}

func phaseProgress(label string) speedprobe.ProgressFunc {
	return func(fraction float64) {
		fmt.Fprintf(os.Stderr, "\r%s: %3.0f%%", label, fraction*100)
		if fraction >= 1 {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// transportProtocols maps the -4/-6 flags to the transports to measure.
// The flags are not mutually exclusive: both set means one measurement over
// each family, in order.
func transportProtocols(ip4, ip6 bool) []string {
	if !ip4 && !ip6 {
		return []string{"tcp"}
	}

	protocols := []string{}
	if ip4 {
		protocols = append(protocols, "tcp4")
	}
	if ip6 {
		protocols = append(protocols, "tcp6")
	}
	return protocols
}

func run(cmd *cobra.Command, args []string) error {
	fmt.Printf("speedprobe %s (%s)\n", BuildName, BuildAnnotation)
	if flagShowVersion {
		return nil
	}

	cfg := measurementConfig()
	if !flagJSON {
		cfg.OnDownloadProgress = phaseProgress("Download")
		cfg.OnUploadProgress = phaseProgress("Upload")
	}

	for _, protocol := range transportProtocols(flagIP4, flagIP6) {
		if err := runProtocol(cmd.Context(), protocol, cfg); err != nil {
			return err
		}
	}
	return nil
}

func runProtocol(ctx context.Context, protocol string, cfg speedprobe.Config) error {
	client := speedprobe.NewHTTPClient(protocol)

	var server *speedprobe.Server
	if explicit := viper.GetString("measure.server"); explicit != "" {
		server = speedprobe.NewServer(explicit)
	} else {
		listURL := viper.GetString("measure.list")
		if listURL == "" {
			return fmt.Errorf("either --server or --list is required")
		}

		servers, err := speedprobe.FetchServers(ctx, client, listURL)
		if err != nil {
			return err
		}
		slog.Debug("fetched server directory", "count", len(servers))

		server, err = speedprobe.SelectBestServer(ctx, client, servers, cfg)
		if err != nil {
			return err
		}
		slog.Info("selected server", "name", server.Name, "url", server.BaseURL, "latency_ms", server.LatencyMS)
	}

	result, err := speedprobe.RunTest(ctx, client, server, cfg)
	if err != nil {
		return err
	}

	if flagJSON {
		return speedprobe.PrintResultJSON(os.Stdout, result)
	}

	fmt.Println()
	speedprobe.PrintResult(log.New(os.Stdout, "", 0), result)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
