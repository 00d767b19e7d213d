package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jetstrace/jets/internal/logging"
	"github.com/jetstrace/jets/tracegen"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jets-tracegen:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		clusters   int
		cores      int
		threads    int
		instr      []int
		out        string
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "jets-tracegen",
		Short: "Generate a deterministic pipelined-processor execution trace",
		Long: `jets-tracegen synthesizes a hierarchical execution trace of a
pipelined RISC-V processor and writes it as JSON Lines. The same
configuration always produces byte-identical output.

Configuration comes from JETS_* environment variables or a --config
file, with command-line flags overriding either.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("clusters") {
				cfg.Clusters = clusters
			}
			if cmd.Flags().Changed("cores") {
				cfg.Cores = cores
			}
			if cmd.Flags().Changed("threads") {
				cfg.Threads = threads
			}
			if cmd.Flags().Changed("instr") {
				switch len(instr) {
				case 1:
					cfg.InstrMin, cfg.InstrMax = instr[0], instr[0]
				case 2:
					cfg.InstrMin, cfg.InstrMax = instr[0], instr[1]
				default:
					return fmt.Errorf("--instr takes one count or a min,max pair")
				}
			}
			if cmd.Flags().Changed("out") {
				cfg.Output = out
			}

			log, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			defer log.Sync()
			log = &logging.Logger{Logger: log.With(zap.String("run_id", uuid.NewString()))}

			gen, err := tracegen.New(cfg, tracegen.WithLogger(log))
			if err != nil {
				return err
			}
			if err := gen.Generate(); err != nil {
				return err
			}
			log.Info("wrote trace", zap.String("path", cfg.Output))
			return nil
		},
	}

	cmd.Flags().IntVar(&clusters, "clusters", 1, "number of clusters")
	cmd.Flags().IntVar(&cores, "cores", 1, "cores per cluster")
	cmd.Flags().IntVar(&threads, "threads", 1, "threads per core")
	cmd.Flags().IntSliceVar(&instr, "instr", []int{100}, "instructions per thread: a count, or min,max")
	cmd.Flags().StringVar(&out, "out", "trace.jets", "output path (.gz or .zst enables compression)")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func loadConfig(path string) (tracegen.Config, error) {
	cfg, err := tracegen.FromEnv()
	if err != nil {
		return cfg, err
	}
	if path == "" {
		return cfg, nil
	}
	return tracegen.FromFile(path)
}

func newLogger(level string) (*logging.Logger, error) {
	cfg := logging.DefaultConfig()
	cfg.Level = level
	log, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log, nil
}
