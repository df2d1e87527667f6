package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fyerfyer/fin-data-pipeline/config"
)

// 全局命令行参数
type globalFlags struct {
	ConfigFile string
	Verbose    bool
}

// 运行相关参数
type runFlags struct {
	Simulation  bool
	Sources     []string
	SourcesFile string
	TestMode    bool
	Workers     int
	Async       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "finpipe",
		Short:         "Financial data ingestion pipeline",
		Long:          "finpipe fetches public financial sources, structures them with a language model and loads them into a relational store and a vector store.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env不存在时忽略
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&g.ConfigFile, "config", "c", "config.yaml", "Config file path")
	root.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newRunCmd(g),
		newServeCmd(g),
		newWorkerCmd(g),
		newHealthCmd(g),
		newSchemasCmd(),
		newStatsCmd(g),
	)
	return root
}

// loadConfig 读取配置并应用命令行覆盖
func loadConfig(g *globalFlags, rf *runFlags) (*config.Config, error) {
	cfg, err := config.Load(g.ConfigFile)
	if err != nil {
		return nil, err
	}
	if rf == nil {
		return cfg, nil
	}

	if rf.Simulation {
		cfg.Pipeline.Simulation = true
	}
	if rf.Workers > 0 {
		cfg.Pipeline.Workers = rf.Workers
	}
	if rf.SourcesFile != "" {
		sources, err := config.LoadSourcesFile(rf.SourcesFile)
		if err != nil {
			return nil, err
		}
		// 文件中的数据源替换当前模式下的数据源列表
		if rf.TestMode {
			cfg.TestSources = sources
		} else {
			cfg.Sources = sources
		}
	}
	return cfg, nil
}

func splitNames(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func addRunFlags(cmd *cobra.Command, rf *runFlags) {
	cmd.Flags().BoolVar(&rf.Simulation, "simulation", false, "Run without writing to any store")
	cmd.Flags().StringSliceVar(&rf.Sources, "sources", nil, "Source names or categories, comma separated (default all)")
	cmd.Flags().StringVar(&rf.SourcesFile, "sources-file", "", "YAML file replacing the configured sources")
	cmd.Flags().BoolVar(&rf.TestMode, "test-mode", false, "Use the test sources")
	cmd.Flags().IntVar(&rf.Workers, "workers", 0, "Concurrent items per stage (default from config)")
}
