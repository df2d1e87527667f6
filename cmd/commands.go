package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fyerfyer/fin-data-pipeline/api"
	"github.com/fyerfyer/fin-data-pipeline/api/handler"
	"github.com/fyerfyer/fin-data-pipeline/api/middleware"
	"github.com/fyerfyer/fin-data-pipeline/internal/embedding"
	"github.com/fyerfyer/fin-data-pipeline/internal/pipeline"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
	"github.com/fyerfyer/fin-data-pipeline/pkg/taskqueue"
)

// printJSON 以缩进JSON输出到标准输出
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext 收到SIGINT或SIGTERM时取消
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd(g *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once over the selected sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, rf)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg, g.Verbose, !rf.Async)
			if err != nil {
				return err
			}
			defer a.Close()

			sources := cfg.SelectSources(splitNames(rf.Sources), rf.TestMode)
			if len(sources) == 0 {
				return fmt.Errorf("no sources match %v", rf.Sources)
			}

			if rf.Async {
				q, err := a.setupQueue(true)
				if err != nil {
					return err
				}
				runID := uuid.NewString()
				ids, err := taskqueue.EnqueueSources(ctx, q, runID, sources)
				if err != nil {
					return err
				}
				a.log.WithField("run_id", runID).Infof("Enqueued %d sources", len(ids))
				return printJSON(map[string]interface{}{"run_id": runID, "task_ids": ids})
			}

			report, runErr := a.runner.Run(ctx, sources)
			if report != nil {
				if err := printJSON(report); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			if len(report.FailedSources) == len(sources) {
				return errors.New("all sources failed")
			}
			return nil
		},
	}
	addRunFlags(cmd, rf)
	cmd.Flags().BoolVar(&rf.Async, "async", false, "Enqueue one task per source instead of running in process")
	return cmd
}

func newServeCmd(g *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, rf)
			if err != nil {
				return err
			}
			a, err := newApp(context.Background(), cfg, g.Verbose, true)
			if err != nil {
				return err
			}
			defer a.Close()

			rq, err := a.setupQueue(false)
			if err != nil {
				return err
			}
			// nil指针不能直接赋给接口
			var q taskqueue.Queue
			if rq != nil {
				q = rq
			}

			gin.SetMode(cfg.Server.Mode)
			middleware.SetLogger(a.log)

			r := api.SetupRouter(api.Handlers{
				Health:   handler.NewHealthHandler(a.loader, q, cfg.Pipeline.Simulation),
				Schema:   handler.NewSchemaHandler(),
				Pipeline: handler.NewPipelineHandler(a.runner, cfg, q, a.log),
				Task:     handler.NewTaskHandler(q),
				Stats:    handler.NewStatsHandler(a.loader),
			})

			srv := &http.Server{
				Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
				Handler:     r,
				ReadTimeout: 30 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Infof("Server is running on %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			// 等待终止信号
			ctx, stop := signalContext()
			defer stop()
			select {
			case err := <-errCh:
				return fmt.Errorf("failed to start server: %w", err)
			case <-ctx.Done():
			}
			a.log.Info("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			a.log.Info("Server exited")
			return nil
		},
	}
	cmd.Flags().BoolVar(&rf.Simulation, "simulation", false, "Run without writing to any store")
	cmd.Flags().StringVar(&rf.SourcesFile, "sources-file", "", "YAML file replacing the configured sources")
	cmd.Flags().IntVar(&rf.Workers, "workers", 0, "Concurrent items per stage (default from config)")
	return cmd
}

func newWorkerCmd(g *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued source tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, rf)
			if err != nil {
				return err
			}
			a, err := newApp(context.Background(), cfg, g.Verbose, true)
			if err != nil {
				return err
			}
			defer a.Close()

			q, err := a.setupQueue(true)
			if err != nil {
				return err
			}
			w := taskqueue.NewRedisWorker(q, taskqueue.FromAppConfig(cfg.Queue))
			w.RegisterHandler(taskqueue.TaskRunSource, pipeline.NewTaskHandler(a.runner))
			if err := w.Start(); err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			<-ctx.Done()
			a.log.Info("Stopping worker...")
			w.Stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&rf.Simulation, "simulation", false, "Run without writing to any store")
	cmd.Flags().IntVar(&rf.Workers, "workers", 0, "Concurrent items per stage (default from config)")
	return cmd
}

// healthReport health命令的输出
type healthReport struct {
	Relational bool                   `json:"relational"`
	Vector     bool                   `json:"vector"`
	Embedding  *embedding.CheckResult `json:"embedding,omitempty"`
	Queue      string                 `json:"queue,omitempty"`
	Errors     map[string]string      `json:"errors,omitempty"`
}

func newHealthCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity of stores, embedding service and queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, nil)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			a, err := newApp(ctx, cfg, g.Verbose, false)
			if err != nil {
				return err
			}
			defer a.Close()

			conn := a.loader.TestConnections(ctx)
			out := healthReport{
				Relational: conn.Relational,
				Vector:     conn.Vector,
				Errors:     conn.Errors,
			}
			if out.Errors == nil {
				out.Errors = make(map[string]string)
			}

			if err := a.setupEmbedder(); err != nil {
				out.Errors["embedding"] = err.Error()
			} else if res, err := embedding.ConnectionCheck(ctx, a.embedder, schema.DefaultEmbeddingDimension); err != nil {
				out.Errors["embedding"] = err.Error()
			} else {
				out.Embedding = res
			}

			if cfg.Queue.Enable {
				q, err := a.setupQueue(true)
				if err != nil {
					out.Queue = "unavailable"
					out.Errors["queue"] = err.Error()
				} else if err := q.Ping(ctx); err != nil {
					out.Queue = "unavailable"
					out.Errors["queue"] = err.Error()
				} else {
					out.Queue = "ok"
				}
			}

			if err := printJSON(out); err != nil {
				return err
			}
			if len(out.Errors) > 0 {
				return fmt.Errorf("%d checks failed", len(out.Errors))
			}
			return nil
		},
	}
}

func newSchemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas [name]",
		Short: "List table and index schemas, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				for _, reg := range []*schema.Registry{schema.Tables, schema.Indexes} {
					if def, ok := reg.Get(args[0]); ok {
						return printJSON(def)
					}
				}
				return fmt.Errorf("schema %q not found", args[0])
			}

			for _, reg := range []*schema.Registry{schema.Tables, schema.Indexes} {
				fmt.Printf("%s:\n", reg.Kind())
				for _, def := range reg.All() {
					fmt.Printf("  %-32s %s\n", def.Name, strings.Join(def.RequiredFields(), ", "))
				}
			}
			fmt.Println("routes:")
			for _, cat := range schema.Categories() {
				route, _ := schema.LookupRoute(cat)
				index := route.Index
				if index == "" {
					index = "-"
				}
				fmt.Printf("  %-16s %-32s %s\n", cat, route.Table, index)
			}
			return nil
		},
	}
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts per table and index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, nil)
			if err != nil {
				return err
			}
			// 统计需要真实存储
			cfg.Pipeline.Simulation = false

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			a, err := newApp(ctx, cfg, g.Verbose, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(a.loader.Statistics(ctx))
		},
	}
}
