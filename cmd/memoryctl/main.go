// Command memoryctl drives the memory engine from the shell.
//
//	memoryctl -owner u1 add -content "Client prefers Friday calls" -tags acme,calls
//	memoryctl -owner u1 search -query "when to call acme"
//	memoryctl maintain -interval 1h -metrics-addr :9464
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gazelleryanwalker/agentic-crm-production/src/bootstrap"
	"github.com/gazelleryanwalker/agentic-crm-production/src/config"
	"github.com/gazelleryanwalker/agentic-crm-production/src/helpers"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/engine"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

const usage = `usage: memoryctl [-config file] [-owner id] <command> [flags]

commands:
  add         store a memory (or reaffirm an identical one)
  search      rank memories against a query
  boost       raise the relevance of a memory
  related     memories similar to a stored one
  tags        memories sharing tags with a stored one
  stats       per-owner statistics
  categories  distinct categories of an owner
  types       supported memory types
  optimize    merge duplicates and prune stale memories
  maintain    optimize on an interval until interrupted
`

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	owner := flag.String("owner", os.Getenv("MEMORY_OWNER"), "owner id")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	if cmd == "types" {
		mustPrint(model.MemoryTypes())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd != "maintain" && *owner == "" {
		log.Fatalf("%s: -owner is required", cmd)
	}

	svc, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	runErr := run(ctx, svc, cmd, *owner, args)
	if err := svc.Close(); err != nil {
		log.Printf("close: %v", err)
	}
	if runErr != nil {
		log.Fatalf("%s: %v", cmd, runErr)
	}
}

func run(ctx context.Context, svc *bootstrap.Service, cmd, owner string, args []string) error {
	eng := svc.Engine
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)

	switch cmd {
	case "add":
		content := fs.String("content", "", "memory content")
		typ := fs.String("type", string(model.TypeUser), "memory type: user, session or agent")
		category := fs.String("category", "", "optional category")
		tags := fs.String("tags", "", "comma separated tags")
		source := fs.String("source", "cli", "source platform")
		fs.Parse(args)
		mt, err := helpers.ParseMemoryType(*typ)
		if err != nil {
			return err
		}
		mem, err := eng.Add(ctx, engine.AddRequest{
			OwnerID:        owner,
			Content:        *content,
			Type:           mt,
			Category:       *category,
			Tags:           helpers.ParseCSVList(*tags),
			SourcePlatform: *source,
		})
		if err != nil {
			return err
		}
		if mem == nil {
			return errors.New("content is empty")
		}
		return helpers.WriteJSON(os.Stdout, mem)

	case "search":
		query := fs.String("query", "", "search text")
		typ := fs.String("type", "", "restrict to a memory type")
		category := fs.String("category", "", "restrict to a category")
		limit := fs.Int("limit", 0, "maximum results")
		minSim := fs.Float64("min", 0, "minimum similarity override")
		fs.Parse(args)
		mt, err := helpers.ParseMemoryType(*typ)
		if err != nil {
			return err
		}
		results, err := eng.Search(ctx, engine.SearchRequest{
			OwnerID:       owner,
			Query:         *query,
			Type:          mt,
			Category:      *category,
			Limit:         *limit,
			MinSimilarity: *minSim,
		})
		if err != nil {
			return err
		}
		return helpers.WriteJSON(os.Stdout, results)

	case "boost":
		id := fs.String("id", "", "memory id")
		amount := fs.Float64("amount", 0.1, "relevance increase")
		fs.Parse(args)
		ok, err := eng.Boost(ctx, owner, *id, *amount)
		if err != nil {
			return err
		}
		return helpers.WriteJSON(os.Stdout, map[string]bool{"boosted": ok})

	case "related":
		id := fs.String("id", "", "memory id")
		limit := fs.Int("limit", 0, "maximum results")
		fs.Parse(args)
		results, err := eng.Related(ctx, owner, *id, *limit)
		if err != nil {
			return err
		}
		return helpers.WriteJSON(os.Stdout, results)

	case "tags":
		id := fs.String("id", "", "memory id")
		limit := fs.Int("limit", 0, "maximum results")
		fs.Parse(args)
		matches, err := eng.RelatedByTags(ctx, owner, *id, *limit)
		if err != nil {
			return err
		}
		return helpers.WriteJSON(os.Stdout, matches)

	case "stats":
		fs.Parse(args)
		stats, err := eng.Stats(ctx, owner)
		if err != nil {
			return err
		}
		return helpers.WriteJSON(os.Stdout, stats)

	case "categories":
		fs.Parse(args)
		cats, err := eng.Categories(ctx, owner)
		if err != nil {
			return err
		}
		return helpers.WriteJSON(os.Stdout, cats)

	case "optimize":
		fs.Parse(args)
		report, err := eng.Optimize(ctx, owner)
		if err != nil {
			return err
		}
		return helpers.WriteJSON(os.Stdout, report)

	case "maintain":
		mc := svc.Config.Maintenance
		interval := fs.Duration("interval", mc.Interval, "time between optimization passes")
		owners := fs.String("owners", "", "comma separated owners; defaults to config or every owner in the store")
		metricsAddr := fs.String("metrics-addr", mc.MetricsAddr, "serve Prometheus metrics on this address")
		fs.Parse(args)

		list := helpers.ParseCSVList(*owners)
		if len(list) == 0 {
			list = mc.Owners
		}
		if len(list) == 0 && owner != "" {
			list = []string{owner}
		}
		if *metricsAddr != "" {
			if err := serveMetrics(ctx, svc, *metricsAddr); err != nil {
				return err
			}
		}
		m := engine.NewMaintainer(eng, engine.MaintainerOptions{
			Interval:    *interval,
			Owners:      list,
			Concurrency: mc.Concurrency,
		})
		err := m.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func serveMetrics(ctx context.Context, svc *bootstrap.Service, addr string) error {
	reg := prometheus.NewRegistry()
	if err := svc.Engine.RegisterMetrics(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		svc.Logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			svc.Logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return nil
}

func mustPrint(v any) {
	if err := helpers.WriteJSON(os.Stdout, v); err != nil {
		log.Fatalf("write: %v", err)
	}
}
