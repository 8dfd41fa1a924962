package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm/ssr"
	"github.com/pthm/ssr/lib/engine"
	"github.com/pthm/ssr/lib/pool"
)

// renderCommand renders one component through a freshly started engine
// and prints the markup.
type renderCommand struct {
	component  string
	props      string
	tag        string
	id         string
	class      string
	serverOnly bool
	clientOnly bool
	withInit   bool
	timeout    time.Duration
}

func addRenderCommand(app *kingpin.Application) {
	cmd := &renderCommand{}
	c := app.Command("render", "Render a component to HTML.").Action(cmd.run)
	c.Arg("component", "Component name, e.g. App.Header.").Required().StringVar(&cmd.component)
	c.Arg("props", "Props as JSON.").Default("{}").StringVar(&cmd.props)
	c.Flag("tag", "Container element tag. Defaults to SSR_CONTAINER_TAG.").StringVar(&cmd.tag)
	c.Flag("id", "Container element id. Generated when empty.").StringVar(&cmd.id)
	c.Flag("class", "Container element class.").StringVar(&cmd.class)
	c.Flag("server-only", "Render static markup without a container.").BoolVar(&cmd.serverOnly)
	c.Flag("client-only", "Render an empty container for the client to fill.").BoolVar(&cmd.clientOnly)
	c.Flag("with-init", "Append the client initialization script.").BoolVar(&cmd.withInit)
	c.Flag("timeout", "Give up after this long.").Default("30s").DurationVar(&cmd.timeout)
}

func (cmd *renderCommand) run(_ *kingpin.ParseContext) error {
	if !jsoniter.Valid([]byte(cmd.props)) {
		exitWithErr(errors.Errorf("props are not valid JSON: %s", cmd.props))
	}

	cfg, err := ssr.LoadConfig("SSR")
	if err != nil {
		exitWithErr(err)
	}
	logger, err := ssr.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		exitWithErr(err)
	}

	reg := prometheus.NewRegistry()
	bufs, err := pool.NewBucketed[byte](pool.Options{
		MaxLength:    pool.MaxBucketLength,
		MaxPerBucket: cfg.PoolMaxPerBucket,
		Metrics:      pool.NewMetrics(reg, "cli"),
	})
	if err != nil {
		exitWithErr(err)
	}

	engines, err := engine.NewPool(processFactory(logger, cfg), engine.PoolConfig{
		MaxEngines: cfg.MaxEngines,
		Logger:     logger,
		Registerer: reg,
	})
	if err != nil {
		exitWithErr(err)
	}
	defer engines.Close()

	env, err := ssr.NewEnvironment(cfg, engines, ssr.WithAllocator(bufs), ssr.WithLogger(logger))
	if err != nil {
		exitWithErr(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmd.timeout)
	defer cancel()

	render := env.Render
	if cmd.withInit {
		render = env.RenderWithInit
	}
	html, err := render(ctx, cmd.component, jsoniter.RawMessage(cmd.props), ssr.ComponentOptions{
		ContainerID:    cmd.id,
		ContainerTag:   cmd.tag,
		ContainerClass: cmd.class,
		ServerOnly:     cmd.serverOnly,
		ClientOnly:     cmd.clientOnly,
	})
	if err != nil {
		return err
	}
	fmt.Println(html)

	stats := bufs.Stats()
	level.Debug(logger).Log("msg", "buffer pool", "rents", stats.Rents, "hits", stats.Hits, "returns", stats.Returns, "drops", stats.Drops)
	logMetrics(logger, reg)
	return nil
}

// logMetrics writes every counter and gauge in g at debug level.
func logMetrics(logger log.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		level.Warn(logger).Log("msg", "failed to gather metrics", "err", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			kv := []interface{}{"msg", "metric", "name", mf.GetName()}
			for _, l := range m.GetLabel() {
				kv = append(kv, l.GetName(), l.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				kv = append(kv, "value", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				kv = append(kv, "value", m.GetGauge().GetValue())
			}
			level.Debug(logger).Log(kv...)
		}
	}
}

func processFactory(logger log.Logger, cfg ssr.Config) engine.Factory {
	return func(ctx context.Context) (engine.Engine, error) {
		r, err := engine.StartProcess(ctx, logger, cfg.EngineCommand, cfg.EngineArgs...)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}
