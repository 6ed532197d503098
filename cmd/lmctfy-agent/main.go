// Command lmctfy-agent is the minimal process entry point for this
// module's cgroup runtime: it wires machine.Init, exposes the Prometheus
// metrics exporter, and otherwise does nothing — process spawn, the
// Container/ContainerAPI façade, and CLI-driven container lifecycle
// management are out of scope here.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/google/lmctfy-sub002/pkg/hierarchy"
	"github.com/google/lmctfy-sub002/pkg/machine"
	"github.com/google/lmctfy-sub002/pkg/metrics"
)

func main() {
	app := &cli.App{
		Name:  "lmctfy-agent",
		Usage: "bootstrap the cgroup v1 resource runtime on this machine",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "hierarchy",
				Usage: "hierarchy to manage (repeatable); defaults to every mounted hierarchy this module supports",
			},
			&cli.StringFlag{
				Name:  "metrics-listen-address",
				Usage: "address the Prometheus metrics endpoint listens on",
				Value: ":9433",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.Bool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := machine.Config{Hierarchies: parseHierarchies(c.StringSlice("hierarchy"))}
	m, err := machine.Init(ctx, cfg)
	if err != nil {
		return err
	}
	logrus.Info("machine initialized")

	registerer := prometheus.DefaultRegisterer
	metrics.MustRegister(registerer)
	startMetricsServer(c.String("metrics-listen-address"))

	// m.CreateContainer is the hook a higher-level container façade (out
	// of scope here) would call per container; this binary only proves
	// the machine boots and the metrics endpoint answers.
	_ = m
	<-ctx.Done()
	logrus.Info("shutting down")
	return nil
}

func parseHierarchies(names []string) []hierarchy.Kind {
	var kinds []hierarchy.Kind
	for _, name := range names {
		k, ok := hierarchy.ParseName(name)
		if !ok {
			logrus.Warnf("unrecognized hierarchy %q, ignoring", name)
			continue
		}
		kinds = append(kinds, k)
	}
	return kinds
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logrus.Infof("metrics listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("metrics server exited: %v", err)
		}
	}()
}
