package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/meshfs/meshfs/cluster"
	"github.com/meshfs/meshfs/config"
	"github.com/meshfs/meshfs/fs"
	"github.com/meshfs/meshfs/metrics"
	"github.com/meshfs/meshfs/partition"
	httpwire "github.com/meshfs/meshfs/wire/http"
	"github.com/meshfs/meshfs/wire/tcp"
)

var (
	tcpAddr     string
	httpAddr    string
	metricsAddr string
	pingEvery   time.Duration
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Run a cluster composition node over the configured partitions",
	Long: `
serve dials every partition named in the [partitions] section of the
config file, composes them into one logical filesystem per the cluster
thresholds in the [cluster] section, and exposes that filesystem to
callers over both the binary TCP protocol and the HTTP REST surface.`,
	RunE: runServe,
}

func init() {
	flags := serveCommand.Flags()
	flags.StringVar(&tcpAddr, "tcp-addr", ":6790", "address to serve the binary protocol on")
	flags.StringVar(&httpAddr, "http-addr", ":6791", "address to serve the HTTP REST surface on")
	flags.StringVar(&metricsAddr, "metrics-addr", ":6792", "address to serve /metrics on")
	flags.DurationVar(&pingEvery, "ping-interval", 10*time.Second, "how often to re-check dead partitions")
	rootCommand.AddCommand(serveCommand)
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := config.Load(configPath)
	if err != nil {
		return err
	}

	dir, err := buildDirectory(cmd.Context(), store)
	if err != nil {
		return err
	}

	rec := metrics.NewRecorder()
	reg := prometheus.NewRegistry()
	rec.MustRegister(reg)
	dir.SetRecorder(rec)

	cfg := clusterConfigFrom(store)
	if err := cfg.Validate(len(dir.All())); err != nil {
		return fmt.Errorf("cluster config: %w", err)
	}
	composer := cluster.New(dir, partition.NewRendezvous(), cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reconcileLoop(ctx, dir, pingEvery)

	errs := make(chan error, 3)
	go func() { errs <- serveTCP(ctx, composer) }()
	go func() { errs <- serveHTTP(ctx, composer) }()
	go func() { errs <- serveMetrics(ctx, reg) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		return err
	}
}

// buildDirectory dials every id=endpoint pair in the [partitions] section
// and wraps each connection as an fs.FS-compatible partition.Partition.
func buildDirectory(ctx context.Context, store *config.Store) (*partition.Directory, error) {
	endpoints := store.Section(config.PartitionsSection)
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("config has no [%s] section", config.PartitionsSection)
	}
	parts := make([]*partition.Partition, 0, len(endpoints))
	for id, endpoint := range endpoints {
		client, err := tcp.Dial(ctx, endpoint)
		if err != nil {
			fs.Infof(id, "initial dial failed, starting dead: %v", err)
			parts = append(parts, &partition.Partition{ID: partition.ID(id), FS: deadStartFS{endpoint: endpoint}})
			continue
		}
		parts = append(parts, &partition.Partition{ID: partition.ID(id), FS: tcp.NewRemoteFS(client)})
	}
	dir := partition.NewDirectory(parts...)
	dir.CheckAllPartitions(ctx)
	return dir, nil
}

// deadStartFS is a placeholder fs.FS for a partition whose initial dial
// failed at startup: every call fails, which CheckAllPartitions's first
// Ping.Error turns into an immediate MarkDead rather than a panic on a nil
// client.
type deadStartFS struct{ endpoint string }

func (d deadStartFS) err() error {
	return fmt.Errorf("partition %s never connected", d.endpoint)
}
func (d deadStartFS) Ping(context.Context) error { return d.err() }
func (d deadStartFS) Upload(context.Context, string) (fs.Consumer, error) { return nil, d.err() }
func (d deadStartFS) UploadSized(context.Context, string, uint64) (fs.Consumer, error) {
	return nil, d.err()
}
func (d deadStartFS) Append(context.Context, string, uint64) (fs.Consumer, error) {
	return nil, d.err()
}
func (d deadStartFS) Download(context.Context, string, uint64, uint64) (fs.Supplier, error) {
	return nil, d.err()
}
func (d deadStartFS) Delete(context.Context, string) error      { return d.err() }
func (d deadStartFS) DeleteAll(context.Context, []string) error { return d.err() }
func (d deadStartFS) CopyAll(context.Context, map[string]string) error {
	return d.err()
}
func (d deadStartFS) MoveAll(context.Context, map[string]string) error {
	return d.err()
}
func (d deadStartFS) Copy(context.Context, string, string) error { return d.err() }
func (d deadStartFS) Move(context.Context, string, string) error { return d.err() }
func (d deadStartFS) List(context.Context, string) (map[string]fs.Metadata, error) {
	return nil, d.err()
}
func (d deadStartFS) Info(context.Context, string) (fs.Metadata, bool, error) {
	return fs.Metadata{}, false, d.err()
}
func (d deadStartFS) InfoAll(context.Context, []string) (map[string]fs.Metadata, error) {
	return nil, d.err()
}

var _ fs.FS = deadStartFS{}

// clusterConfigFrom reads the [cluster] section, preferring an explicit
// replication_count (the convenience form) and falling back to the
// dead_threshold/upload_min/upload_max triple.
func clusterConfigFrom(store *config.Store) cluster.Config {
	section := store.Section(config.ClusterSection)
	var cfg cluster.Config
	if v, ok := section["replication_count"]; ok {
		if r, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.SetReplicationCount(uint32(r))
			return cfg
		}
	}
	cfg.DeadThreshold = parseUintOr(section["dead_threshold"], 0)
	cfg.UploadMin = parseUintOr(section["upload_min"], 1)
	cfg.UploadMax = parseUintOr(section["upload_max"], cfg.UploadMin)
	return cfg
}

func parseUintOr(s string, def uint32) uint32 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return def
	}
	return uint32(v)
}

func reconcileLoop(ctx context.Context, dir *partition.Directory, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dir.CheckDeadPartitions(ctx)
		}
	}
}

func serveTCP(ctx context.Context, composer *cluster.Composer) error {
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", tcpAddr, err)
	}
	fs.Infof("tcp", "serving on %s", tcpAddr)
	return tcp.NewServer(composer).Serve(ctx, ln)
}

func serveHTTP(ctx context.Context, composer *cluster.Composer) error {
	srv := &http.Server{Addr: httpAddr, Handler: httpwire.NewServer(composer)}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	fs.Infof("http", "serving on %s", httpAddr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func serveMetrics(ctx context.Context, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	fs.Infof("metrics", "serving on %s", metricsAddr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
