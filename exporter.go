package abacus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/eryajf/promwrite"
	"go.uber.org/zap"
)

// ExporterConfig defines how collected metrics are shipped to a Prometheus
// remote-write endpoint.
type ExporterConfig struct {
	// Service identification
	Namespace   string
	Subsystem   string
	ServiceName string

	// Remote write configuration
	RemoteWriteURL      string
	RemoteWriteInterval time.Duration
	WriteTimeout        time.Duration

	// Instance information
	InstanceIP   string
	CustomLabels map[string]string

	// Optional logger
	Logger *zap.Logger

	// DNS resolver options (optional, for advanced use cases)
	DNSEnable          bool
	DNSCacheTTL        time.Duration
	DNSRefreshInterval time.Duration
	DNSTimeout         time.Duration
	DNSUDPServers      []string // e.g. ["1.1.1.1:53", "8.8.8.8:53"]
	DNSTLSServers      []string // e.g. ["1.1.1.1:853", "9.9.9.9:853"]
	DNSDoHEndpoints    []string // e.g. ["https://cloudflare-dns.com/dns-query"]
}

// DefaultExporterConfig returns a default configuration
func DefaultExporterConfig() ExporterConfig {
	return ExporterConfig{
		Namespace:           "app",
		Subsystem:           "prod",
		ServiceName:         "service",
		RemoteWriteInterval: 15 * time.Second,
		WriteTimeout:        15 * time.Second,
		CustomLabels:        make(map[string]string),
	}
}

// Exporter periodically collects metrics from its registered collectors and
// writes them to a remote-write endpoint.
type Exporter struct {
	config     ExporterConfig
	logger     *zap.Logger
	targetHost string
	resolver   *resolver

	mutex      sync.RWMutex
	collectors []Collector
	client     *promwrite.Client

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewExporter creates an exporter and registers the given collectors.
func NewExporter(config ExporterConfig, collectors ...Collector) (*Exporter, error) {
	if config.ServiceName == "" {
		return nil, fmt.Errorf("%w: service name cannot be empty", ErrInvalidConfig)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if config.InstanceIP == "" {
		ip, err := GetOutboundIPv4()
		if err != nil {
			logger.Warn("outbound IPv4 unavailable, using hostname as instance", zap.Error(err))
			ip, _ = os.Hostname()
		}
		config.InstanceIP = ip
	}

	var host string
	if config.RemoteWriteURL != "" {
		u, err := url.Parse(config.RemoteWriteURL)
		if err != nil {
			return nil, fmt.Errorf("%w: remote write url: %v", ErrInvalidConfig, err)
		}
		host = u.Hostname()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Exporter{
		config:     config,
		logger:     logger,
		targetHost: host,
		resolver: newResolver(dnsConfig{
			enabled:         config.DNSEnable,
			cacheTTL:        pickDuration(config.DNSCacheTTL, 10*time.Minute),
			refreshInterval: pickDuration(config.DNSRefreshInterval, 5*time.Minute),
			timeout:         pickDuration(config.DNSTimeout, 800*time.Millisecond),
			udpServers:      append([]string(nil), config.DNSUDPServers...),
			tlsServers:      append([]string(nil), config.DNSTLSServers...),
			dohEndpoints:    append([]string(nil), config.DNSDoHEndpoints...),
		}, logger),
		ctx:    ctx,
		cancel: cancel,
	}
	if config.RemoteWriteURL != "" {
		e.client = promwrite.NewClient(config.RemoteWriteURL)
	}
	for _, c := range collectors {
		e.RegisterCollector(c)
	}
	return e, nil
}

func pickDuration(v time.Duration, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// RegisterCollector adds a collector to every subsequent write.
func (e *Exporter) RegisterCollector(collector Collector) {
	if collector == nil {
		return
	}
	e.mutex.Lock()
	e.collectors = append(e.collectors, collector)
	e.mutex.Unlock()

	e.logger.Debug("registered metrics collector", zap.String("collector", collector.Name()))
}

// Metrics gathers the current metrics of every registered collector.
func (e *Exporter) Metrics() []Metric {
	e.mutex.RLock()
	collectors := append([]Collector(nil), e.collectors...)
	e.mutex.RUnlock()

	var metrics []Metric
	for _, collector := range collectors {
		metrics = append(metrics, collector.Collect()...)
	}
	return metrics
}

// Start launches the periodic write loop and, when enabled, the DNS refresh
// loop. Without a remote write URL it only logs a warning. Start is a no-op
// after the first call.
func (e *Exporter) Start() error {
	e.startOnce.Do(func() {
		if e.currentClient() == nil {
			e.logger.Warn("starting exporter without remote write URL")
			return
		}

		interval := pickDuration(e.config.RemoteWriteInterval, 15*time.Second)
		e.loop(interval, func() {
			if err := e.Flush(e.ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("failed to write metrics", zap.Error(err))
			}
		})

		if e.config.DNSEnable && e.targetHost != "" && net.ParseIP(e.targetHost) == nil {
			e.loop(e.resolver.cfg.refreshInterval, func() { e.RefreshDNS(false) })
		}
	})
	return nil
}

// loop runs fn every interval until Stop.
func (e *Exporter) loop(interval time.Duration, fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-e.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the background loops and waits for them to exit.
func (e *Exporter) Stop() {
	e.stopOnce.Do(func() {
		e.cancel()
		e.wg.Wait()
	})
}

func (e *Exporter) currentClient() *promwrite.Client {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.client
}

// Flush writes all current metrics immediately. On failure it forces one DNS
// refresh and retries if the remote address set changed.
func (e *Exporter) Flush(ctx context.Context) error {
	client := e.currentClient()
	if client == nil {
		return errors.New("no remote write client configured")
	}

	metrics := e.Metrics()
	if len(metrics) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, pickDuration(e.config.WriteTimeout, 15*time.Second))
	defer cancel()

	req := &promwrite.WriteRequest{TimeSeries: e.convertToTimeSeries(metrics)}
	if _, err := client.Write(ctx, req); err != nil {
		if e.RefreshDNS(true) {
			if _, retryErr := e.currentClient().Write(ctx, req); retryErr != nil {
				return fmt.Errorf("writing time series failed after dns refresh: %w", retryErr)
			}
			return nil
		}
		return fmt.Errorf("writing time series failed: %w", err)
	}
	return nil
}

// RefreshDNS re-resolves the remote-write host and recreates the client when
// its address set changed, forcing new connections.
func (e *Exporter) RefreshDNS(force bool) bool {
	if e.config.RemoteWriteURL == "" || !e.resolver.refresh(e.ctx, e.targetHost, force) {
		return false
	}
	e.mutex.Lock()
	e.client = promwrite.NewClient(e.config.RemoteWriteURL)
	e.mutex.Unlock()

	e.logger.Info("refreshed remote write client after dns update",
		zap.String("host", e.targetHost), zap.Strings("ips", e.resolver.addresses()))
	return true
}

// convertToTimeSeries converts metrics to promwrite time series, prefixing
// names with namespace and subsystem. Label precedence is metric labels over
// custom labels over the instance/target labels; __name__ always comes from
// the metric. Labels are unique and sorted by name.
func (e *Exporter) convertToTimeSeries(metrics []Metric) []promwrite.TimeSeries {
	result := make([]promwrite.TimeSeries, 0, len(metrics))
	prefix := e.config.Namespace + "_" + e.config.Subsystem

	for _, metric := range metrics {
		set := make(map[string]string, 4+len(e.config.CustomLabels)+len(metric.Labels))
		set["_instance_"] = e.config.InstanceIP
		set["instance"] = e.config.InstanceIP
		set["_target_"] = e.config.ServiceName
		for k, v := range e.config.CustomLabels {
			set[k] = v
		}
		for k, v := range metric.Labels {
			set[k] = v
		}
		set["__name__"] = prefix + "_" + metric.Name

		labels := make([]promwrite.Label, 0, len(set))
		for k, v := range set {
			labels = append(labels, promwrite.Label{Name: k, Value: v})
		}
		sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

		result = append(result, promwrite.TimeSeries{
			Labels: labels,
			Sample: promwrite.Sample{Time: metric.Timestamp, Value: metric.Value},
		})
	}
	return result
}

// GetOutboundIPv4 gets the outbound IPv4 address of the local machine
func GetOutboundIPv4() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
