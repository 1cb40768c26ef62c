package abacus

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ExporterConfigFromEnv starts from DefaultExporterConfig and overrides it
// from ABACUS_* environment variables:
//
//	ABACUS_NAMESPACE, ABACUS_SUBSYSTEM, ABACUS_SERVICE_NAME,
//	ABACUS_REMOTE_WRITE_URL, ABACUS_REMOTE_WRITE_INTERVAL_SECONDS,
//	ABACUS_INSTANCE_IP, ABACUS_LABELS (k=v,k=v), ABACUS_DNS_ENABLE,
//	ABACUS_DNS_UDP_SERVERS, ABACUS_DNS_TLS_SERVERS, ABACUS_DNS_DOH_ENDPOINTS.
//
// Unparsable numbers fall back to the default.
func ExporterConfigFromEnv() (ExporterConfig, error) {
	cfg := DefaultExporterConfig()
	cfg.Namespace = getOrDefault("ABACUS_NAMESPACE", cfg.Namespace)
	cfg.Subsystem = getOrDefault("ABACUS_SUBSYSTEM", cfg.Subsystem)
	cfg.ServiceName = getOrDefault("ABACUS_SERVICE_NAME", cfg.ServiceName)
	cfg.RemoteWriteURL = strings.TrimSpace(os.Getenv("ABACUS_REMOTE_WRITE_URL"))
	cfg.RemoteWriteInterval = time.Duration(getIntOrDefault("ABACUS_REMOTE_WRITE_INTERVAL_SECONDS", int(cfg.RemoteWriteInterval/time.Second))) * time.Second
	cfg.InstanceIP = strings.TrimSpace(os.Getenv("ABACUS_INSTANCE_IP"))
	cfg.DNSEnable = getBoolOrDefault("ABACUS_DNS_ENABLE", false)
	cfg.DNSUDPServers = getList("ABACUS_DNS_UDP_SERVERS")
	cfg.DNSTLSServers = getList("ABACUS_DNS_TLS_SERVERS")
	cfg.DNSDoHEndpoints = getList("ABACUS_DNS_DOH_ENDPOINTS")

	for _, pair := range getList("ABACUS_LABELS") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return ExporterConfig{}, fmt.Errorf("%w: ABACUS_LABELS entry %q is not k=v", ErrInvalidConfig, pair)
		}
		cfg.CustomLabels[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	if cfg.RemoteWriteInterval <= 0 {
		return ExporterConfig{}, fmt.Errorf("%w: ABACUS_REMOTE_WRITE_INTERVAL_SECONDS must be > 0", ErrInvalidConfig)
	}
	if cfg.DNSEnable && cfg.RemoteWriteURL == "" {
		return ExporterConfig{}, fmt.Errorf("%w: ABACUS_DNS_ENABLE requires ABACUS_REMOTE_WRITE_URL", ErrInvalidConfig)
	}

	return cfg, nil
}

func getOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getIntOrDefault(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getBoolOrDefault(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
