package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const configHeader = `hsha Configuration File

Every value below is the built-in default. Any key may be overridden with an
environment variable: HSHA_ followed by the key path in upper case with dots
replaced by underscores (e.g. HSHA_ADAPTERS_ECHO_POOL_SIZE=8).`

// InitConfig writes a sample configuration file to the default location.
//
// Returns the path of the written file. Fails if a file already exists there
// unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML, with a comment above each
// section and the less obvious keys.
func generateYAMLWithComments(cfg *Config) (string, error) {
	b := &nodeBuilder{}

	logging := b.mapping()
	b.set(logging, "level", cfg.Logging.Level, "DEBUG, INFO, WARN or ERROR")
	b.set(logging, "format", cfg.Logging.Format, "text or json")
	b.set(logging, "output", cfg.Logging.Output, "stdout, stderr or a file path")

	metricsNode := b.mapping()
	b.set(metricsNode, "enabled", cfg.Server.Metrics.Enabled, "")
	b.set(metricsNode, "port", cfg.Server.Metrics.Port, "")

	server := b.mapping()
	b.set(server, "shutdown_timeout", cfg.Server.ShutdownTimeout.String(), "Upper bound for stopping every adapter")
	b.set(server, "metrics", metricsNode, "Prometheus endpoint served at /metrics")

	e := cfg.Adapters.Echo

	acceptRate := b.mapping()
	b.set(acceptRate, "requests_per_second", e.AcceptRate.RequestsPerSecond, "0 disables accept throttling")
	b.set(acceptRate, "burst", e.AcceptRate.Burst, "0 uses requests_per_second")

	queue := b.mapping()
	b.set(queue, "max_depth", e.Queue.MaxDepth, "0 means unbounded; items beyond the limit are dropped")

	reply := b.mapping()
	b.set(reply, "identity", e.Reply.IdentityEnabled(), `Write "Worker id: <N>" before each reply`)

	echoNode := b.mapping()
	b.set(echoNode, "enabled", e.Enabled, "")
	b.set(echoNode, "port", e.Port, "")
	b.set(echoNode, "pool_size", e.PoolSize, "Number of worker goroutines")
	b.set(echoNode, "framing", e.Framing, "line (split on \\n, \\r or \\r\\n) or chunked (one item per read)")
	b.set(echoNode, "read_buffer_size", e.ReadBufferSize, "")
	b.set(echoNode, "max_line_length", e.MaxLineLength, "")
	b.set(echoNode, "max_connections", e.MaxConnections, "0 means unlimited")
	b.set(echoNode, "backlog", e.Backlog, "0 uses the system maximum")
	b.set(echoNode, "accept_rate", acceptRate, "")
	b.set(echoNode, "queue", queue, "")
	b.set(echoNode, "write_timeout", e.WriteTimeout.String(), "")
	b.set(echoNode, "shutdown_timeout", e.ShutdownTimeout.String(), "How long workers may drain the queue before connections are force-closed")
	b.set(echoNode, "reply", reply, "")
	b.set(echoNode, "metrics_log_interval", e.MetricsLogInterval.String(), "Log a counter summary this often; 0s disables")

	adapters := b.mapping()
	b.set(adapters, "echo", echoNode, "Half-sync/half-async echo server")

	proc := b.mapping()
	b.set(proc, "type", cfg.Processor.Type, "echo, upper or reverse")
	b.set(proc, "echo", cfg.Processor.Echo, "delay simulates slow processing (e.g. 3s)")
	b.set(proc, "upper", cfg.Processor.Upper, "")
	b.set(proc, "reverse", cfg.Processor.Reverse, "")

	root := b.mapping()
	b.set(root, "logging", logging, "Logging configuration")
	b.set(root, "server", server, "Server-wide settings")
	b.set(root, "adapters", adapters, "Network adapters")
	b.set(root, "processor", proc, "Processing routine run by the workers for every request")

	if b.err != nil {
		return "", b.err
	}

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: configHeader,
		Content:     []*yaml.Node{root},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// nodeBuilder assembles an ordered yaml.Node tree. The first encoding error
// is kept and later calls become no-ops.
type nodeBuilder struct {
	err error
}

func (b *nodeBuilder) mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

func (b *nodeBuilder) set(m *yaml.Node, key string, value any, comment string) {
	if b.err != nil {
		return
	}

	k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key, HeadComment: comment}

	var v *yaml.Node
	switch val := value.(type) {
	case *yaml.Node:
		v = val
	case int:
		v = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(val)}
	default:
		v = &yaml.Node{}
		if err := v.Encode(val); err != nil {
			b.err = fmt.Errorf("%s: %w", key, err)
			return
		}
	}

	m.Content = append(m.Content, k, v)
}
