package hiveagent

import (
	"context"
	"fmt"
	"iter"
	"net"
	"strconv"
	"time"
)

// discoveryTimeout bounds the check of a single candidate URL
const discoveryTimeout = 2 * time.Second

// generateUrls expands hosts and ports into http and https base URLs. Empty
// inputs fall back to HiveAgentAPIHosts and HiveAgentAPIPorts.
func generateUrls(hosts []string, ports []int) []string {
	if len(hosts) == 0 || hosts[0] == "" {
		hosts = HiveAgentAPIHosts
	}
	if len(ports) == 0 || ports[0] == 0 {
		ports = HiveAgentAPIPorts
	}

	urls := make([]string, 0, 2*len(hosts)*len(ports))
	for _, scheme := range []string{"http", "https"} {
		for _, host := range hosts {
			for _, port := range ports {
				urls = append(urls, scheme+"://"+net.JoinHostPort(host, strconv.Itoa(port)))
			}
		}
	}
	return urls
}

// localIPv4Addrs lists the non-loopback IPv4 addresses of this machine
func localIPv4Addrs() ([]string, error) {
	netAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}
	var addrs []string
	for _, netAddr := range netAddrs {
		if ipnet, ok := netAddr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			addrs = append(addrs, ipnet.IP.String())
		}
	}
	return addrs, nil
}

// discoveryCandidates yields the URLs for host first, then the URLs for the
// local network addresses. Interfaces are only listed once the first group
// is exhausted.
func discoveryCandidates(host string, port int, logger Logger) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, u := range generateUrls([]string{host}, []int{port}) {
			if !yield(u) {
				return
			}
		}

		addrs, err := localIPv4Addrs()
		if err != nil {
			logger.Debug("Skipping network interfaces: %v", err)
			return
		}
		if len(addrs) == 0 {
			return
		}
		for _, u := range generateUrls(addrs, []int{port}) {
			if !yield(u) {
				return
			}
		}
	}
}

// DiscoverHiveAgentServer looks for a Hive Agent server, first on the given
// (or default) host, then on the local network. It returns the base URL of
// the first candidate that serves sample prompts, without the version segment.
func DiscoverHiveAgentServer(ctx context.Context, host string, port int, version string, logger Logger) (string, error) {
	if logger == nil {
		logger = NewLogger(LogLevelInfo)
	}
	if version == "" {
		version = DefaultAPIVersion
	}

	t := NewTransport(nil, discoveryTimeout, quietLogger{logger})
	defer t.Close()

	logger.Debug("Attempting to discover Hive Agent server...")
	for candidate := range discoveryCandidates(host, port, logger) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if isServerRunning(ctx, t, candidate, version) {
			logger.Debug("Hive Agent server found at %s", candidate)
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no Hive Agent server found on the local network")
}

// isServerRunning reports whether baseURL answers the sample prompts call of
// the given API version.
func isServerRunning(ctx context.Context, t *Transport, baseURL, version string) bool {
	if _, err := ListSamplePrompts(ctx, t, normalizeBaseURL(baseURL, version)); err != nil {
		t.logger.Debug("No Hive Agent server at %s: %v", baseURL, err)
		return false
	}
	return true
}

// quietLogger reports request errors at debug level. Most discovery
// candidates are expected to fail.
type quietLogger struct {
	Logger
}

func (l quietLogger) Error(format string, v ...interface{}) {
	l.Logger.Debug(format, v...)
}
