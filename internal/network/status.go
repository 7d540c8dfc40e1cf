package network

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"photosync/internal/config"
)

// ConnectionType classifies the active network link.
type ConnectionType string

const (
	ConnectionUnknown  ConnectionType = "unknown"
	ConnectionWiFi     ConnectionType = "wifi"
	ConnectionEthernet ConnectionType = "ethernet"
	ConnectionCellular ConnectionType = "cellular"
)

// State is one connectivity observation.
type State struct {
	Online bool
	Type   ConnectionType
}

// Checker reports current connectivity. Implementations may fail (permission
// denied, probe unreachable in a way that is not a clean offline signal);
// callers decide how to treat a failed check.
type Checker interface {
	State(ctx context.Context) (State, error)
}

// HTTPChecker determines connectivity by issuing a HEAD request against a
// well-known probe URL and classifies the link from the active interface name.
type HTTPChecker struct {
	probeURL string
	client   *http.Client
}

// NewHTTPChecker builds a checker from configuration.
func NewHTTPChecker(cfg *config.Config) *HTTPChecker {
	timeout := time.Duration(cfg.Network.ProbeTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPChecker{
		probeURL: cfg.Network.ProbeURL,
		client:   &http.Client{Timeout: timeout},
	}
}

// State probes the configured URL. A transport error is reported as offline
// with a nil error: unreachable probe is a clean offline signal, not a
// checker failure. Building the request or enumerating interfaces failing is
// a checker failure.
func (c *HTTPChecker) State(ctx context.Context) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.probeURL, nil)
	if err != nil {
		return State{}, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return State{Online: false, Type: ConnectionUnknown}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return State{Online: false, Type: ConnectionUnknown}, nil
	}

	connType, err := activeConnectionType()
	if err != nil {
		return State{}, fmt.Errorf("classify connection: %w", err)
	}
	return State{Online: true, Type: connType}, nil
}

// activeConnectionType inspects up, non-loopback interfaces holding addresses
// and classifies the first match by its kernel naming convention.
func activeConnectionType() (ConnectionType, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ConnectionUnknown, fmt.Errorf("list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		return classifyInterface(iface.Name), nil
	}
	return ConnectionUnknown, nil
}

func classifyInterface(name string) ConnectionType {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "wl"):
		return ConnectionWiFi
	case strings.HasPrefix(lower, "ww"):
		return ConnectionCellular
	case strings.HasPrefix(lower, "en"), strings.HasPrefix(lower, "eth"):
		return ConnectionEthernet
	default:
		return ConnectionUnknown
	}
}
