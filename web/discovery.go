package web

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service the control API announces.
const ServiceType = "_lightwave._tcp"

// Advertise announces the API on port until the returned server is shut down.
func Advertise(port int, info ...string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "lightwave"
	}
	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("mDNS service: %w", err)
	}
	srv, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mDNS server: %w", err)
	}
	slog.Info("Advertising HTTP API", "service", ServiceType, "port", port)
	return srv, nil
}

// DiscoveredService is a control API found on the local network.
type DiscoveredService struct {
	Name       string
	Address    string
	Port       int
	TXTRecords []string
}

func (d DiscoveredService) URL() string {
	return fmt.Sprintf("http://%s:%d", d.Address, d.Port)
}

// Discover returns the first control API that answers within timeout.
func Discover(timeout time.Duration) (*DiscoveredService, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entriesCh
	params.Timeout = timeout
	params.DisableIPv6 = true

	go func() {
		defer close(entriesCh)
		if err := mdns.Query(params); err != nil {
			slog.Warn("mDNS query failed", "error", err)
		}
	}()

	for entry := range entriesCh {
		var address string
		switch {
		case entry.AddrV4 != nil:
			address = entry.AddrV4.String()
		case entry.AddrV6 != nil:
			address = fmt.Sprintf("[%s]", entry.AddrV6.String())
		default:
			continue
		}
		svc := &DiscoveredService{
			Name:       entry.Name,
			Address:    address,
			Port:       entry.Port,
			TXTRecords: entry.InfoFields,
		}
		slog.Info("Discovered lightwave API", "name", svc.Name, "address", svc.Address, "port", svc.Port)
		// Drain so the query goroutine can finish.
		go func() {
			for range entriesCh {
			}
		}()
		return svc, nil
	}
	return nil, fmt.Errorf("no %s service found within %s", ServiceType, timeout)
}
