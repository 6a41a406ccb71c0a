package discovery

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// InstanceName is the mDNS instance name (default: "plcalarm").
	InstanceName string

	// Port is the TCP port being advertised.
	Port uint16

	// NetID is the publisher's AMS net ID, carried in the TXT record.
	NetID string

	// AMSPort is the publisher's AMS service port; zero omits it from
	// the TXT record.
	AMSPort uint16

	// Interface restricts advertising to one interface. Empty means all.
	Interface string

	// TTL overrides the record TTL when positive.
	TTL time.Duration
}

// Advertiser announces an alarm publisher endpoint via mDNS.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser. Advertising starts with Advertise.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.InstanceName == "" {
		config.InstanceName = "plcalarm"
	}
	return &Advertiser{config: config}
}

// Advertise registers the service. A previous registration is replaced.
func (a *Advertiser) Advertise() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	var ifaces []net.Interface
	if a.config.Interface != "" {
		iface, err := net.InterfaceByName(a.config.Interface)
		if err != nil {
			return fmt.Errorf("advertise interface: %w", err)
		}
		ifaces = []net.Interface{*iface}
	}

	server, err := zeroconf.Register(
		a.config.InstanceName,
		ServiceType,
		Domain,
		int(a.config.Port),
		EncodeTXT(a.config.NetID, a.config.AMSPort),
		ifaces,
		opts...,
	)
	if err != nil {
		return fmt.Errorf("register service: %w", err)
	}

	a.server = server
	return nil
}

// Shutdown stops advertising. Safe to call repeatedly.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
