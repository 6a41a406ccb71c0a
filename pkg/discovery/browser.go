package discovery

import (
	"context"
	"net"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// BrowseTimeout is the default timeout for FindFirst.
const BrowseTimeout = 10 * time.Second

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to browse on.
	// Empty string means all interfaces.
	Interface string
}

// Browser discovers alarm publishers via mDNS.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates an mDNS browser.
func NewBrowser(config BrowserConfig) *Browser {
	return &Browser{config: config}
}

// Browse searches for publishers until the context is cancelled.
// Announcements are aggregated by instance name: addresses arriving from
// multiple interfaces merge into the already-emitted entry, and each
// publisher is emitted once. The returned channel is closed when browsing
// ends.
func (b *Browser) Browse(ctx context.Context) (<-chan *PublisherService, error) {
	out := make(chan *PublisherService)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	opts := b.browserOptions()

	go func() {
		defer close(out)

		services := make(map[string]*PublisherService)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToPublisher(entry)
				if svc == nil {
					continue
				}

				existing, found := services[svc.InstanceName]
				if found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.InstanceName] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// FindFirst returns the first discovered publisher, waiting at most
// BrowseTimeout unless the context expires sooner.
func (b *Browser) FindFirst(ctx context.Context) (*PublisherService, error) {
	ctx, cancel := context.WithTimeout(ctx, BrowseTimeout)
	defer cancel()

	services, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	select {
	case svc, ok := <-services:
		if !ok {
			return nil, ErrNotFound
		}
		return svc, nil
	case <-ctx.Done():
		return nil, ErrNotFound
	}
}

func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// entryToPublisher converts a zeroconf entry, dropping announcements with
// missing or invalid TXT addressing.
func entryToPublisher(entry *zeroconf.ServiceEntry) *PublisherService {
	netID, amsPort, err := DecodeTXT(entry.Text)
	if err != nil {
		return nil
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &PublisherService{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		NetID:        netID,
		AMSPort:      amsPort,
	}
}

// mergeAddresses adds new addresses to the existing list, avoiding
// duplicates.
func mergeAddresses(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range incoming {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the addresses announced by a disappearing entry.
func removeAddresses(existing []string, entry *zeroconf.ServiceEntry) []string {
	gone := make(map[string]bool, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		gone[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		gone[ip.String()] = true
	}

	kept := existing[:0]
	for _, addr := range existing {
		if !gone[addr] {
			kept = append(kept, addr)
		}
	}
	return kept
}
