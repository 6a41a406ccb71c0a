package discovery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/plcalarm/plcalarm-go/pkg/transport"
)

// Service type and domain constants.
const (
	// ServiceType is the DNS-SD service type publishers advertise.
	ServiceType = "_plcalarm._tcp"

	// Domain is the mDNS domain.
	Domain = "local."
)

// TXT record keys.
const (
	// TXTKeyNetID carries the publisher's AMS net ID.
	TXTKeyNetID = "nid"

	// TXTKeyPort carries the publisher's AMS service port.
	TXTKeyPort = "port"
)

// Discovery errors.
var (
	ErrMissingNetID = errors.New("announcement has no net id")
	ErrNotFound     = errors.New("no publisher found")
)

// PublisherService describes one discovered alarm publisher.
type PublisherService struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the advertised hostname.
	Host string

	// Port is the TCP port of the publisher's router.
	Port uint16

	// Addresses are the resolved IP addresses, aggregated across
	// interfaces.
	Addresses []string

	// NetID is the publisher's AMS net ID from the TXT record.
	NetID string

	// AMSPort is the publisher's AMS service port; zero when the TXT
	// record omits it.
	AMSPort uint16
}

// Address returns the first resolved host:port address, or empty when no
// address has been resolved yet.
func (s *PublisherService) Address() string {
	if len(s.Addresses) == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", s.Addresses[0], s.Port)
}

// EncodeTXT builds the TXT record strings for an announcement.
func EncodeTXT(netID string, amsPort uint16) []string {
	txt := []string{TXTKeyNetID + "=" + netID}
	if amsPort != 0 {
		txt = append(txt, TXTKeyPort+"="+strconv.Itoa(int(amsPort)))
	}
	return txt
}

// DecodeTXT extracts the AMS addressing from TXT record strings. The net ID
// is required and validated; an unparseable port is ignored.
func DecodeTXT(txt []string) (netID string, amsPort uint16, err error) {
	for _, record := range txt {
		key, value, found := strings.Cut(record, "=")
		if !found {
			continue
		}
		switch key {
		case TXTKeyNetID:
			netID = value
		case TXTKeyPort:
			if port, perr := strconv.ParseUint(value, 10, 16); perr == nil {
				amsPort = uint16(port)
			}
		}
	}

	if netID == "" {
		return "", 0, ErrMissingNetID
	}
	if _, err := transport.ParseNetID(netID); err != nil {
		return "", 0, fmt.Errorf("announcement net id: %w", err)
	}
	return netID, amsPort, nil
}
