package discovery

import (
	"errors"
	"net"
	"testing"

	"github.com/enbility/zeroconf/v3"
)

func TestEncodeTXT(t *testing.T) {
	txt := EncodeTXT("192.168.0.10.1.1", 110)
	if len(txt) != 2 {
		t.Fatalf("txt = %v, want 2 records", txt)
	}
	if txt[0] != "nid=192.168.0.10.1.1" || txt[1] != "port=110" {
		t.Errorf("txt = %v", txt)
	}

	txt = EncodeTXT("192.168.0.10.1.1", 0)
	if len(txt) != 1 {
		t.Errorf("txt = %v, want port omitted when zero", txt)
	}
}

func TestDecodeTXT(t *testing.T) {
	netID, amsPort, err := DecodeTXT([]string{"nid=192.168.0.10.1.1", "port=110"})
	if err != nil {
		t.Fatalf("DecodeTXT: %v", err)
	}
	if netID != "192.168.0.10.1.1" || amsPort != 110 {
		t.Errorf("decoded %q/%d", netID, amsPort)
	}
}

func TestDecodeTXTMissingNetID(t *testing.T) {
	_, _, err := DecodeTXT([]string{"port=110"})
	if !errors.Is(err, ErrMissingNetID) {
		t.Errorf("err = %v, want ErrMissingNetID", err)
	}
}

func TestDecodeTXTInvalidNetID(t *testing.T) {
	_, _, err := DecodeTXT([]string{"nid=192.168.0.10"})
	if err == nil {
		t.Error("five-part net id should be rejected")
	}
}

func TestDecodeTXTIgnoresUnknownAndMalformed(t *testing.T) {
	netID, amsPort, err := DecodeTXT([]string{
		"txtvers=1",
		"noequalsign",
		"port=notanumber",
		"nid=10.0.0.5.1.1",
	})
	if err != nil {
		t.Fatalf("DecodeTXT: %v", err)
	}
	if netID != "10.0.0.5.1.1" {
		t.Errorf("netID = %q", netID)
	}
	if amsPort != 0 {
		t.Errorf("amsPort = %d, want 0 for unparseable port", amsPort)
	}
}

func TestEntryToPublisher(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		HostName: "plc-01.local.",
		Port:     48898,
		Text:     EncodeTXT("192.168.0.10.1.1", 110),
		AddrIPv4: []net.IP{net.ParseIP("192.168.0.10")},
	}
	entry.Instance = "plc-01"

	svc := entryToPublisher(entry)
	if svc == nil {
		t.Fatal("entry should convert")
	}
	if svc.InstanceName != "plc-01" || svc.NetID != "192.168.0.10.1.1" || svc.AMSPort != 110 {
		t.Errorf("svc = %+v", svc)
	}
	if got := svc.Address(); got != "192.168.0.10:48898" {
		t.Errorf("Address() = %q", got)
	}
}

func TestEntryToPublisherDropsInvalid(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		Port: 48898,
		Text: []string{"txtvers=1"},
	}
	entry.Instance = "plc-01"
	if svc := entryToPublisher(entry); svc != nil {
		t.Errorf("svc = %+v, want nil for missing net id", svc)
	}
}

func TestMergeAndRemoveAddresses(t *testing.T) {
	addrs := mergeAddresses([]string{"192.168.0.10"}, []string{"192.168.0.10", "fe80::1"})
	if len(addrs) != 2 {
		t.Fatalf("addrs = %v, want deduplicated merge", addrs)
	}

	entry := &zeroconf.ServiceEntry{AddrIPv6: []net.IP{net.ParseIP("fe80::1")}}
	addrs = removeAddresses(addrs, entry)
	if len(addrs) != 1 || addrs[0] != "192.168.0.10" {
		t.Errorf("addrs = %v, want only the IPv4 address left", addrs)
	}
}

func TestPublisherAddressEmpty(t *testing.T) {
	svc := &PublisherService{Port: 48898}
	if got := svc.Address(); got != "" {
		t.Errorf("Address() = %q, want empty without resolved addresses", got)
	}
}
