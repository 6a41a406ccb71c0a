// Package discovery implements mDNS/DNS-SD discovery of alarm publishers.
//
// Publishers advertise the service type _plcalarm._tcp. The TXT record
// carries the AMS addressing a client needs beyond the TCP endpoint:
//
//	nid=<net id>     publisher's AMS net ID (required)
//	port=<ams port>  publisher's AMS service port (optional)
//
// The Browser aggregates announcements by instance name across interfaces
// and emits each publisher once; the Advertiser is the publishing side,
// used by gateways and by test publishers.
package discovery
