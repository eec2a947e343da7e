// Package resolver discovers a device's own identity and network location.
//
// Both lookups are ordered chains of strategies. Each strategy returns a
// Result that is either Found(value) or NotFound(reason); the first Found
// value wins. A strategy that errors or panics is logged and skipped, so
// resolution never fails: when every strategy misses, the chain returns a
// fixed fallback.
//
// IdentitySource (serial number):
//
//	cpuinfo          "Serial" line of /proc/cpuinfo
//	cpuinfo-command  same line from `cat /proc/cpuinfo`
//	vcgencmd         line "28" of `vcgencmd otp_dump`
//	fallback         UNKNOWN_SERIAL
//
// LocationSource (IP address):
//
//	udp-probe        local address of a UDP socket "connected" to 8.8.8.8:80
//	hostname         name resolution of the local host name, IPv4 first
//	fallback         127.0.0.1
//
// The UDP probe sends no packets. Connecting a datagram socket only makes
// the kernel choose a route and source address.
//
// Commands, the dialer, name resolution and the host name are injectable
// through options so tests run without touching the host.
package resolver
