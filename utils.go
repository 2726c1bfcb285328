/*
File: utils.go
Description: Small helpers for address handling and log-safe strings.
*/

package main

import (
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/publicsuffix"
)

func getIPFromAddr(addr net.Addr) net.IP {
	if addr == nil {
		return nil
	}
	switch v := addr.(type) {
	case *net.UDPAddr:
		return v.IP
	case *net.TCPAddr:
		return v.IP
	case *net.IPAddr:
		return v.IP
	default:
		return parseHostIP(addr.String())
	}
}

// parseHostIP handles both "ip:port" and bare IPs.
func parseHostIP(s string) net.IP {
	host, _, err := net.SplitHostPort(s)
	if err != nil {
		return net.ParseIP(s)
	}
	return net.ParseIP(host)
}

func clientIPFromRequest(r *http.Request) net.IP {
	return parseHostIP(r.RemoteAddr)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// registrableDomain returns eTLD+1 for the host, or the host itself when there is none
// (IP literals, bare suffixes, single labels).
func registrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || net.ParseIP(strings.Trim(host, "[]")) != nil {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// isPublicSuffix reports whether host is itself a public suffix such as "com" or "co.uk".
func isPublicSuffix(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	suffix, _ := publicsuffix.PublicSuffix(host)
	return suffix == host
}
