package directory

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// probeTCP dials host:port with the given timeout and reports whether the
// connection was accepted.
func probeTCP(host string, port int, timeout time.Duration) bool {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		// treat as closed/filtered
		return false
	}
	conn.Close()
	return true
}

// networkSchemes maps URI schemes that denote a network-attached device to
// their default ports. Anything else (usb, file, cups local queues) is
// treated as local and trusts spooler readiness.
var networkSchemes = map[string]int{
	"ipp":    631,
	"ipps":   631,
	"http":   80,
	"https":  443,
	"socket": 9100,
	"lpd":    515,
}

// networkHostPort extracts the dialable host and port from a device URI.
// ok is false for local (non-network) URIs and for loopback hosts, where a
// dial would only reach the spooler itself.
func networkHostPort(uri string) (host string, port int, ok bool) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", 0, false
	}
	defPort, isNet := networkSchemes[strings.ToLower(u.Scheme)]
	if !isNet {
		return "", 0, false
	}
	host = u.Hostname()
	if host == "" || host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return "", 0, false
	}
	port = defPort
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	return host, port, true
}
