package services

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"syscall"
	"time"

	domain "file-manager-api/internal/domain/file_info"
)

const maxRedirects = 3

var errForbiddenAddr = errors.New("destination address is not allowed")

// newFetchClient dials through publicOnly unless allowPrivate is set. The
// check runs on the resolved address, so host names and redirects are
// covered as well.
func newFetchClient(timeout time.Duration, allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	if !allowPrivate {
		dialer.Control = publicOnly
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("%w: redirect to %s", errForbiddenAddr, req.URL.Scheme)
			}
			return nil
		},
	}
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublic(ip) {
		return fmt.Errorf("%w: %s", errForbiddenAddr, ip)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.IsUnspecified()
}

// checkSourceURL applies the host allowlist and rejects literal non-public
// addresses before any cache lookup or network access.
func checkSourceURL(u *url.URL, hosts []string, allowPrivate bool) error {
	host := strings.ToLower(u.Hostname())
	if len(hosts) > 0 && !slices.Contains(hosts, host) {
		return fmt.Errorf("%w: host %s is not allowed", domain.ErrInvalidInput, host)
	}
	if allowPrivate {
		return nil
	}
	if ip, err := netip.ParseAddr(host); err == nil && !isPublic(ip) {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, errForbiddenAddr)
	}
	return nil
}
