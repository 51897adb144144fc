package webctx

import (
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
)

var blockedHostPrefixes = []string{"127.", "0.", "10.", "192.168.", "169.254."}

// SafeURL reports whether raw may be fetched: http or https to a public host.
func SafeURL(raw string) bool {
	return CheckURL(raw) == nil
}

// CheckURL validates raw like SafeURL and returns an error wrapping ErrUnsafeURL on rejection.
func CheckURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrUnsafeURL, u.Scheme)
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrUnsafeURL)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %s", ErrUnsafeURL, host)
	}
	for _, p := range blockedHostPrefixes {
		if strings.HasPrefix(host, p) {
			return fmt.Errorf("%w: %s", ErrUnsafeURL, host)
		}
	}
	if in172Private(host) {
		return fmt.Errorf("%w: %s", ErrUnsafeURL, host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
			addr.IsLinkLocalMulticast() || addr.IsUnspecified() || addr.IsMulticast() {
			return fmt.Errorf("%w: %s", ErrUnsafeURL, host)
		}
	}
	return nil
}

// in172Private matches the 172.16.0.0/12 range by prefix so that partial forms are caught too.
func in172Private(host string) bool {
	rest, ok := strings.CutPrefix(host, "172.")
	if !ok {
		return false
	}
	octet, _, _ := strings.Cut(rest, ".")
	n, err := strconv.Atoi(octet)
	return err == nil && n >= 16 && n <= 31
}
