package fingerprint

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileGo      Profile = "go" // standard go TLS
)

// Transport returns an http.RoundTripper configured with the specified
// TLS fingerprint profile. If the profile is "go", it returns a standard
// http.Transport. Otherwise, it wraps http.Transport to use utls.UClient.
func Transport(p Profile) (http.RoundTripper, error) {
	if p == ProfileGo {
		return http.DefaultTransport.(*http.Transport).Clone(), nil
	}

	var clientHelloID utls.ClientHelloID
	switch p {
	case ProfileChrome:
		clientHelloID = utls.HelloChrome_Auto
	case ProfileFirefox:
		clientHelloID = utls.HelloFirefox_Auto
	default:
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	// We create a custom DialTLSContext function that wraps the standard TCP
	// dialer and then performs the uTLS handshake.
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := transport.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr // fallback if no port
		}

		uConn := utls.UClient(tcpConn, &utls.Config{ServerName: host}, clientHelloID)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake failed: %w", err)
		}

		return uConn, nil
	}

	return transport, nil
}

// ProfileFor picks the fingerprint profile matching a User-Agent string, so
// the TLS-level identity agrees with the HTTP-level one.
func ProfileFor(ua string) Profile {
	if strings.Contains(ua, "Firefox/") {
		return ProfileFirefox
	}
	return ProfileChrome
}
