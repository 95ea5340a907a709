package ialib

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultMaxRedirects is the maximum number of redirect hops allowed,
// matching the default http.Client behavior.
const DefaultMaxRedirects = 10

var (
	// ErrTooManyRedirects is returned when a redirect chain exceeds the
	// configured hop limit.
	ErrTooManyRedirects = errors.New("redirect loop detected")

	// ErrCrossProtocolRedirect is returned when a redirect leaves
	// HTTP/HTTPS for another protocol.
	ErrCrossProtocolRedirect = errors.New("cross-protocol redirect not supported")

	// ErrInvalidProxyURL is returned for a proxy URL that cannot be
	// parsed or lacks a scheme or host.
	ErrInvalidProxyURL = errors.New("invalid proxy URL")

	// ErrUnsupportedProxyScheme is returned for proxy schemes other
	// than http, https and socks5.
	ErrUnsupportedProxyScheme = errors.New("unsupported proxy scheme")
)

var supportedProxySchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks5": true,
}

// NewHTTPClient builds the transfer client. With an empty proxyURL the
// client honors the standard proxy environment variables; otherwise the
// given http, https or socks5 proxy is used for every request. The
// redirect policy is always attached. A zero timeout means no per-request
// deadline, which long transfers need.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, ErrInvalidProxyURL
		}
		if !supportedProxySchemes[parsed.Scheme] {
			return nil, ErrUnsupportedProxyScheme
		}
		if parsed.Scheme == "socks5" {
			var auth *proxy.Auth
			if parsed.User != nil {
				pass, _ := parsed.User.Password()
				auth = &proxy.Auth{User: parsed.User.Username(), Password: pass}
			}
			dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
			if err != nil {
				return nil, err
			}
			transport.Proxy = nil
			transport.Dial = dialer.Dial
		} else {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       timeout,
		CheckRedirect: RedirectPolicy(DefaultMaxRedirects),
	}, nil
}

// RedirectPolicy returns a CheckRedirect function that caps the hop
// count, rejects redirects leaving HTTP/HTTPS and strips custom headers
// when the redirect crosses origins. The Range header survives the
// strip; resumed transfers depend on it.
func RedirectPolicy(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			lastURL := via[len(via)-1].URL.String()
			return fmt.Errorf("%w: exceeded %d hops (last URL: %s)",
				ErrTooManyRedirects, maxRedirects, lastURL)
		}
		if len(via) > 0 {
			prev := via[len(via)-1]
			if isHTTPScheme(prev.URL.Scheme) && !isHTTPScheme(req.URL.Scheme) {
				return fmt.Errorf("%w: %s -> %s",
					ErrCrossProtocolRedirect, prev.URL.Scheme, req.URL.Scheme)
			}
			if prev.URL.Host != req.URL.Host {
				stripUnsafeHeaders(req)
			}
		}
		return nil
	}
}

func isHTTPScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

// safeHeaders survive cross-origin redirects; everything else is
// stripped to keep credentials and tokens from leaking to a new host.
var safeHeaders = map[string]bool{
	"User-Agent":      true,
	"Accept":          true,
	"Accept-Language": true,
	"Accept-Encoding": true,
	"Range":           true,
}

func stripUnsafeHeaders(req *http.Request) {
	for key := range req.Header {
		if !safeHeaders[http.CanonicalHeaderKey(key)] {
			req.Header.Del(key)
		}
	}
}
