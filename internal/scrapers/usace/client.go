// client.go is the http transport of the scraper, it knows nothing about
// WebForms, it just moves requests, cookies and redirects around.

package usace

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"usace-scraper/internal/components/assert"
	"usace-scraper/internal/components/telemetry"
	"usace-scraper/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_fetch = "client.fetch"

	defaultTimeout   = time.Second * 30
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	maxRedirects     = 10
)

type Request struct {
	Method  string
	URL     string
	Form    url.Values
	Headers map[string]string
	Cookie  string
}

type Response struct {
	Status int
	Header http.Header
	Body   string
	// URL is the final url after redirects were followed.
	URL string
	// Cookies holds every Set-Cookie seen along the redirect chain, in order.
	Cookies []*http.Cookie
}

func (r Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

type ClientOptions struct {
	// defaults to 30 seconds
	Timeout time.Duration
	// 0 means unlimited
	RequestsPerSecond float64
	// InsecureTLSHosts lists the hosts whose certificate chain is not verified,
	// every other host is verified normally.
	InsecureTLSHosts []string
	// RootCAs replaces the system roots when set.
	RootCAs   *x509.CertPool
	UserAgent string
	// Output receives a dump of every exchange, it can be nil.
	Output restyutil.InstrumentOutput
}

type Client struct {
	http    *resty.Client
	tel     telemetry.API
	timeout time.Duration
}

func NewClient(tel telemetry.API, opts ClientOptions) *Client {
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("transport", tel)

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	httpClient := resty.New()
	// the session cookie is carried explicitly by the sequencer
	httpClient.SetCookieJar(nil)
	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	httpClient.SetTransport(newTransport(opts.InsecureTLSHosts, opts.RootCAs))

	if opts.RequestsPerSecond > 0 {
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, "usace-scraper/http")
	restyutil.InstrumentClient(httpClient, opts.Output)

	return &Client{http: httpClient, tel: tel, timeout: opts.Timeout}
}

// newTransport dials TLS with a config built for the dialed host, certificate
// verification is skipped for the listed hosts only. Some government hosts
// serve a chain that does not verify against the system roots. Every other
// host, including bare IP addresses, gets full chain and name verification.
func newTransport(insecureHosts []string, roots *x509.CertPool) *http.Transport {
	allowed := map[string]struct{}{}
	for _, h := range insecureHosts {
		allowed[strings.ToLower(h)] = struct{}{}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{RootCAs: roots}
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		dialer := &tls.Dialer{Config: tlsConfigFor(host, allowed, roots)}
		return dialer.DialContext(ctx, network, addr)
	}
	return transport
}

func tlsConfigFor(host string, allowed map[string]struct{}, roots *x509.CertPool) *tls.Config {
	// ServerName drives verification, crypto/tls checks IP SANs for addresses
	cfg := &tls.Config{
		ServerName: host,
		RootCAs:    roots,
	}
	if _, ok := allowed[strings.ToLower(host)]; ok {
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	}
	return false
}

func classifyError(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// Fetch performs a request, following redirects by issuing a GET to the
// Location target with the body dropped. The whole redirect chain shares one
// timeout. Non-2xx statuses are not errors here, callers decide which steps
// require success.
func (c *Client) Fetch(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := req.URL
	form := req.Form
	cookie := req.Cookie

	var seenCookies []*http.Cookie
	for hop := 0; hop <= maxRedirects; hop++ {
		r := c.http.R().SetContext(ctx)
		for k, v := range req.Headers {
			r.SetHeader(k, v)
		}
		if cookie != "" {
			r.SetHeader("Cookie", cookie)
		}
		if form != nil && method != http.MethodGet {
			r.SetFormDataFromValues(form)
		}

		res, err := r.Execute(method, target)
		if err != nil {
			err = &TransportError{Op: method, URL: target, Err: classifyError(ctx, err)}
			c.tel.ReportBroken(report_client_fetch, err)
			return Response{}, err
		}

		setCookies := res.Cookies()
		seenCookies = append(seenCookies, setCookies...)

		if !isRedirect(res.StatusCode()) {
			return Response{
				Status:  res.StatusCode(),
				Header:  res.Header(),
				Body:    res.String(),
				URL:     target,
				Cookies: seenCookies,
			}, nil
		}

		location := res.Header().Get("Location")
		if location == "" {
			err = &TransportError{
				Op:     method,
				URL:    target,
				Status: res.StatusCode(),
				Err:    fmt.Errorf("%w: redirect without location", ErrUnexpectedStatus),
			}
			c.tel.ReportBroken(report_client_fetch, err)
			return Response{}, err
		}
		next, err := resolveLocation(target, location)
		if err != nil {
			err = &TransportError{Op: method, URL: target, Status: res.StatusCode(), Err: err}
			c.tel.ReportBroken(report_client_fetch, err)
			return Response{}, err
		}

		c.tel.ReportDebug("following redirect", res.StatusCode(), target, next)
		method = http.MethodGet
		form = nil
		cookie = MergeCookies(cookie, setCookies)
		target = next
	}

	err := &TransportError{Op: req.Method, URL: req.URL, Err: ErrTooManyRedirects}
	c.tel.ReportBroken(report_client_fetch, err)
	return Response{}, err
}

func resolveLocation(base, location string) (string, error) {
	baseUrl, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	locUrl, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse location '%s': %w", location, err)
	}
	return baseUrl.ResolveReference(locUrl).String(), nil
}

// MergeCookies applies Set-Cookie values onto a Cookie header value, cookies
// are replaced by name and removed when the server expires them.
func MergeCookies(existing string, set []*http.Cookie) string {
	header := http.Header{}
	if existing != "" {
		header.Set("Cookie", existing)
	}
	current := (&http.Request{Header: header}).Cookies()

	for _, c := range set {
		expired := c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now()))
		idx := -1
		for i, cur := range current {
			if cur.Name == c.Name {
				idx = i
				break
			}
		}
		switch {
		case expired && idx >= 0:
			current = append(current[:idx], current[idx+1:]...)
		case expired:
		case idx >= 0:
			current[idx] = &http.Cookie{Name: c.Name, Value: c.Value}
		default:
			current = append(current, &http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	parts := make([]string, len(current))
	for i, c := range current {
		parts[i] = fmt.Sprintf("%s=%s", c.Name, c.Value)
	}
	return strings.Join(parts, "; ")
}
