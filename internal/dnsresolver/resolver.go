// Package dnsresolver resolves a single host name to its IP addresses,
// A records first, with bounded retries and a one-shot AAAA fallback.
package dnsresolver

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/miekg/dns"
	"go.uber.org/multierr"
	"golang.org/x/net/idna"
)

var (
	// ErrNoAnswer is returned when the name exists but has no record of the
	// requested type.
	ErrNoAnswer = errors.New("no answer")
	// ErrNXDomain is returned when the name does not exist.
	ErrNXDomain = errors.New("nxdomain")
	// ErrServerFailure is returned for any other non-success response code.
	ErrServerFailure = errors.New("server failure")
	// ErrEmptyMsg is returned when the exchange yields no message.
	ErrEmptyMsg = errors.New("empty message")
	// ErrEmptyHostname is returned when an empty hostname is provided.
	ErrEmptyHostname = errors.New("empty hostname")
	// ErrTruncated is returned when a reply is still truncated after the
	// TCP retry, or no TCP client is configured.
	ErrTruncated = errors.New("truncated response")
)

const (
	// DefaultTimeout bounds a single query.
	DefaultTimeout = 10 * time.Second
	// DefaultAttempts is the number of A-record attempts before giving up.
	DefaultAttempts = 5
	// DefaultRetryDelay is the pause between failed A-record attempts.
	DefaultRetryDelay = 2 * time.Second

	// _udpSize is the EDNS0 buffer size advertised on every query.
	_udpSize = 4096
)

var _defaultResolver = "1.1.1.1:53"

var _ Clienter = (*Client)(nil)

// Clienter resolves a host to IP strings.
type Clienter interface {
	// Resolve returns the host's addresses, or a nil slice and the reason
	// resolution failed.
	Resolve(ctx context.Context, host string) ([]string, error)
}

// Exchanger defines the interface for DNS message exchange.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, a string) (r *dns.Msg, rtt time.Duration, err error)
}

// Client implements Clienter on top of github.com/miekg/dns. Queries go
// over Client (UDP); a truncated reply is asked again over TCPClient.
type Client struct {
	Client     Exchanger
	TCPClient  Exchanger
	Timeout    time.Duration
	Resolvers  []string
	Attempts   uint
	RetryDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// Opt is a function option for configuring the Client.
type Opt func(r *Client)

// New creates a Client with the given per-query timeout.
func New(timeout time.Duration, opts ...Opt) *Client {
	res := &Client{
		Timeout:    timeout,
		Attempts:   DefaultAttempts,
		RetryDelay: DefaultRetryDelay,
		sleep:      sleepContext,
	}

	for _, o := range opts {
		o(res)
	}

	if res.Client == nil {
		res.Client = &dns.Client{Timeout: res.Timeout}
	}
	if res.TCPClient == nil {
		res.TCPClient = &dns.Client{Net: "tcp", Timeout: res.Timeout}
	}
	return res
}

// WithResolvers sets the upstream servers ("host:port"). One is picked at
// random for every query. If empty, 1.1.1.1:53 is used.
func WithResolvers(resolvers []string) Opt {
	return func(r *Client) {
		r.Resolvers = resolvers
	}
}

// WithTimeout overrides the timeout provided to New.
func WithTimeout(timeout time.Duration) Opt {
	return func(r *Client) {
		r.Timeout = timeout
	}
}

// WithAttempts sets the total number of A-record attempts. Zero is treated as one.
func WithAttempts(n uint) Opt {
	return func(r *Client) {
		r.Attempts = n
	}
}

// WithRetryDelay sets the fixed pause between A-record attempts.
func WithRetryDelay(d time.Duration) Opt {
	return func(r *Client) {
		r.RetryDelay = d
	}
}

// WithExchanger replaces the underlying DNS client.
func WithExchanger(ex Exchanger) Opt {
	return func(r *Client) {
		r.Client = ex
	}
}

// WithTCPExchanger replaces the client used to repeat truncated queries.
func WithTCPExchanger(ex Exchanger) Opt {
	return func(r *Client) {
		r.TCPClient = ex
	}
}

// Resolve looks up A records for host, retrying transient failures with a
// fixed delay. When the server answers but holds no A record, a single
// AAAA query is made instead and its outcome is final.
//
// IP literals are returned as-is. Non-ASCII names are IDNA-encoded.
func (r *Client) Resolve(ctx context.Context, host string) ([]string, error) {
	if strings.TrimSpace(host) == "" {
		return nil, ErrEmptyHostname
	}
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}

	name := queryName(host)
	attempts := r.Attempts
	if attempts == 0 {
		attempts = 1
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var errs error
	for attempt := uint(1); attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		ips, err := r.Lookup(ctx, name, dns.TypeA)
		if err == nil {
			return ips, nil
		}

		if errors.Is(err, ErrNoAnswer) {
			ips, err = r.Lookup(ctx, name, dns.TypeAAAA)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("AAAA fallback: %w", err))
				return nil, fmt.Errorf("resolving %q: %w", host, errs)
			}
			return ips, nil
		}

		errs = multierr.Append(errs, fmt.Errorf("attempt %d: %w", attempt, err))
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, r.RetryDelay); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
	}

	return nil, fmt.Errorf("resolving %q: %w", host, errs)
}

// Lookup performs one query of qtype for name and classifies the outcome.
// The returned slice is non-empty whenever err is nil.
func (r *Client) Lookup(ctx context.Context, name string, qtype uint16) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	qt := dns.TypeToString[qtype]
	server := r.getResolver()
	resp, _, err := r.Client.ExchangeContext(ctx, newQuery(name, qtype), server)
	if err == nil && resp != nil && resp.Truncated {
		resp, err = r.exchangeTCP(ctx, name, qtype, server)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", qt, name, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%s %s: %w", qt, name, ErrEmptyMsg)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%s %s: %w", qt, name, ErrNXDomain)
	default:
		return nil, fmt.Errorf("%s %s: %w (%s)", qt, name, ErrServerFailure, dns.RcodeToString[resp.Rcode])
	}

	ips := parseIPs(resp, qtype)
	if len(ips) == 0 {
		return nil, fmt.Errorf("%s %s: %w", qt, name, ErrNoAnswer)
	}
	return ips, nil
}

// exchangeTCP repeats a truncated query against the same server over TCP.
func (r *Client) exchangeTCP(ctx context.Context, name string, qtype uint16, server string) (*dns.Msg, error) {
	if r.TCPClient == nil {
		return nil, ErrTruncated
	}
	resp, _, err := r.TCPClient.ExchangeContext(ctx, newQuery(name, qtype), server)
	if err != nil {
		return nil, fmt.Errorf("tcp: %w", err)
	}
	if resp != nil && resp.Truncated {
		return nil, ErrTruncated
	}
	return resp, nil
}

// newQuery builds a fresh request; ExchangeContext mutates *dns.Msg.
func newQuery(name string, qtype uint16) *dns.Msg {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(name), qtype)
	req.SetEdns0(_udpSize, false)
	return req
}

// SystemResolvers returns the nameservers listed in a resolv.conf style
// file as "host:port" pairs, or nil if the file cannot be parsed.
func SystemResolvers(path string) []string {
	cfg, err := dns.ClientConfigFromFile(path)
	if err != nil || cfg == nil {
		return nil
	}
	out := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		out = append(out, net.JoinHostPort(s, cfg.Port))
	}
	return out
}

// parseIPs returns the addresses in resp's answer section that match
// qtype. CNAMEs and other records in the chain are skipped.
func parseIPs(resp *dns.Msg, qtype uint16) []string {
	if resp == nil {
		return nil
	}

	var ips []string
	for _, rr := range resp.Answer {
		switch record := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				ips = append(ips, record.A.String())
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				ips = append(ips, record.AAAA.String())
			}
		}
	}
	return ips
}

// getResolver returns a random resolver from the list of resolvers.
func (r *Client) getResolver() string {
	if len(r.Resolvers) == 0 {
		return _defaultResolver
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(r.Resolvers))))
	if err != nil {
		return r.Resolvers[0]
	}

	return r.Resolvers[n.Int64()]
}

// queryName IDNA-encodes non-ASCII hosts. Hosts the encoder rejects are
// queried as given and left to fail at the server.
func queryName(host string) string {
	for i := 0; i < len(host); i++ {
		if host[i] >= utf8.RuneSelf {
			if ascii, err := idna.Lookup.ToASCII(host); err == nil {
				return ascii
			}
			return host
		}
	}
	return host
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
