// Package dnsresolver resolves host names to IP address strings for the
// ipfreq pipeline.
//
// # Resolution order
//
// Resolve asks for A records first. The outcome of each query is
// classified:
//
//   - success: the A addresses are returned.
//   - ErrNoAnswer: the name exists but has no A record. One AAAA query is
//     made with the same timeout and its outcome is final; a failed
//     fallback is never retried.
//   - anything else (timeout, ErrNXDomain, ErrServerFailure, ErrEmptyMsg,
//     network errors): the client waits RetryDelay and asks for A again,
//     up to Attempts queries in total. No delay follows the last attempt.
//
// When every attempt fails Resolve returns a nil slice and an error that
// aggregates the individual attempt errors with go.uber.org/multierr.
// Callers in the pipeline treat that as a silent failure and only log it
// in verbose mode.
//
// # Basic Usage
//
//	resolver := dnsresolver.New(10*time.Second,
//		dnsresolver.WithResolvers([]string{"1.1.1.1:53", "8.8.8.8:53"}),
//		dnsresolver.WithAttempts(5),
//		dnsresolver.WithRetryDelay(2*time.Second),
//	)
//	ips, err := resolver.Resolve(ctx, "example.com")
//	if err != nil {
//		if errors.Is(err, dnsresolver.ErrNXDomain) {
//			// name does not exist
//		}
//		return
//	}
//
// # Upstreams
//
// Servers come from WithResolvers, typically populated from the config
// file or from SystemResolvers("/etc/resolv.conf"). One server is chosen
// at random for every query. With no servers configured 1.1.1.1:53 is used.
//
// # Thread Safety
//
// A Client holds no mutable state after construction and is safe for
// concurrent use by many workers.
package dnsresolver
