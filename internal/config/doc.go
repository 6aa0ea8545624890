// Package config provides configuration management for ipfreq.
//
// The package uses a Provider interface to abstract configuration loading,
// with the primary implementation reading a YAML file through the
// filesys.ReadFS abstraction.
//
// # Configuration Structure
//
//	resolver:
//	  servers: ["1.1.1.1:53"]  # empty = nameservers from /etc/resolv.conf
//	  timeout: 10s             # per query
//	  attempts: 5              # A-record attempts before giving up
//	  retry_delay: 2s          # pause between A-record attempts
//	pool:
//	  threads: 100             # upper bound on concurrent lookups
//	report:
//	  min_count: 2             # report IPs seen more than this many times
//	verbose: false             # log per-domain failures to stderr
//
// # Basic Usage
//
//	cfg, err := config.New("").Load() // ~/.ipfreq/config.yaml
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Validation
//
//   - resolver servers must not be blank
//   - resolver timeout must be at least 1 second
//   - resolver attempts must be at least 1
//   - resolver retry delay and report min count must not be negative
//
// Pool threads are not validated: the engine clamps any value to the
// range [1, number of domains].
//
// # Defaults
//
// A missing or empty file yields Default(). Keys missing from a file keep
// their default values, so a file that only sets pool.threads is valid.
package config
