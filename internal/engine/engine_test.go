package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	uatomic "go.uber.org/atomic"

	"github.com/lc/ipfreq/internal/tally"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, host string) ([]string, error) {
	args := m.Called(ctx, host)
	var ips []string
	if v := args.Get(0); v != nil {
		ips = v.([]string)
	}
	return ips, args.Error(1)
}

// funcResolver adapts a function for tests that need per-call behaviour.
type funcResolver func(ctx context.Context, host string) ([]string, error)

func (f funcResolver) Resolve(ctx context.Context, host string) ([]string, error) {
	return f(ctx, host)
}

// syncBuffer guards writes from concurrent workers in tests that do not
// rely on the table lock.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimRight(b.buf.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

type EngineTestSuite struct {
	suite.Suite
	resolver *mockResolver
	table    *tally.Table
	out      *syncBuffer
}

func (s *EngineTestSuite) SetupTest() {
	s.resolver = new(mockResolver)
	s.table = tally.New()
	s.out = &syncBuffer{}
}

func (s *EngineTestSuite) TestWorkers() {
	testCases := []struct {
		name       string
		configured int
		domains    int
		expected   int
	}{
		{name: "configured below domains", configured: 10, domains: 50, expected: 10},
		{name: "configured above domains", configured: 100, domains: 3, expected: 3},
		{name: "zero configured", configured: 0, domains: 3, expected: 1},
		{name: "negative configured", configured: -5, domains: 3, expected: 1},
		{name: "no domains", configured: 100, domains: 0, expected: 1},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.expected, Workers(tc.configured, tc.domains))
		})
	}
}

func (s *EngineTestSuite) TestSameDomainThreeWays() {
	// all three lines normalize to example.com before reaching the engine
	s.resolver.On("Resolve", mock.Anything, "example.com").Return([]string{"93.184.216.34"}, nil)

	stats := New(s.resolver, s.table, s.out, DefaultWorkers).
		Run(context.Background(), []string{"example.com", "example.com", "example.com"})

	s.Equal(3, s.table.Get("93.184.216.34"))
	s.Equal(1, s.table.Len())
	s.Equal([]string{
		"example.com | 93.184.216.34",
		"example.com | 93.184.216.34",
		"example.com | 93.184.216.34",
	}, s.out.Lines())
	s.EqualValues(3, stats.Resolved)
	s.EqualValues(0, stats.Failed)
	s.EqualValues(3, stats.IPs)
	s.Equal(3, stats.Workers)
	s.NotEmpty(stats.RunID)
	s.resolver.AssertNumberOfCalls(s.T(), "Resolve", 3)
}

func (s *EngineTestSuite) TestFailuresAreIsolated() {
	s.resolver.On("Resolve", mock.Anything, "good.example").Return([]string{"192.0.2.1", "192.0.2.2"}, nil)
	s.resolver.On("Resolve", mock.Anything, "bad.example").Return(nil, errors.New("resolving: i/o timeout"))
	s.resolver.On("Resolve", mock.Anything, "empty.example").Return([]string{}, nil)

	stats := New(s.resolver, s.table, s.out, 2).
		Run(context.Background(), []string{"bad.example", "good.example", "empty.example", "bad.example"})

	s.EqualValues(1, stats.Resolved)
	s.EqualValues(3, stats.Failed)
	s.EqualValues(2, stats.IPs)
	s.Equal(2, s.table.Len())
	s.ElementsMatch([]string{"good.example | 192.0.2.1", "good.example | 192.0.2.2"}, s.out.Lines())
}

func (s *EngineTestSuite) TestPanicIsIsolated() {
	res := funcResolver(func(_ context.Context, host string) ([]string, error) {
		if host == "panic.example" {
			panic("resolver bug")
		}
		return []string{"198.51.100.1"}, nil
	})

	stats := New(res, s.table, s.out, 4).
		Run(context.Background(), []string{"a.example", "panic.example", "b.example"})

	s.EqualValues(2, stats.Resolved)
	s.EqualValues(1, stats.Failed)
	s.Equal(2, s.table.Get("198.51.100.1"))
}

func (s *EngineTestSuite) TestOutputLinesMatchRecordedIPs() {
	res := funcResolver(func(_ context.Context, host string) ([]string, error) {
		var n int
		_, _ = fmt.Sscanf(host, "d%d.example", &n)
		if n%5 == 0 {
			return nil, errors.New("servfail")
		}
		ips := make([]string, n%3+1)
		for i := range ips {
			ips[i] = fmt.Sprintf("10.%d.0.%d", n%7, i)
		}
		return ips, nil
	})

	domains := make([]string, 200)
	for i := range domains {
		domains[i] = fmt.Sprintf("d%d.example", i)
	}

	stats := New(res, s.table, s.out, 16).Run(context.Background(), domains)

	s.Len(s.out.Lines(), int(stats.IPs))
	s.Equal(stats.IPs, s.table.Total())
	s.EqualValues(40, stats.Failed)
}

func (s *EngineTestSuite) TestNoLostUpdatesUnderConcurrency() {
	const n = 2000

	domains := make([]string, n)
	for i := range domains {
		domains[i] = fmt.Sprintf("host%d.example", i)
	}
	res := funcResolver(func(_ context.Context, host string) ([]string, error) {
		var i int
		_, _ = fmt.Sscanf(host, "host%d.example", &i)
		return []string{fmt.Sprintf("10.%d.%d.%d", i>>16&0xff, i>>8&0xff, i&0xff)}, nil
	})

	for _, workers := range []int{1, 7, 64, 500, n * 2} {
		s.Run(fmt.Sprintf("workers=%d", workers), func() {
			table := tally.New()
			stats := New(res, table, nil, workers).Run(context.Background(), domains)

			s.EqualValues(n, stats.Resolved)
			s.EqualValues(n, table.Total())
			s.Equal(n, table.Len())
			for _, c := range table.Snapshot() {
				s.Equal(1, c.Count)
			}
		})
	}
}

func (s *EngineTestSuite) TestConcurrencyIsBounded() {
	const limit = 3

	var active, peak uatomic.Int64
	res := funcResolver(func(context.Context, string) ([]string, error) {
		cur := active.Inc()
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Dec()
		return []string{"203.0.113.9"}, nil
	})

	domains := make([]string, 30)
	for i := range domains {
		domains[i] = fmt.Sprintf("h%d.example", i)
	}

	stats := New(res, s.table, nil, limit).Run(context.Background(), domains)

	s.Equal(limit, stats.Workers)
	s.LessOrEqual(peak.Load(), int64(limit))
	s.Equal(30, s.table.Get("203.0.113.9"))
}

func (s *EngineTestSuite) TestEmptyDomainList() {
	stats := New(s.resolver, s.table, s.out, DefaultWorkers).Run(context.Background(), nil)

	s.Zero(stats.Domains)
	s.Equal(1, stats.Workers)
	s.Empty(s.out.Lines())
	s.resolver.AssertNotCalled(s.T(), "Resolve", mock.Anything, mock.Anything)
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
