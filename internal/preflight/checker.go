package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

const resolvConfPath = "/etc/resolv.conf"

func NewDnsResolver() (*DnsResolver, error) {
	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", resolvConfPath, err)
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	if len(servers) == 0 {
		return nil, errors.New("no nameservers configured")
	}
	return &DnsResolver{
		udpClient: &dns.Client{Net: "udp", Timeout: 3 * time.Second},
		tcpClient: &dns.Client{Net: "tcp", Timeout: 3 * time.Second},
		servers:   servers,
	}, nil
}

type DnsResolver struct {
	udpClient *dns.Client
	tcpClient *dns.Client
	servers   []string
}

func (r *DnsResolver) LookupA(ctx context.Context, domain string) ([]string, int, error) {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	req.RecursionDesired = true

	resp, _, err := r.udpClient.ExchangeContext(ctx, req, r.servers[0])
	if err != nil {
		return nil, 0, err
	}

	// truncated udp responses fall back to tcp
	if resp.Truncated {
		if resp2, _, err2 := r.tcpClient.ExchangeContext(ctx, req, r.servers[0]); err2 == nil && resp2 != nil {
			resp = resp2
		}
	}

	var addrs []string
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	return addrs, resp.Rcode, nil
}

func NewChecker(resolver Resolver) *Checker {
	return &Checker{resolver: resolver}
}

type Checker struct {
	resolver Resolver
}

func (c *Checker) Check(ctx context.Context, domains []string, expectedHost string) []Result {
	results := make([]Result, 0, len(domains))
	for _, domain := range domains {
		results = append(results, c.checkDomain(ctx, domain, expectedHost))
	}
	return results
}

func (c *Checker) checkDomain(ctx context.Context, domain string, expectedHost string) Result {
	addrs, rcode, err := c.resolver.LookupA(ctx, domain)
	if err != nil {
		return Result{Domain: domain, Status: StatusError, Detail: err.Error()}
	}
	if rcode == dns.RcodeNameError {
		return Result{Domain: domain, Status: StatusNxdomain, Detail: "no such domain"}
	}
	if len(addrs) == 0 {
		return Result{Domain: domain, Status: StatusNxdomain, Detail: "no A records"}
	}

	// a loopback upstream means nginx proxies locally; public DNS can
	// point anywhere that reaches this host, so resolvability is enough
	if expectedHost == "" || isLoopback(expectedHost) {
		return Result{Domain: domain, Addresses: addrs, Status: StatusOk}
	}

	for _, addr := range addrs {
		if addr == expectedHost {
			return Result{Domain: domain, Addresses: addrs, Status: StatusOk}
		}
	}
	return Result{
		Domain:    domain,
		Addresses: addrs,
		Status:    StatusMismatch,
		Detail:    fmt.Sprintf("expected %s", expectedHost),
	}
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
