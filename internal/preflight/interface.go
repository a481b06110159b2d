package preflight

import "context"

type Resolver interface {
	LookupA(ctx context.Context, domain string) (addrs []string, rcode int, err error)
}

type CheckerHandler interface {
	Check(ctx context.Context, domains []string, expectedHost string) []Result
}
