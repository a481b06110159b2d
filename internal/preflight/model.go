package preflight

const (
	StatusOk       = "ok"
	StatusMismatch = "mismatch"
	StatusNxdomain = "nxdomain"
	StatusError    = "error"
)

// Result is the outcome of one domain lookup. Mismatches are warnings
// for the operator, never deploy failures: DNS propagation routinely
// lags behind a deploy.
type Result struct {
	Domain    string
	Addresses []string
	Status    string
	Detail    string
}

func (r Result) Ok() bool {
	return r.Status == StatusOk
}
