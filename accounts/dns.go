package accounts

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/bitfsorg/libsettle-go/ledger"
)

// DNSResolver looks up TXT records. Tests substitute a fake.
type DNSResolver interface {
	LookupTXT(name string) ([]string, error)
}

type defaultDNSResolver struct{}

func (defaultDNSResolver) LookupTXT(name string) ([]string, error) {
	return net.LookupTXT(name)
}

// DefaultDNSResolver resolves through the system resolver without DNSSEC.
var DefaultDNSResolver DNSResolver = defaultDNSResolver{}

const (
	// DefaultUpstream is the recursive resolver DNSSEC queries go to.
	DefaultUpstream = "8.8.8.8:53"

	dnssecTimeout = 10 * time.Second
	edns0BufSize  = 4096

	// payoutPrefix marks the TXT value carrying the payout reference.
	payoutPrefix = "settle-ref="
)

// DNSSECResolver sends TXT queries with the DO bit to Upstream and accepts
// only answers carrying the AD flag.
type DNSSECResolver struct {
	Upstream string
	Timeout  time.Duration
}

// Compile-time interface check.
var _ DNSResolver = (*DNSSECResolver)(nil)

// NewDNSSECResolver returns a resolver for upstream, DefaultUpstream when empty.
func NewDNSSECResolver(upstream string) *DNSSECResolver {
	if upstream == "" {
		upstream = DefaultUpstream
	}
	return &DNSSECResolver{Upstream: upstream, Timeout: dnssecTimeout}
}

// LookupTXT returns the TXT strings of name, each record's chunks joined.
func (r *DNSSECResolver) LookupTXT(name string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
	msg.RecursionDesired = true
	msg.SetEdns0(edns0BufSize, true)

	timeout := r.Timeout
	if timeout == 0 {
		timeout = dnssecTimeout
	}
	client := &dns.Client{Timeout: timeout}
	resp, _, err := client.Exchange(msg, r.Upstream)
	if err != nil {
		return nil, fmt.Errorf("%w: TXT %s: %w", ErrDNSLookupFailed, name, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: TXT %s: rcode %s", ErrDNSLookupFailed, name, dns.RcodeToString[resp.Rcode])
	}
	if !resp.AuthenticatedData {
		return nil, fmt.Errorf("%w: AD flag not set for TXT %s", ErrDNSSECValidationFailed, name)
	}

	var txts []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			txts = append(txts, strings.Join(txt.Txt, ""))
		}
	}
	if len(txts) == 0 {
		return nil, fmt.Errorf("%w: no TXT records for %s", ErrDNSLookupFailed, name)
	}
	return txts, nil
}

// Handle is an artist payout handle alias@domain.
type Handle struct {
	Alias  string
	Domain string
}

// ParseHandle splits "alias@domain".
func ParseHandle(s string) (Handle, error) {
	alias, domain, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok || alias == "" || domain == "" || strings.ContainsAny(alias, ". ") {
		return Handle{}, fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	return Handle{Alias: strings.ToLower(alias), Domain: strings.ToLower(strings.TrimSuffix(domain, "."))}, nil
}

// String returns "alias@domain".
func (h Handle) String() string { return h.Alias + "@" + h.Domain }

// RecordName is the TXT name a domain publishes the payout reference under:
// <alias>._settle.<domain>.
func (h Handle) RecordName() string { return h.Alias + "._settle." + h.Domain }

// ResolvePayoutRef looks up the holding reference published for handle.
// The first TXT value of the form "settle-ref=<40 hex>" wins.
func ResolvePayoutRef(resolver DNSResolver, handle Handle) (ledger.Ref, error) {
	if resolver == nil {
		resolver = DefaultDNSResolver
	}
	name := handle.RecordName()
	txts, err := resolver.LookupTXT(name)
	if err != nil {
		return ledger.Ref{}, fmt.Errorf("%w: %s: %w", ErrNoPayoutRecord, name, err)
	}
	for _, txt := range txts {
		txt = strings.TrimSpace(txt)
		if !strings.HasPrefix(txt, payoutPrefix) {
			continue
		}
		return ledger.ParseRef(strings.TrimSpace(strings.TrimPrefix(txt, payoutPrefix)))
	}
	return ledger.Ref{}, fmt.Errorf("%w: no %s TXT value at %s", ErrNoPayoutRecord, payoutPrefix, name)
}
