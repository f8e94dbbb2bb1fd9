package model

import (
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// crawlableTypes are the record types whose query and answer are both
// names or addresses worth expanding during a crawl.
var crawlableTypes = map[uint16]bool{
	dns.TypeA:     true,
	dns.TypeAAAA:  true,
	dns.TypeNS:    true,
	dns.TypeCNAME: true,
	dns.TypePTR:   true,
}

// NormalizeRRType upper-cases and trims a record type as reported by a provider.
// Providers disagree on case ("a", "A", "cname"), so everything is compared
// after normalization.
func NormalizeRRType(rrtype string) string {
	return upper.String(strings.TrimSpace(rrtype))
}

// IsKnownRRType reports whether rrtype names a DNS record type.
func IsKnownRRType(rrtype string) bool {
	_, ok := dns.StringToType[NormalizeRRType(rrtype)]
	return ok
}

// IsCrawlable reports whether records of this type belong in the crawl stream.
// Only A, AAAA, NS, CNAME and PTR qualify.
func IsCrawlable(rrtype string) bool {
	t, ok := dns.StringToType[NormalizeRRType(rrtype)]
	return ok && crawlableTypes[t]
}

// TrimDot removes the trailing root dot from a fully qualified name.
func TrimDot(name string) string {
	name = strings.TrimSpace(name)
	if dns.IsFqdn(name) && name != "." {
		return strings.TrimSuffix(name, ".")
	}
	return name
}
