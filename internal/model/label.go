package model

import (
	"encoding/base32"
	"net/netip"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Kind is the shape of a query label.
type Kind int

const (
	// KindInvalid is an empty or unparseable label.
	KindInvalid Kind = iota
	// KindDomain is a DNS name.
	KindDomain
	// KindIPv4 is a bare IPv4 address.
	KindIPv4
	// KindIPv6 is a bare IPv6 address.
	KindIPv6
	// KindCIDR is an address prefix such as 192.0.2.0/24.
	KindCIDR
	// KindOnion is a Tor v3 onion name. Passive DNS sensors never see these.
	KindOnion
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindDomain:
		return "domain"
	case KindIPv4:
		return "ipv4"
	case KindIPv6:
		return "ipv6"
	case KindCIDR:
		return "cidr"
	case KindOnion:
		return "onion"
	default:
		return "invalid"
	}
}

// IsAddress reports whether the kind is a bare IP address.
func (k Kind) IsAddress() bool {
	return k == KindIPv4 || k == KindIPv6
}

const (
	onionSuffix    = ".onion"
	onionV3Version = 0x03
	checksumPrefix = ".onion checksum"
)

var (
	// mxWeightPattern matches answers such as "10 mx.example.org." that
	// carry the MX preference in front of the host name.
	mxWeightPattern = regexp.MustCompile(`^\d+ \w+\.`)

	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
)

// NormalizeQuery trims whitespace and strips a leading MX weight token,
// so "10 mx.example.org" and "mx.example.org" dedup to the same WorkItem.
func NormalizeQuery(query string) string {
	query = strings.TrimSpace(query)
	if mxWeightPattern.MatchString(query) {
		_, host, _ := strings.Cut(query, " ")
		return host
	}
	return query
}

// Classify returns the Kind of a query label.
func Classify(label string) Kind {
	label = strings.TrimSpace(label)
	if label == "" {
		return KindInvalid
	}

	if strings.Contains(label, "/") {
		if _, err := netip.ParsePrefix(label); err == nil {
			return KindCIDR
		}
		return KindInvalid
	}

	if addr, err := netip.ParseAddr(label); err == nil {
		if addr.Is4() || addr.Is4In6() {
			return KindIPv4
		}
		return KindIPv6
	}

	if strings.HasSuffix(strings.ToLower(label), onionSuffix) && IsValidOnionV3(label) {
		return KindOnion
	}

	if strings.ContainsAny(label, " \t") {
		return KindInvalid
	}
	return KindDomain
}

// IsValidOnionV3 checks the format, version byte and checksum of a v3 onion name.
func IsValidOnionV3(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, onionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}

	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return false
	}

	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)

	return checksum[0] == sum[0] && checksum[1] == sum[1]
}
