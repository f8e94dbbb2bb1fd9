package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/passivedns/internal/config"
)

// factory constructs a provider from its config section.
type factory func(info Info, pc config.ProviderConfig, o *options) (Provider, error)

type registration struct {
	info  Info
	build factory
}

// registry lists every provider in -d letter order. The order here is the
// order in which dispatch merges provider contributions.
var registry = []registration{
	{Info{Name: "360.cn", Section: "cn360", Letter: '3'}, newCN360},
	{Info{Name: "BFK.de", Section: "bfk", Letter: 'b'}, newBFK},
	{Info{Name: "CIRCL", Section: "circl", Letter: 'c'}, newCIRCL},
	{Info{Name: "DNSDB", Section: "dnsdb", Letter: 'd'}, newDNSDB},
	{Info{Name: "Mnemonic", Section: "mnemonic", Letter: 'm'}, newMnemonic},
	{Info{Name: "OSC", Section: "osc", Letter: 'o', DefaultTimeout: oscDefaultTimeout}, newOSC},
	{Info{Name: "PassiveTotal", Section: "passivetotal", Letter: 'p'}, newPassiveTotal},
	{Info{Name: "RiskIQ", Section: "riskiq", Letter: 'r'}, newRiskIQ},
	{Info{Name: "TCPIPUtils", Section: "tcpiputils", Letter: 't'}, newTCPIPUtils},
	{Info{Name: "VirusTotal", Section: "virustotal", Letter: 'v'}, newVirusTotal},
}

// Registered returns the metadata of every known provider in letter order.
func Registered() []Info {
	infos := make([]Info, 0, len(registry))
	for _, r := range registry {
		infos = append(infos, r.info)
	}
	return infos
}

// Lookup returns the metadata of the provider with the given config section key.
func Lookup(section string) (Info, bool) {
	section = strings.ToLower(strings.TrimSpace(section))
	for _, r := range registry {
		if r.info.Section == section {
			return r.info, true
		}
	}
	return Info{}, false
}

// ByLetter returns the metadata of the provider selected by letter.
func ByLetter(letter rune) (Info, bool) {
	for _, r := range registry {
		if r.info.Letter == letter {
			return r.info, true
		}
	}
	return Info{}, false
}

// ParseLetters converts a -d argument such as "dvt" or "d,v,t" to config
// section keys. Duplicate letters are collapsed.
func ParseLetters(letters string) ([]string, error) {
	var sections []string
	seen := make(map[string]bool)
	for _, l := range letters {
		if l == ',' || l == ' ' {
			continue
		}
		info, ok := ByLetter(l)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLetter, l)
		}
		if seen[info.Section] {
			continue
		}
		seen[info.Section] = true
		sections = append(sections, info.Section)
	}
	return sections, nil
}

// New constructs the provider registered under section.
func New(section string, pc config.ProviderConfig, opts ...Option) (Provider, error) {
	o := newOptions(opts)
	section = strings.ToLower(strings.TrimSpace(section))
	for _, r := range registry {
		if r.info.Section == section {
			return r.build(r.info, pc, o)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, section)
}

// Build constructs the providers named by sections, reading their settings
// from file. A nil file is treated as empty. Providers are returned in
// registry order regardless of the order of sections.
func Build(sections []string, file *config.File, opts ...Option) ([]Provider, error) {
	if file == nil {
		file = config.NewFile()
	}

	wanted := make(map[string]bool, len(sections))
	for _, s := range sections {
		s = strings.ToLower(strings.TrimSpace(s))
		if _, ok := Lookup(s); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, s)
		}
		wanted[s] = true
	}

	var providers []Provider
	for _, r := range registry {
		if !wanted[r.info.Section] {
			continue
		}
		p, err := New(r.info.Section, file.Provider(r.info.Section), opts...)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// Timeout returns the lookup timeout for a provider: the config section's
// timeout, then the provider's own default, then fallback.
func Timeout(info Info, file *config.File, fallback time.Duration) time.Duration {
	if file != nil {
		if t := file.Provider(info.Section).Timeout; t > 0 {
			return t
		}
	}
	if info.DefaultTimeout > 0 {
		return info.DefaultTimeout
	}
	return fallback
}
