// Package provider adapts upstream passive DNS services to a single
// Provider interface.
//
// Every adapter turns a label (domain, IP address or CIDR) into a slice of
// model.Result. Adapters are constructed from their section of the
// configuration file through the registry in registry.go, which also maps
// the single-letter -d selectors to providers:
//
//	3  360.cn        cn360
//	b  BFK.de        bfk
//	c  CIRCL         circl
//	d  DNSDB         dnsdb
//	m  Mnemonic      mnemonic
//	o  OSC           osc
//	p  PassiveTotal  passivetotal
//	r  RiskIQ        riskiq
//	t  TCPIPUtils    tcpiputils
//	v  VirusTotal    virustotal
//
// All adapters share one HTTP helper that paces requests with a token
// bucket, retries replies that signal rate limiting a bounded number of
// times, and caps the size of a reply.
package provider
