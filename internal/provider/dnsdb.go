package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/model"
)

const dnsdbDefaultURL = "https://api.dnsdb.info/lookup"

// dnsdb queries Farsight DNSDB. It is the only provider that accepts CIDR
// labels, which the API expects with the slash replaced by a comma.
type dnsdb struct {
	info   Info
	base   string
	apiKey string
	http   *httpDoer
}

func newDNSDB(info Info, pc config.ProviderConfig, o *options) (Provider, error) {
	key, err := required(info.Section, "apikey", pc.Get("apikey"))
	if err != nil {
		return nil, err
	}
	base := pc.Get("url")
	if base == "" {
		base = dnsdbDefaultURL
	}
	return &dnsdb{
		info:   info,
		base:   strings.TrimSuffix(base, "/"),
		apiKey: key,
		http:   newHTTPDoer(info.Name, pc.Rate, o),
	}, nil
}

func (d *dnsdb) Info() Info { return d.info }

type dnsdbRecord struct {
	RRName        string      `json:"rrname"`
	RRType        string      `json:"rrtype"`
	RData         flexStrings `json:"rdata"`
	TimeFirst     flexInt     `json:"time_first"`
	TimeLast      flexInt     `json:"time_last"`
	ZoneTimeFirst flexInt     `json:"zone_time_first"`
	ZoneTimeLast  flexInt     `json:"zone_time_last"`
	Count         flexInt     `json:"count"`
}

// lookupURL returns the rdata endpoint for addresses and prefixes and the
// rrset endpoint for names.
func (d *dnsdb) lookupURL(label string, limit int) (string, bool) {
	var u string
	switch model.Classify(label) {
	case model.KindIPv4, model.KindIPv6:
		u = d.base + "/rdata/ip/" + url.PathEscape(label)
	case model.KindCIDR:
		// DNSDB writes prefixes as "addr,bits".
		addr, bits, _ := strings.Cut(label, "/")
		u = d.base + "/rdata/ip/" + url.PathEscape(addr) + "," + url.PathEscape(bits)
	case model.KindDomain:
		u = d.base + "/rrset/name/" + url.PathEscape(label)
	default:
		return "", false
	}
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	return u, true
}

func (d *dnsdb) Lookup(ctx context.Context, label string, limit int) ([]model.Result, error) {
	u, ok := d.lookupURL(label, limit)
	if !ok {
		return nil, nil
	}

	r, err := d.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-Key", d.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	// DNSDB answers 404 when it holds no records.
	if r.status == http.StatusNotFound {
		return nil, nil
	}
	if strings.Contains(string(r.body), "Error: unable to parse request") {
		return nil, fmt.Errorf("%s: %w: unable to parse request", d.info.Name, ErrProviderError)
	}
	if err := r.expectOK(d.info.Name); err != nil {
		return nil, err
	}

	records, err := jsonLines[dnsdbRecord](r.body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", d.info.Name, ErrMalformedReply, err)
	}

	var results []model.Result
	for _, rec := range records {
		first, last := rec.TimeFirst, rec.TimeLast
		if !first.valid {
			first, last = rec.ZoneTimeFirst, rec.ZoneTimeLast
		}
		for _, answer := range rec.RData {
			res := newResult(d.info.Name, r.elapsed, rec.RRName, answer, rec.RRType)
			if first.valid {
				res.FirstSeen = first.unixTime()
				res.LastSeen = last.unixTime()
				res.Count = rec.Count.intPtr()
			}
			results = append(results, res)
		}
	}
	return results, nil
}
