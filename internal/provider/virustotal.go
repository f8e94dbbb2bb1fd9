package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/model"
)

const virusTotalDefaultURL = "https://www.virustotal.com/vtapi/v2/"

// virusTotal queries the VirusTotal v2 report API for resolutions.
type virusTotal struct {
	info   Info
	base   string
	apiKey string
	http   *httpDoer
}

func newVirusTotal(info Info, pc config.ProviderConfig, o *options) (Provider, error) {
	key, err := required(info.Section, "apikey", pc.Get("apikey"))
	if err != nil {
		return nil, err
	}
	base := pc.Get("url")
	if base == "" {
		base = virusTotalDefaultURL
	}
	doer := newHTTPDoer(info.Name, pc.Rate, o)
	// The public API answers 204 No Content once the request quota is used up.
	doer.throttled = func(status int, header http.Header) bool {
		return status == http.StatusNoContent || defaultThrottled(status, header)
	}
	return &virusTotal{
		info:   info,
		base:   base,
		apiKey: key,
		http:   doer,
	}, nil
}

func (p *virusTotal) Info() Info { return p.info }

type virusTotalReply struct {
	Resolutions []struct {
		LastResolved string `json:"last_resolved"`
		IPAddress    string `json:"ip_address"`
		Hostname     string `json:"hostname"`
	} `json:"resolutions"`
}

func (p *virusTotal) Lookup(ctx context.Context, label string, _ int) ([]model.Result, error) {
	params := url.Values{}
	var endpoint string
	switch model.Classify(label) {
	case model.KindIPv4:
		endpoint = "ip-address/report"
		params.Set("ip", label)
	case model.KindDomain:
		endpoint = "domain/report"
		params.Set("domain", label)
	default:
		return nil, nil
	}
	params.Set("apikey", p.apiKey)
	u := p.base + endpoint + "?" + params.Encode()

	r, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, err
	}
	if err := r.expectOK(p.info.Name); err != nil {
		return nil, err
	}

	var data virusTotalReply
	if err := json.Unmarshal(r.body, &data); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", p.info.Name, ErrMalformedReply, err)
	}

	var results []model.Result
	for _, row := range data.Resolutions {
		var res model.Result
		switch {
		case row.IPAddress != "":
			res = newResult(p.info.Name, r.elapsed, label, row.IPAddress, "A")
		case row.Hostname != "":
			res = newResult(p.info.Name, r.elapsed, row.Hostname, label, "A")
		default:
			continue
		}
		res.LastSeen = parseTime(row.LastResolved)
		results = append(results, res)
	}
	return results, nil
}
