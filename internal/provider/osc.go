package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/model"
)

const (
	oscDefaultURL     = "https://api.oscontext.com/api/v2/domainsquery"
	oscDefaultTimeout = 20 * time.Second
	oscPageSize       = "250"
)

// osc queries the Open Source Context domains API.
type osc struct {
	info  Info
	base  string
	token string
	http  *httpDoer
}

func newOSC(info Info, pc config.ProviderConfig, o *options) (Provider, error) {
	token, err := required(info.Section, "apikey", pc.Get("apikey"))
	if err != nil {
		return nil, err
	}
	base := pc.Get("url")
	if base == "" {
		base = oscDefaultURL
	}
	return &osc{
		info:  info,
		base:  base,
		token: token,
		http:  newHTTPDoer(info.Name, pc.Rate, o),
	}, nil
}

func (p *osc) Info() Info { return p.info }

type oscReply struct {
	Results []struct {
		QType    flexInt `json:"qtype"`
		Type     string  `json:"type"`
		Domain   string  `json:"domain"`
		Value    string  `json:"value"`
		Date     string  `json:"date"`
		LastSeen string  `json:"last_seen"`
	} `json:"results"`
}

func (p *osc) Lookup(ctx context.Context, label string, _ int) ([]model.Result, error) {
	var q string
	switch model.Classify(label) {
	case model.KindIPv4:
		q = "value_ip:" + label
	case model.KindDomain:
		q = "qname:" + label
	default:
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("size", oscPageSize)
	params.Set("token", p.token)
	u := p.base + "?" + params.Encode()

	r, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Referer", "clitool")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if r.status == http.StatusNotFound {
		return nil, nil
	}
	if strings.Contains(string(r.body), "Error: unable to parse request") {
		return nil, fmt.Errorf("%s: %w: unable to parse request", p.info.Name, ErrProviderError)
	}
	if err := r.expectOK(p.info.Name); err != nil {
		return nil, err
	}

	var data oscReply
	if err := json.Unmarshal(r.body, &data); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", p.info.Name, ErrMalformedReply, err)
	}

	var results []model.Result
	for _, row := range data.Results {
		var rrtype string
		switch {
		case row.QType.valid && row.QType.value == 1:
			rrtype = "A"
		case row.Type == "soa_email":
			rrtype = "SOA"
		default:
			continue
		}
		res := newResult(p.info.Name, r.elapsed, row.Domain, row.Value, rrtype)
		res.FirstSeen = parseTime(row.Date)
		res.LastSeen = parseTime(row.LastSeen)
		results = append(results, res)
	}
	return results, nil
}
