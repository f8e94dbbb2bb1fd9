package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/model"
)

const (
	riskIQDefaultServer     = "ws.riskiq.net"
	riskIQDefaultVersion    = "v1"
	riskIQDefaultMaxResults = 1000
)

// riskIQ queries the RiskIQ DNS API with basic authentication.
type riskIQ struct {
	info    Info
	base    string
	token   string
	privKey string
	http    *httpDoer
}

func newRiskIQ(info Info, pc config.ProviderConfig, o *options) (Provider, error) {
	token, err := required(info.Section, "api_token", pc.Get("api_token"))
	if err != nil {
		return nil, err
	}
	privKey, err := required(info.Section, "api_private_key", pc.Get("api_private_key"))
	if err != nil {
		return nil, err
	}

	base := pc.Get("url")
	if base == "" {
		server := pc.Get("api_server")
		if server == "" {
			server = riskIQDefaultServer
		}
		version := pc.Get("api_version")
		if version == "" {
			version = riskIQDefaultVersion
		}
		base = "https://" + server + "/" + version
	}

	return &riskIQ{
		info:    info,
		base:    strings.TrimSuffix(base, "/"),
		token:   token,
		privKey: privKey,
		http:    newHTTPDoer(info.Name, pc.Rate, o),
	}, nil
}

func (p *riskIQ) Info() Info { return p.info }

type riskIQReply struct {
	Records []struct {
		Name      string   `json:"name"`
		RRType    string   `json:"rrtype"`
		FirstSeen string   `json:"firstSeen"`
		LastSeen  string   `json:"lastSeen"`
		Count     flexInt  `json:"count"`
		Data      []string `json:"data"`
	} `json:"records"`
}

func (p *riskIQ) Lookup(ctx context.Context, label string, limit int) ([]model.Result, error) {
	maxResults := riskIQDefaultMaxResults
	if limit > 0 {
		maxResults = limit
	}
	params := url.Values{}
	params.Set("rrType", "")
	params.Set("maxResults", strconv.Itoa(maxResults))

	var endpoint string
	switch model.Classify(label) {
	case model.KindIPv4:
		endpoint = "/dns/data"
		params.Set("ip", label)
	case model.KindDomain:
		endpoint = "/dns/name"
		params.Set("name", label)
	default:
		return nil, nil
	}
	u := p.base + endpoint + "?" + params.Encode()

	r, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth(p.token, p.privKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.expectOK(p.info.Name); err != nil {
		return nil, err
	}

	var data riskIQReply
	if err := json.Unmarshal(r.body, &data); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", p.info.Name, ErrMalformedReply, err)
	}

	var results []model.Result
	for _, rec := range data.Records {
		for _, datum := range rec.Data {
			res := newResult(p.info.Name, r.elapsed, rec.Name, datum, rec.RRType)
			res.FirstSeen = parseTime(rec.FirstSeen)
			res.LastSeen = parseTime(rec.LastSeen)
			res.Count = rec.Count.intPtr()
			results = append(results, res)
		}
	}
	return results, nil
}
