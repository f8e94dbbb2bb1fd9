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

const tcpIPUtilsDefaultURL = "https://www.utlsapi.com/api.php?version=1.0&apikey="

// tcpIPUtils queries the TCPIPUtils API. Addresses are looked up as domain
// neighbours and names as DNS history.
type tcpIPUtils struct {
	info   Info
	base   string
	apiKey string
	http   *httpDoer
}

func newTCPIPUtils(info Info, pc config.ProviderConfig, o *options) (Provider, error) {
	key, err := required(info.Section, "apikey", pc.Get("apikey"))
	if err != nil {
		return nil, err
	}
	base := pc.Get("url")
	if base == "" {
		base = tcpIPUtilsDefaultURL
	}
	return &tcpIPUtils{
		info:   info,
		base:   base,
		apiKey: key,
		http:   newHTTPDoer(info.Name, pc.Rate, o),
	}, nil
}

func (p *tcpIPUtils) Info() Info { return p.info }

type tcpIPUtilsReply struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type tcpIPUtilsData struct {
	Question string `json:"question"`
	IPv4     []struct {
		IP         string `json:"ip"`
		UpdateDate string `json:"updatedate"`
	} `json:"ipv4"`
	IPv6 []struct {
		IP         string `json:"ip"`
		UpdateDate string `json:"updatedate"`
	} `json:"ipv6"`
	DNS []struct {
		DNS        string `json:"dns"`
		UpdateDate string `json:"updatedate"`
	} `json:"dns"`
	MX []struct {
		DNS        string `json:"dns"`
		UpdateDate string `json:"updatedate"`
	} `json:"mx"`
	Domains []string `json:"domains"`
}

func (p *tcpIPUtils) Lookup(ctx context.Context, label string, _ int) ([]model.Result, error) {
	var kind string
	switch model.Classify(label) {
	case model.KindIPv4:
		kind = "domainneighbors"
	case model.KindDomain:
		kind = "domainipdnshistory"
	default:
		return nil, nil
	}

	u := p.base + url.QueryEscape(p.apiKey) + "&type=" + kind + "&q=" + url.QueryEscape(label)
	r, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, err
	}
	if err := r.expectOK(p.info.Name); err != nil {
		return nil, err
	}

	var reply tcpIPUtilsReply
	if err := json.Unmarshal(r.body, &reply); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", p.info.Name, ErrMalformedReply, err)
	}
	switch reply.Status {
	case "succeed":
	case "error":
		return nil, fmt.Errorf("%s: %w: %s", p.info.Name, ErrProviderError, string(reply.Data))
	default:
		return nil, nil
	}

	var data tcpIPUtilsData
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", p.info.Name, ErrMalformedReply, err)
	}
	return p.results(data, r), nil
}

func (p *tcpIPUtils) results(data tcpIPUtilsData, r *reply) []model.Result {
	var results []model.Result
	add := func(query, answer, rrtype, updated string) {
		res := newResult(p.info.Name, r.elapsed, query, answer, rrtype)
		res.LastSeen = parseTime(updated)
		results = append(results, res)
	}
	for _, rec := range data.IPv4 {
		add(data.Question, rec.IP, "A", rec.UpdateDate)
	}
	for _, rec := range data.IPv6 {
		add(data.Question, rec.IP, "AAAA", rec.UpdateDate)
	}
	for _, rec := range data.DNS {
		add(data.Question, rec.DNS, "NS", rec.UpdateDate)
	}
	for _, rec := range data.MX {
		add(data.Question, rec.DNS, "MX", rec.UpdateDate)
	}
	for _, domain := range data.Domains {
		add(domain, data.Question, "A", "")
	}
	return results
}
