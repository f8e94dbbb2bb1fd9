package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/model"
)

const passiveTotalDefaultURL = "https://www.passivetotal.org/api/passive"

// passiveTotal queries the PassiveTotal passive endpoint with a form POST.
// Each resolution is attributed to the upstream sensors that reported it.
type passiveTotal struct {
	info   Info
	base   string
	apiKey string
	http   *httpDoer
}

func newPassiveTotal(info Info, pc config.ProviderConfig, o *options) (Provider, error) {
	key, err := required(info.Section, "apikey", pc.Get("apikey"))
	if err != nil {
		return nil, err
	}
	base := pc.Get("url")
	if base == "" {
		base = passiveTotalDefaultURL
	}
	return &passiveTotal{
		info:   info,
		base:   base,
		apiKey: key,
		http:   newHTTPDoer(info.Name, pc.Rate, o),
	}, nil
}

func (p *passiveTotal) Info() Info { return p.info }

type passiveTotalReply struct {
	Results *struct {
		Value       string `json:"value"`
		Resolutions []struct {
			FirstSeen string   `json:"firstSeen"`
			LastSeen  string   `json:"lastSeen"`
			Value     string   `json:"value"`
			Source    []string `json:"source"`
		} `json:"resolutions"`
	} `json:"results"`
}

func (p *passiveTotal) Lookup(ctx context.Context, label string, _ int) ([]model.Result, error) {
	switch model.Classify(label) {
	case model.KindDomain, model.KindIPv4, model.KindIPv6:
	default:
		return nil, nil
	}

	form := url.Values{}
	form.Set("apikey", p.apiKey)
	form.Set("value", label)
	body := form.Encode()

	r, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.expectOK(p.info.Name); err != nil {
		return nil, err
	}

	var data passiveTotalReply
	if err := json.Unmarshal(r.body, &data); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", p.info.Name, ErrMalformedReply, err)
	}
	if data.Results == nil {
		return nil, nil
	}

	query := data.Results.Value
	if query == "" {
		query = label
	}
	results := make([]model.Result, 0, len(data.Results.Resolutions))
	for _, row := range data.Results.Resolutions {
		source := p.info.Name
		if len(row.Source) > 0 {
			source += "/" + strings.Join(row.Source, ",")
		}
		res := newResult(source, r.elapsed, query, row.Value, "A")
		res.FirstSeen = parseTime(row.FirstSeen)
		res.LastSeen = parseTime(row.LastSeen)
		results = append(results, res)
	}
	return results, nil
}
