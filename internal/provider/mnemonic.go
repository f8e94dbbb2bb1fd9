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

const mnemonicDefaultURL = "https://passivedns.mnemonic.no/api1/?apikey="

// mnemonic queries the Mnemonic passive DNS API.
type mnemonic struct {
	info   Info
	base   string
	apiKey string
	http   *httpDoer
}

func newMnemonic(info Info, pc config.ProviderConfig, o *options) (Provider, error) {
	key, err := required(info.Section, "apikey", pc.Get("apikey"))
	if err != nil {
		return nil, err
	}
	base := pc.Get("url")
	if base == "" {
		base = mnemonicDefaultURL
	}
	return &mnemonic{
		info:   info,
		base:   base,
		apiKey: key,
		http:   newHTTPDoer(info.Name, pc.Rate, o),
	}, nil
}

func (m *mnemonic) Info() Info { return m.info }

type mnemonicReply struct {
	Result []struct {
		Query  string   `json:"query"`
		Answer string   `json:"answer"`
		Type   string   `json:"type"`
		TTL    flexInt  `json:"ttl"`
		First  flexTime `json:"first"`
		Last   flexTime `json:"last"`
	} `json:"result"`
}

func (m *mnemonic) Lookup(ctx context.Context, label string, _ int) ([]model.Result, error) {
	switch model.Classify(label) {
	case model.KindDomain, model.KindIPv4, model.KindIPv6:
	default:
		return nil, nil
	}

	u := m.base + url.QueryEscape(m.apiKey) + "&query=" + url.QueryEscape(label) + "&method=exact"
	r, err := m.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, err
	}
	if err := r.expectOK(m.info.Name); err != nil {
		return nil, err
	}

	var data mnemonicReply
	if err := json.Unmarshal(r.body, &data); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", m.info.Name, ErrMalformedReply, err)
	}

	results := make([]model.Result, 0, len(data.Result))
	for _, row := range data.Result {
		if row.Query == "" {
			continue
		}
		res := newResult(m.info.Name, r.elapsed, row.Query, row.Answer, row.Type)
		res.TTL = row.TTL.intPtr()
		res.FirstSeen = row.First.t
		res.LastSeen = row.Last.t
		results = append(results, res)
	}
	return results, nil
}
