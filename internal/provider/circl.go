package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/model"
)

const circlDefaultURL = "https://www.circl.lu/pdns/query"

// circl queries the CIRCL passive DNS service, authenticating with a
// username/password pair or an auth_token when configured.
type circl struct {
	info      Info
	base      string
	username  string
	password  string
	authToken string
	http      *httpDoer
}

func newCIRCL(info Info, pc config.ProviderConfig, o *options) (Provider, error) {
	base := pc.Get("url")
	if base == "" {
		base = circlDefaultURL
	}
	return &circl{
		info:      info,
		base:      strings.TrimSuffix(base, "/"),
		username:  pc.Get("username"),
		password:  pc.Get("password"),
		authToken: pc.Get("auth_token"),
		http:      newHTTPDoer(info.Name, pc.Rate, o),
	}, nil
}

func (c *circl) Info() Info { return c.info }

type circlRecord struct {
	RRName    string  `json:"rrname"`
	RRType    string  `json:"rrtype"`
	RData     string  `json:"rdata"`
	TimeFirst flexInt `json:"time_first"`
	TimeLast  flexInt `json:"time_last"`
	Count     flexInt `json:"count"`
}

func (c *circl) Lookup(ctx context.Context, label string, _ int) ([]model.Result, error) {
	switch model.Classify(label) {
	case model.KindDomain, model.KindIPv4, model.KindIPv6:
	default:
		return nil, nil
	}

	r, err := c.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+url.PathEscape(label), nil)
		if err != nil {
			return nil, err
		}
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}
		if c.authToken != "" {
			req.Header.Set("Authorization", c.authToken)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if r.status == http.StatusNotFound {
		return nil, nil
	}
	if err := r.expectOK(c.info.Name); err != nil {
		return nil, err
	}

	records, err := jsonLines[circlRecord](r.body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", c.info.Name, ErrMalformedReply, err)
	}

	results := make([]model.Result, 0, len(records))
	for _, rec := range records {
		res := newResult(c.info.Name, r.elapsed, rec.RRName, rec.RData, rec.RRType)
		res.FirstSeen = rec.TimeFirst.unixTime()
		res.LastSeen = rec.TimeLast.unixTime()
		res.Count = rec.Count.intPtr()
		results = append(results, res)
	}
	return results, nil
}
