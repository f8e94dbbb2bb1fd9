package provider

import (
	"context"
	"crypto/md5" //nolint:gosec // The 360.cn API signs requests with MD5.
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/model"
)

const cn360DefaultCount = 10000

// cn360 queries the 360.cn passive DNS API. Requests are signed with an
// MD5 token over the request path and the API key.
type cn360 struct {
	info   Info
	base   string
	apiID  string
	apiKey string
	http   *httpDoer
}

func newCN360(info Info, pc config.ProviderConfig, o *options) (Provider, error) {
	base, err := required(info.Section, "api", pc.Get("api"))
	if err != nil {
		return nil, err
	}
	apiID, err := required(info.Section, "api_id", pc.Get("api_id"))
	if err != nil {
		return nil, err
	}
	apiKey, err := required(info.Section, "api_key", pc.Get("api_key"))
	if err != nil {
		return nil, err
	}
	return &cn360{
		info:   info,
		base:   strings.TrimSuffix(base, "/"),
		apiID:  apiID,
		apiKey: apiKey,
		http:   newHTTPDoer(info.Name, pc.Rate, o),
	}, nil
}

func (p *cn360) Info() Info { return p.info }

type cn360Record struct {
	RRName    string  `json:"rrname"`
	RRType    string  `json:"rrtype"`
	RData     string  `json:"rdata"`
	TimeFirst flexInt `json:"time_first"`
	TimeLast  flexInt `json:"time_last"`
	Count     flexInt `json:"count"`
}

// token signs path with the API key.
func (p *cn360) token(path string) string {
	sum := md5.Sum([]byte(path + p.apiKey)) //nolint:gosec // Required by the API.
	return hex.EncodeToString(sum[:])
}

func (p *cn360) Lookup(ctx context.Context, label string, limit int) ([]model.Result, error) {
	var table string
	switch model.Classify(label) {
	case model.KindIPv4, model.KindIPv6:
		table = "rdata"
	case model.KindDomain:
		table = "rrset"
	default:
		return nil, nil
	}
	count := cn360DefaultCount
	if limit > 0 {
		count = limit
	}
	path := "/api/" + table + "/keyword/" + url.PathEscape(label) + "/count/" + strconv.Itoa(count) + "/"
	token := p.token(path)

	r, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-BashTokid", p.apiID)
		req.Header.Set("X-BashToken", token)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.expectOK(p.info.Name); err != nil {
		return nil, err
	}

	var records []cn360Record
	if err := json.Unmarshal(r.body, &records); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", p.info.Name, ErrMalformedReply, err)
	}

	var results []model.Result
	for _, rec := range records {
		for _, answer := range strings.Split(strings.TrimSuffix(rec.RData, ";"), ";") {
			if answer == "" {
				continue
			}
			res := newResult(p.info.Name, r.elapsed, rec.RRName, answer, rec.RRType)
			res.FirstSeen = rec.TimeFirst.unixTime()
			res.LastSeen = rec.TimeLast.unixTime()
			res.Count = rec.Count.intPtr()
			results = append(results, res)
		}
	}
	return results, nil
}
