package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/model"
)

const bfkDefaultURL = "http://www.bfk.de/bfk_dnslogger.html?query="

// mxAnswerPattern captures the host of an MX answer such as "10 mx.example.org".
var mxAnswerPattern = regexp.MustCompile(`^[0-9]+\s+(.+)$`)

// bfk scrapes the BFK dnslogger web page.
type bfk struct {
	info Info
	base string
	http *httpDoer
}

func newBFK(info Info, pc config.ProviderConfig, o *options) (Provider, error) {
	base := pc.Get("url")
	if base == "" {
		base = bfkDefaultURL
	}
	return &bfk{
		info: info,
		base: base,
		http: newHTTPDoer(info.Name, pc.Rate, o),
	}, nil
}

func (b *bfk) Info() Info { return b.info }

func (b *bfk) Lookup(ctx context.Context, label string, _ int) ([]model.Result, error) {
	switch model.Classify(label) {
	case model.KindDomain, model.KindIPv4, model.KindIPv6:
	default:
		return nil, nil
	}

	r, err := b.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, b.base+url.QueryEscape(label), nil)
	})
	if err != nil {
		return nil, err
	}
	if err := r.expectOK(b.info.Name); err != nil {
		return nil, err
	}

	rows, err := parseLoggerTable(r.body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", b.info.Name, ErrMalformedReply, err)
	}

	results := make([]model.Result, 0, len(rows))
	for _, row := range rows {
		query, rrtype, answer := row[0], model.NormalizeRRType(row[1]), row[2]
		if rrtype == "MX" {
			if m := mxAnswerPattern.FindStringSubmatch(answer); m != nil {
				answer = m[1]
			}
		}
		results = append(results, newResult(b.info.Name, r.elapsed, query, answer, rrtype))
	}
	return results, nil
}

// parseLoggerTable returns the query, type and answer cells of every data
// row in the table with id "logger". Pages without that table yield nothing.
func parseLoggerTable(page []byte) ([][3]string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	table := findElement(doc, func(n *html.Node) bool {
		return n.Data == "table" && attr(n, "id") == "logger"
	})
	if table == nil {
		return nil, nil
	}

	var rows [][3]string
	walkElements(table, "tr", func(tr *html.Node) {
		var cells []string
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "td" {
				cells = append(cells, strings.TrimSpace(textContent(c)))
			}
		}
		if len(cells) < 3 || !hasWordChar(cells[0]) {
			return
		}
		rows = append(rows, [3]string{cells[0], cells[1], cells[2]})
	})
	return rows, nil
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func walkElements(n *html.Node, tag string, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			fn(c)
		}
		walkElements(c, tag, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func hasWordChar(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return r == '_' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
	}) >= 0
}
