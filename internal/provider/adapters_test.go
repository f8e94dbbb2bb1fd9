package provider

import (
	"crypto/md5" //nolint:gosec // Mirrors the 360.cn signature.
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/model"
)

// newTestProvider builds the provider for section against handler.
// settings may reference the server URL through the urlKey entry.
func newTestProvider(t *testing.T, section, urlKey, urlSuffix string, settings map[string]string, handler http.HandlerFunc) Provider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := map[string]string{urlKey: srv.URL + urlSuffix}
	for k, v := range settings {
		s[k] = v
	}
	p, err := New(section, config.ProviderConfig{Settings: s},
		WithHTTPClient(srv.Client()),
		WithRetry(3, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New(%s) error: %v", section, err)
	}
	return p
}

func assertResult(t *testing.T, got model.Result, source, query, answer, rrtype string) {
	t.Helper()

	if got.Source != source || got.Query != query || got.Answer != answer || got.RRType != rrtype {
		t.Errorf("result = {%s %s %s %s}, want {%s %s %s %s}",
			got.Source, got.Query, got.Answer, got.RRType, source, query, answer, rrtype)
	}
}

func TestBFKLookup(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<table id="other"><tr><td>ignored.org</td><td>A</td><td>1.1.1.1</td></tr></table>
<table id="logger">
<tr><th>Query</th><th>Type</th><th>Answer</th></tr>
<tr><td>example.org</td><td>A</td><td>93.184.216.34</td></tr>
<tr><td>example.org</td><td>MX</td><td>10 mail.example.org</td></tr>
<tr><td>&nbsp;</td><td></td><td></td></tr>
</table></body></html>`

	p := newTestProvider(t, "bfk", "url", "/dnslogger?query=", nil, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "example.org" {
			t.Errorf("query = %q", got)
		}
		_, _ = w.Write([]byte(page))
	})

	results, err := p.Lookup(t.Context(), "example.org", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2: %+v", len(results), results)
	}
	assertResult(t, results[0], "BFK.de", "example.org", "93.184.216.34", "A")
	assertResult(t, results[1], "BFK.de", "example.org", "mail.example.org", "MX")
}

func TestBFKLookupWithoutLoggerTable(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, "bfk", "url", "/?query=", nil, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>no records</body></html>"))
	})

	results, err := p.Lookup(t.Context(), "example.org", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %+v", results)
	}
}

func TestCIRCLLookup(t *testing.T) {
	t.Parallel()

	body := `{"rrname": "example.org", "rrtype": "A", "rdata": "93.184.216.34", "time_first": 1262304000, "time_last": 1293840000, "count": 4}
{"rrname": "example.org", "rrtype": "NS", "rdata": "a.iana-servers.net.", "time_first": 1262304000, "time_last": 1293840000, "count": 2}
`
	p := newTestProvider(t, "circl", "url", "", map[string]string{"username": "user", "password": "pass"},
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/example.org" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if u, pw, ok := r.BasicAuth(); !ok || u != "user" || pw != "pass" {
				t.Errorf("basic auth = %q %q %v", u, pw, ok)
			}
			_, _ = w.Write([]byte(body))
		})

	results, err := p.Lookup(t.Context(), "example.org", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	assertResult(t, results[0], "CIRCL", "example.org", "93.184.216.34", "A")
	assertResult(t, results[1], "CIRCL", "example.org", "a.iana-servers.net", "NS")
	if results[0].Count == nil || *results[0].Count != 4 {
		t.Errorf("count = %v, want 4", results[0].Count)
	}
	if results[0].FirstSeen == nil || !results[0].FirstSeen.Equal(time.Unix(1262304000, 0)) {
		t.Errorf("first seen = %v", results[0].FirstSeen)
	}
}

func TestDNSDBLookup(t *testing.T) {
	t.Parallel()

	t.Run("name lookup with limit", func(t *testing.T) {
		t.Parallel()

		body := `{"count":10,"time_first":1262304000,"time_last":1293840000,"rrname":"example.org.","rrtype":"NS","rdata":["a.iana-servers.net.","b.iana-servers.net."]}
{"count":3,"zone_time_first":1262304000,"zone_time_last":1293840000,"rrname":"example.org.","rrtype":"A","rdata":"93.184.216.34"}
`
		p := newTestProvider(t, "dnsdb", "url", "", map[string]string{"apikey": "secret"},
			func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/rrset/name/example.org" {
					t.Errorf("path = %q", r.URL.Path)
				}
				if r.URL.Query().Get("limit") != "5" {
					t.Errorf("limit = %q", r.URL.Query().Get("limit"))
				}
				if r.Header.Get("X-API-Key") != "secret" {
					t.Errorf("X-API-Key = %q", r.Header.Get("X-API-Key"))
				}
				_, _ = w.Write([]byte(body))
			})

		results, err := p.Lookup(t.Context(), "example.org", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("len(results) = %d, want 3", len(results))
		}
		assertResult(t, results[0], "DNSDB", "example.org", "a.iana-servers.net", "NS")
		assertResult(t, results[1], "DNSDB", "example.org", "b.iana-servers.net", "NS")
		assertResult(t, results[2], "DNSDB", "example.org", "93.184.216.34", "A")
		if results[2].FirstSeen == nil {
			t.Error("zone times should fill first seen")
		}
	})

	t.Run("cidr lookup uses comma", func(t *testing.T) {
		t.Parallel()

		p := newTestProvider(t, "dnsdb", "url", "", map[string]string{"apikey": "secret"},
			func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/rdata/ip/192.0.2.0,24" {
					t.Errorf("path = %q", r.URL.Path)
				}
				_, _ = w.Write([]byte(`{"rrname":"host.example.org.","rrtype":"A","rdata":"192.0.2.7"}`))
			})

		results, err := p.Lookup(t.Context(), "192.0.2.0/24", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("len(results) = %d, want 1", len(results))
		}
		assertResult(t, results[0], "DNSDB", "host.example.org", "192.0.2.7", "A")
		if results[0].FirstSeen != nil {
			t.Error("first seen should be nil without time fields")
		}
	})

	t.Run("label is escaped in the path", func(t *testing.T) {
		t.Parallel()

		p := newTestProvider(t, "dnsdb", "url", "", map[string]string{"apikey": "secret"},
			func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/rrset/name/exa?mple#.org" {
					t.Errorf("path = %q", r.URL.Path)
				}
				if r.URL.RawQuery != "" {
					t.Errorf("query = %q, want none", r.URL.RawQuery)
				}
				http.NotFound(w, r)
			})

		if _, err := p.Lookup(t.Context(), "exa?mple#.org", 0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("not found is empty", func(t *testing.T) {
		t.Parallel()

		p := newTestProvider(t, "dnsdb", "url", "", map[string]string{"apikey": "secret"},
			func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "Error: no results found for query.", http.StatusNotFound)
			})

		results, err := p.Lookup(t.Context(), "nothing.example", 0)
		if err != nil || len(results) != 0 {
			t.Errorf("Lookup() = %v, %v; want empty", results, err)
		}
	})

	t.Run("parse error is reported", func(t *testing.T) {
		t.Parallel()

		p := newTestProvider(t, "dnsdb", "url", "", map[string]string{"apikey": "secret"},
			func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "Error: unable to parse request", http.StatusBadRequest)
			})

		if _, err := p.Lookup(t.Context(), "example.org", 0); !errors.Is(err, ErrProviderError) {
			t.Errorf("error = %v, want ErrProviderError", err)
		}
	})

	t.Run("malformed reply", func(t *testing.T) {
		t.Parallel()

		p := newTestProvider(t, "dnsdb", "url", "", map[string]string{"apikey": "secret"},
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"rrname": `))
			})

		if _, err := p.Lookup(t.Context(), "example.org", 0); !errors.Is(err, ErrMalformedReply) {
			t.Errorf("error = %v, want ErrMalformedReply", err)
		}
	})
}

func TestMnemonicLookup(t *testing.T) {
	t.Parallel()

	body := `{"result":[
{"query":"example.org","answer":"93.184.216.34","type":"a","ttl":"300","first":"2012-01-01 10:00:00","last":1356998400},
{"answer":"orphan"}
]}`
	p := newTestProvider(t, "mnemonic", "url", "/api1/?apikey=", map[string]string{"apikey": "k"},
		func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("apikey") != "k" || q.Get("query") != "example.org" || q.Get("method") != "exact" {
				t.Errorf("query = %v", q)
			}
			_, _ = w.Write([]byte(body))
		})

	results, err := p.Lookup(t.Context(), "example.org", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	assertResult(t, results[0], "Mnemonic", "example.org", "93.184.216.34", "A")
	if results[0].TTL == nil || *results[0].TTL != 300 {
		t.Errorf("ttl = %v, want 300", results[0].TTL)
	}
	want := time.Date(2012, 1, 1, 10, 0, 0, 0, time.UTC)
	if results[0].FirstSeen == nil || !results[0].FirstSeen.Equal(want) {
		t.Errorf("first seen = %v, want %v", results[0].FirstSeen, want)
	}
	if results[0].LastSeen == nil || !results[0].LastSeen.Equal(time.Unix(1356998400, 0)) {
		t.Errorf("last seen = %v", results[0].LastSeen)
	}
}

func TestOSCLookup(t *testing.T) {
	t.Parallel()

	t.Run("maps qtype and soa_email", func(t *testing.T) {
		t.Parallel()

		body := `{"results":[
{"qtype":1,"domain":"example.org","value":"93.184.216.34","date":"2016-01-01T00:00:00Z"},
{"qtype":"6","type":"soa_email","domain":"example.org","value":"hostmaster.example.org","date":"2016-01-01"},
{"qtype":15,"type":"mx","domain":"example.org","value":"mail.example.org","date":"2016-01-01"}
]}`
		p := newTestProvider(t, "osc", "url", "/api", map[string]string{"apikey": "tok"},
			func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("q") != "qname:example.org" || q.Get("token") != "tok" || q.Get("size") != "250" {
					t.Errorf("query = %v", q)
				}
				_, _ = w.Write([]byte(body))
			})

		results, err := p.Lookup(t.Context(), "example.org", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("len(results) = %d, want 2", len(results))
		}
		assertResult(t, results[0], "OSC", "example.org", "93.184.216.34", "A")
		assertResult(t, results[1], "OSC", "example.org", "hostmaster.example.org", "SOA")
	})

	t.Run("404 is empty", func(t *testing.T) {
		t.Parallel()

		p := newTestProvider(t, "osc", "url", "/api", map[string]string{"apikey": "tok"},
			func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("q") != "value_ip:192.0.2.1" {
					t.Errorf("q = %q", r.URL.Query().Get("q"))
				}
				w.WriteHeader(http.StatusNotFound)
			})

		results, err := p.Lookup(t.Context(), "192.0.2.1", 0)
		if err != nil || len(results) != 0 {
			t.Errorf("Lookup() = %v, %v; want empty", results, err)
		}
	})
}

func TestPassiveTotalLookup(t *testing.T) {
	t.Parallel()

	body := `{"results":{"value":"example.org","resolutions":[
{"firstSeen":"2014-01-01 00:00:00","lastSeen":"2014-06-01 00:00:00","value":"93.184.216.34","source":["riskiq","pingly"]}
]}}`
	p := newTestProvider(t, "passivetotal", "url", "/api/passive", map[string]string{"apikey": "k"},
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("method = %s", r.Method)
			}
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm: %v", err)
			}
			if r.PostForm.Get("apikey") != "k" || r.PostForm.Get("value") != "example.org" {
				t.Errorf("form = %v", r.PostForm)
			}
			_, _ = w.Write([]byte(body))
		})

	results, err := p.Lookup(t.Context(), "example.org", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	assertResult(t, results[0], "PassiveTotal/riskiq,pingly", "example.org", "93.184.216.34", "A")
	if results[0].LastSeen == nil {
		t.Error("last seen should be parsed")
	}
}

func TestRiskIQLookup(t *testing.T) {
	t.Parallel()

	body := `{"records":[{"name":"example.org.","rrtype":"A","firstSeen":"2015-01-01T00:00:00Z","lastSeen":"2015-02-01T00:00:00Z","count":7,"data":["93.184.216.34."]}]}`
	p := newTestProvider(t, "riskiq", "url", "/v1", map[string]string{"api_token": "tok", "api_private_key": "priv"},
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/dns/name" {
				t.Errorf("path = %q", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("name") != "example.org" || q.Get("maxResults") != "1000" {
				t.Errorf("query = %v", q)
			}
			if u, pw, ok := r.BasicAuth(); !ok || u != "tok" || pw != "priv" {
				t.Errorf("basic auth = %q %q %v", u, pw, ok)
			}
			_, _ = w.Write([]byte(body))
		})

	results, err := p.Lookup(t.Context(), "example.org", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	assertResult(t, results[0], "RiskIQ", "example.org", "93.184.216.34", "A")
	if results[0].Count == nil || *results[0].Count != 7 {
		t.Errorf("count = %v, want 7", results[0].Count)
	}
}

func TestTCPIPUtilsLookup(t *testing.T) {
	t.Parallel()

	t.Run("succeed", func(t *testing.T) {
		t.Parallel()

		body := `{"status":"succeed","data":{"question":"example.org",
"ipv4":[{"ip":"93.184.216.34","updatedate":"2015-03-01"}],
"ipv6":[{"ip":"2606:2800:220:1::248","updatedate":"2015-03-01"}],
"dns":[{"dns":"a.iana-servers.net","updatedate":"2015-03-01"}],
"mx":[{"dns":"mail.example.org","updatedate":"2015-03-01"}],
"domains":["www.example.org"]}}`
		p := newTestProvider(t, "tcpiputils", "url", "/api.php?version=1.0&apikey=", map[string]string{"apikey": "k"},
			func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("type") != "domainipdnshistory" || q.Get("q") != "example.org" || q.Get("apikey") != "k" {
					t.Errorf("query = %v", q)
				}
				_, _ = w.Write([]byte(body))
			})

		results, err := p.Lookup(t.Context(), "example.org", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 5 {
			t.Fatalf("len(results) = %d, want 5", len(results))
		}
		assertResult(t, results[0], "TCPIPUtils", "example.org", "93.184.216.34", "A")
		assertResult(t, results[1], "TCPIPUtils", "example.org", "2606:2800:220:1::248", "AAAA")
		assertResult(t, results[2], "TCPIPUtils", "example.org", "a.iana-servers.net", "NS")
		assertResult(t, results[3], "TCPIPUtils", "example.org", "mail.example.org", "MX")
		assertResult(t, results[4], "TCPIPUtils", "www.example.org", "example.org", "A")
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		p := newTestProvider(t, "tcpiputils", "url", "/api.php?apikey=", map[string]string{"apikey": "k"},
			func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("type") != "domainneighbors" {
					t.Errorf("type = %q", r.URL.Query().Get("type"))
				}
				_, _ = w.Write([]byte(`{"status":"error","data":"invalid key"}`))
			})

		if _, err := p.Lookup(t.Context(), "192.0.2.1", 0); !errors.Is(err, ErrProviderError) {
			t.Errorf("error = %v, want ErrProviderError", err)
		}
	})
}

func TestVirusTotalLookup(t *testing.T) {
	t.Parallel()

	t.Run("domain report", func(t *testing.T) {
		t.Parallel()

		body := `{"resolutions":[{"last_resolved":"2013-04-01 00:00:00","ip_address":"93.184.216.34"}]}`
		p := newTestProvider(t, "virustotal", "url", "/vtapi/v2/", map[string]string{"apikey": "k"},
			func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/vtapi/v2/domain/report" || r.URL.Query().Get("domain") != "example.org" {
					t.Errorf("url = %s", r.URL)
				}
				_, _ = w.Write([]byte(body))
			})

		results, err := p.Lookup(t.Context(), "example.org", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("len(results) = %d, want 1", len(results))
		}
		assertResult(t, results[0], "VirusTotal", "example.org", "93.184.216.34", "A")
		want := time.Date(2013, 4, 1, 0, 0, 0, 0, time.UTC)
		if results[0].LastSeen == nil || !results[0].LastSeen.Equal(want) {
			t.Errorf("last seen = %v, want %v", results[0].LastSeen, want)
		}
	})

	t.Run("ip report reverses query and answer", func(t *testing.T) {
		t.Parallel()

		body := `{"resolutions":[{"last_resolved":"2013-04-01 00:00:00","hostname":"example.org"}]}`
		p := newTestProvider(t, "virustotal", "url", "/", map[string]string{"apikey": "k"},
			func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/ip-address/report" {
					t.Errorf("path = %s", r.URL.Path)
				}
				_, _ = w.Write([]byte(body))
			})

		results, err := p.Lookup(t.Context(), "93.184.216.34", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("len(results) = %d, want 1", len(results))
		}
		assertResult(t, results[0], "VirusTotal", "example.org", "93.184.216.34", "A")
	})

	t.Run("204 is rate limiting", func(t *testing.T) {
		t.Parallel()

		p := newTestProvider(t, "virustotal", "url", "/", map[string]string{"apikey": "k"},
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

		if _, err := p.Lookup(t.Context(), "example.org", 0); !errors.Is(err, ErrRateLimited) {
			t.Errorf("error = %v, want ErrRateLimited", err)
		}
	})
}

func TestCN360Lookup(t *testing.T) {
	t.Parallel()

	const path = "/api/rrset/keyword/example.org/count/10000/"
	sum := md5.Sum([]byte(path + "key")) //nolint:gosec // Test mirrors the API signature.
	wantToken := hex.EncodeToString(sum[:])

	body := `[{"rrname":"example.org","rrtype":"A","rdata":"93.184.216.34;93.184.216.35;","time_first":1262304000,"time_last":1293840000,"count":3}]`
	p := newTestProvider(t, "cn360", "api", "", map[string]string{"api_id": "id", "api_key": "key"},
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				t.Errorf("path = %q", r.URL.Path)
			}
			if r.Header.Get("X-BashTokid") != "id" {
				t.Errorf("X-BashTokid = %q", r.Header.Get("X-BashTokid"))
			}
			if r.Header.Get("X-BashToken") != wantToken {
				t.Errorf("X-BashToken = %q, want %q", r.Header.Get("X-BashToken"), wantToken)
			}
			_, _ = w.Write([]byte(body))
		})

	results, err := p.Lookup(t.Context(), "example.org", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	assertResult(t, results[0], "360.cn", "example.org", "93.184.216.34", "A")
	assertResult(t, results[1], "360.cn", "example.org", "93.184.216.35", "A")
}

func TestUnsupportedLabelsAreEmpty(t *testing.T) {
	t.Parallel()

	called := false
	p := newTestProvider(t, "virustotal", "url", "/", map[string]string{"apikey": "k"},
		func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		})

	for _, label := range []string{"192.0.2.0/24", "2001:db8::1", ""} {
		results, err := p.Lookup(t.Context(), label, 0)
		if err != nil || len(results) != 0 {
			t.Errorf("Lookup(%q) = %v, %v; want empty", label, results, err)
		}
	}
	if called {
		t.Error("unsupported labels must not reach the provider")
	}
}
