package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTextListProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("directory request sent without a User-Agent")
		}
		io.WriteString(w, "1.1.1.1:8080\r\n2.2.2.2:3128\r\nnot-a-proxy\r\n\r\n3.3.3.3:99999\r\n")
	}))
	defer srv.Close()

	p := NewTextListProvider("test-list", srv.URL+"/api/v1/get?type=http", srv.Client())
	proxies, err := p.Parse(context.Background())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(proxies) != 2 {
		t.Fatalf("Parse() returned %d proxies, want 2", len(proxies))
	}
	if proxies[0].String() != "http://1.1.1.1:8080" || proxies[1].String() != "http://2.2.2.2:3128" {
		t.Errorf("Parse() = %v, %v", proxies[0], proxies[1])
	}
	if p.Name() != "test-list" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestTextListProviderNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewTextListProvider("down", srv.URL+"/list.txt", srv.Client())
	if _, err := p.Parse(context.Background()); err == nil {
		t.Error("expected error for 503 directory response")
	}
}

func TestSSLProxiesProvider(t *testing.T) {
	page := `<html><body><table><thead><tr><th>IP</th><th>Port</th></tr></thead><tbody>
<tr><td>10.1.1.1</td><td>8080</td><td>US</td><td>United States</td><td>elite</td><td>no</td><td>yes</td><td>1 min ago</td></tr>
<tr><td>10.2.2.2</td><td> 3128 </td><td>DE</td><td>Germany</td><td>anonymous</td><td>no</td><td>no</td><td>2 mins ago</td></tr>
<tr><td>bogus</td><td>80</td></tr>
<tr><td>10.3.3.3</td></tr>
</tbody></table></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, page)
	}))
	defer srv.Close()

	p := NewSSLProxiesProvider(srv.URL+"/ssl-proxy.html", srv.Client())
	proxies, err := p.Parse(context.Background())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(proxies) != 2 {
		t.Fatalf("Parse() returned %d proxies, want 2", len(proxies))
	}
	if proxies[1].String() != "http://10.2.2.2:3128" {
		t.Errorf("second proxy = %s", proxies[1])
	}
}

func TestForURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.proxy-list.download/api/v1/get?type=http", "*providers.TextListProvider"},
		{"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt", "*providers.TextListProvider"},
		{"https://free-proxy-list.net/ssl-proxy.html", "*providers.SSLProxiesProvider"},
		{"https://www.sslproxies.org/", "*providers.SSLProxiesProvider"},
	}

	for _, test := range tests {
		t.Run(test.url, func(t *testing.T) {
			got := ForURL(test.url, nil)
			var name string
			switch got.(type) {
			case *TextListProvider:
				name = "*providers.TextListProvider"
			case *SSLProxiesProvider:
				name = "*providers.SSLProxiesProvider"
			}
			if name != test.want {
				t.Errorf("ForURL(%q) = %T, want %s", test.url, got, test.want)
			}
		})
	}
}

func TestTextListProvider_LiveData(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping live test in short mode")
	}

	p := NewTextListProvider("proxy-list.download", "https://www.proxy-list.download/api/v1/get?type=http", nil)
	proxies, err := p.Parse(context.Background())
	if err != nil {
		t.Skipf("live directory unavailable: %v", err)
	}
	t.Logf("%s: found %d proxies", p.Name(), len(proxies))
}
