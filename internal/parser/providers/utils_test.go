package providers

import (
	"testing"
)

func TestIsValidIP(t *testing.T) {
	tests := []struct {
		ip    string
		valid bool
	}{
		{"192.168.1.1", true},
		{"203.0.113.1", true},
		{"255.255.255.255", true},
		{"0.0.0.0", true},
		{"256.1.1.1", false},
		{"192.168.1", false},
		{"192.168.1.1.1", false},
		{"", false},
		{"abc.def.ghi.jkl", false},
		{"192.168.-1.1", false},
		{"192.168.1.01", true},
	}

	for _, test := range tests {
		t.Run(test.ip, func(t *testing.T) {
			result := isValidIP(test.ip)
			if result != test.valid {
				t.Errorf("isValidIP(%q) = %v, want %v", test.ip, result, test.valid)
			}
		})
	}
}

func TestIsValidPort(t *testing.T) {
	tests := []struct {
		port  string
		valid bool
	}{
		{"80", true},
		{"3128", true},
		{"65535", true},
		{"1", true},
		{"0", false},
		{"65536", false},
		{"-1", false},
		{"", false},
		{"abc", false},
		{"80.5", false},
		{"080", true},
	}

	for _, test := range tests {
		t.Run(test.port, func(t *testing.T) {
			result := isValidPort(test.port)
			if result != test.valid {
				t.Errorf("isValidPort(%q) = %v, want %v", test.port, result, test.valid)
			}
		})
	}
}

func TestParseHostPort(t *testing.T) {
	tests := []struct {
		line     string
		wantHost string
		wantPort int
		ok       bool
	}{
		{"1.2.3.4:8080", "1.2.3.4", 8080, true},
		{"1.2.3.4:8080\r", "1.2.3.4", 8080, true},
		{"  5.6.7.8:3128  ", "5.6.7.8", 3128, true},
		{"http://9.9.9.9:80", "9.9.9.9", 80, true},
		{"proxy.example.com:8080", "", 0, false},
		{"1.2.3.4", "", 0, false},
		{"1.2.3.4:0", "", 0, false},
		{"", "", 0, false},
	}

	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			host, port, ok := parseHostPort(test.line)
			if ok != test.ok || host != test.wantHost || port != test.wantPort {
				t.Errorf("parseHostPort(%q) = (%q, %d, %v), want (%q, %d, %v)",
					test.line, host, port, ok, test.wantHost, test.wantPort, test.ok)
			}
		})
	}
}

func BenchmarkIsValidIP(b *testing.B) {
	testIPs := []string{
		"192.168.1.1",
		"10.0.0.1",
		"256.1.1.1",
		"abc.def.ghi.jkl",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, ip := range testIPs {
			isValidIP(ip)
		}
	}
}
