package api

// DefaultUserAgents is the identity pool rotated per call.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/111.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36",
}

func (e *Executor) userAgent() string {
	if len(e.cfg.UserAgents) == 0 {
		return ""
	}
	return e.cfg.UserAgents[e.rand.IntN(len(e.cfg.UserAgents))]
}
