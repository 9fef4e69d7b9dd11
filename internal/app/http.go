package app

import (
	"net"
	"net/http"
	"time"
)

// newLLMHTTPClient returns the HTTP client used for model calls. Requests run
// one at a time and local models can take minutes per answer, so there is no
// overall client timeout; Config.CallTimeout bounds each call instead.
func newLLMHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}
