package app

import (
	"net/http"
	"reflect"
	"testing"
)

func TestNewLLMHTTPClient_Config(t *testing.T) {
	c := newLLMHTTPClient()
	if c.Timeout != 0 {
		t.Fatalf("model calls are bounded per call, not per client; got %v", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected http.Transport")
	}
	if tr.DialContext == nil || tr.TLSHandshakeTimeout == 0 {
		t.Fatalf("expected bounded dial and TLS handshake")
	}
	// Ensure we didn't return the default client's transport
	if reflect.ValueOf(http.DefaultTransport).Pointer() == reflect.ValueOf(tr).Pointer() {
		t.Fatalf("transport should not be default")
	}
}
