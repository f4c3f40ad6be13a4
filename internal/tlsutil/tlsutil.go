// Package tlsutil builds the outbound HTTP clients used for Wikipedia,
// the LLM and embedding APIs, and Qdrant. TLS 1.2+ with AEAD suites only.
package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// aeadSuites TLS 1.2 下允许的套件；TLS 1.3 的套件不可配置
var aeadSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// TLSConfig 每次返回新的副本，调用方可以放心修改
func TLSConfig() *tls.Config {
	suites := make([]uint16, len(aeadSuites))
	copy(suites, aeadSuites)
	return &tls.Config{MinVersion: tls.VersionTLS12, CipherSuites: suites}
}

// Transport 在 http.DefaultTransport 的参数基础上替换 TLS 配置
func Transport() *http.Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       TLSConfig(),
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// NewClient 返回加固过的 http.Client。headers 会补到每个请求上，
// 请求里已经设置的同名 header 优先。
func NewClient(timeout time.Duration, headers map[string]string) *http.Client {
	var rt http.RoundTripper = Transport()
	if len(headers) > 0 {
		rt = &HeaderTransport{Base: rt, Headers: headers}
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}

// HeaderTransport 给请求补上缺失的固定 header，不修改原请求
type HeaderTransport struct {
	Base    http.RoundTripper
	Headers map[string]string
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var out *http.Request
	for k, v := range t.Headers {
		if req.Header.Get(k) != "" {
			continue
		}
		if out == nil {
			out = req.Clone(req.Context())
		}
		out.Header.Set(k, v)
	}
	if out == nil {
		out = req
	}
	return base.RoundTrip(out)
}
