package httpclient

import (
	"crypto/tls"
	"net/http"
	"time"
)

// Default returns the tuned client used for the ingest sink.
func Default() *http.Client {
	tr := &http.Transport{
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: false},
		MaxIdleConns:          64,
		MaxConnsPerHost:       16,
		MaxIdleConnsPerHost:   8,
		ResponseHeaderTimeout: 10 * time.Second,
		IdleConnTimeout:       30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   15 * time.Second,
	}
}
