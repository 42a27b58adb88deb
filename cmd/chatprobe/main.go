// chatprobe is a lean deployment probe: it polls the relay's /healthz and
// /v1/stats and exits non-zero when the relay is unhealthy. Suitable for
// container healthchecks and CI smoke tests.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	base := flag.String("url", "http://127.0.0.1:8080", "relay base URL")
	timeout := flag.Duration("timeout", 3*time.Second, "per-request timeout")
	stats := flag.Bool("stats", false, "also print /v1/stats")
	flag.Parse()

	code, body, err := get(*base+"/healthz", *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthz request failed: %v\n", err)
		os.Exit(1)
	}
	if code != fasthttp.StatusOK {
		fmt.Fprintf(os.Stderr, "healthz returned %d: %s\n", code, body)
		os.Exit(1)
	}
	fmt.Printf("healthz ok: %s\n", body)

	if *stats {
		code, body, err = get(*base+"/v1/stats", *timeout)
		if err != nil || code != fasthttp.StatusOK {
			fmt.Fprintf(os.Stderr, "stats unavailable (code=%d err=%v)\n", code, err)
			os.Exit(1)
		}
		fmt.Printf("stats: %s\n", body)
	}
}

func get(url string, timeout time.Duration) (int, string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI(url)
	if err := fasthttp.DoTimeout(req, resp, timeout); err != nil {
		return 0, "", err
	}
	return resp.StatusCode(), string(resp.Body()), nil
}
