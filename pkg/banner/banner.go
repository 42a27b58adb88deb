package banner

import (
	"fmt"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██████╗ ███████╗██╗      █████╗ ██╗   ██╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
██║     ███████║███████║   ██║   ██████╔╝█████╗  ██║     ███████║ ╚████╔╝
██║     ██╔══██║██╔══██║   ██║   ██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝
╚██████╗██║  ██║██║  ██║   ██║   ██║  ██║███████╗███████╗██║  ██║   ██║
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝
`

// Print writes the startup banner with the effective runtime summary.
func Print(addr, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET /ws          - chat websocket (first frame must be auth)")
	fmt.Println("GET /healthz     - liveness probe")
	fmt.Println("GET /v1/stats    - live session counts")
	fmt.Println("GET /v1/presence - online participant ids")
	fmt.Println("GET /metrics     - prometheus metrics")
	fmt.Println("GET /docs        - operational API docs")
	fmt.Println("\n== Production? =================================================")
	fmt.Println("Configure security.cors.allowed_origins for browser clients")
	fmt.Println("Terminate TLS (server.tls) so pages on https use wss")
}
