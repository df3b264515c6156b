// Command entprobe-mock runs a local stand-in for the observability
// platform, useful for trying experiment files without credentials.
//
// Usage:
//
//	entprobe-mock [flags]
//
// Flags:
//
//	-port    Port to listen on (default: 8080)
//	-host    Host to bind to (default: localhost)
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"entprobe/platformtest"
)

func main() {
	port := flag.Int("port", 8080, "port to listen on")
	host := flag.String("host", "localhost", "host to bind to")
	flag.Parse()

	server := platformtest.NewServer()
	addr := fmt.Sprintf("%s:%d", *host, *port)

	fmt.Println("entprobe mock platform")
	fmt.Println("======================")
	fmt.Printf("Listening on http://%s\n\n", addr)
	fmt.Println("Endpoints:")
	fmt.Println("  POST /ingest   - Accept telemetry payload batches")
	fmt.Println("  POST /query    - Scriptable query endpoint")
	fmt.Println("  POST /graph    - Scriptable relationship graph endpoint")
	fmt.Println()
	fmt.Println("All endpoints require an Api-Key header (any value).")
	fmt.Println("Query and graph responses default to empty result sets;")
	fmt.Println("ingest accepts every well-formed batch with 202.")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		os.Exit(0)
	}()

	log.Fatal(http.ListenAndServe(addr, server.Handler()))
}
