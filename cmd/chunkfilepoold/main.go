// Command chunkfilepoold bootstraps the chunk and WAL file pools described
// by a JSON configuration file, serves their Prometheus metrics, and
// blocks until asked to shut down: plain stdlib log, pflag for the one CLI
// flag, manual signal.Notify for shutdown.
package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/curvebs/chunkfilepool/pkg/config"
	"github.com/curvebs/chunkfilepool/pkg/filepool"
	"github.com/curvebs/chunkfilepool/pkg/filesystem"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "Path to the chunkfilepoold JSON configuration file")
	pflag.Parse()
	if *configPath == "" {
		log.Fatal("Usage: chunkfilepoold --config chunkfilepool.json")
	}

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fs := filesystem.NewLocal()

	chunkPool := filepool.New(fs, cfg.Chunk.ToOptions())
	if err := chunkPool.Initialize(); err != nil {
		log.Fatalf("Failed to initialize chunk file pool: %v", err)
	}
	prometheus.MustRegister(filepool.NewMetrics(chunkPool, "chunk"))
	log.Printf("Chunk file pool %s ready: %+v", chunkPool.ID(), chunkPool.GetState())

	walOpts, aliasesChunk := cfg.ResolveWal()
	walPool := chunkPool
	if !aliasesChunk {
		walPool = filepool.New(fs, walOpts)
		if err := walPool.Initialize(); err != nil {
			log.Fatalf("Failed to initialize WAL file pool: %v", err)
		}
		prometheus.MustRegister(filepool.NewMetrics(walPool, "wal"))
		log.Printf("WAL file pool %s ready: %+v", walPool.ID(), walPool.GetState())
	} else {
		log.Print("WAL file pool aliases the chunk file pool")
	}

	if addr := cfg.MetricsListenAddress; addr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Fatalf("Metrics server on %s failed: %v", addr, err)
			}
		}()
		log.Printf("Serving metrics on %s", addr)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Print("Shutting down")
	chunkPool.Stop()
	if !aliasesChunk {
		walPool.Stop()
	}
}
