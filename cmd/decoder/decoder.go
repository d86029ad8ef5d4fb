package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/logcode.report/internal/api"
	"github.com/banshee-data/logcode.report/internal/config"
	"github.com/banshee-data/logcode.report/internal/decode"
	"github.com/banshee-data/logcode.report/internal/icd"
	"github.com/banshee-data/logcode.report/internal/icd/icdstore"
	"github.com/banshee-data/logcode.report/internal/ingest"
	"github.com/banshee-data/logcode.report/internal/postproc"
	"github.com/banshee-data/logcode.report/internal/report"
	"github.com/banshee-data/logcode.report/internal/version"
)

var (
	dbFile     = flag.String("db", DB_FILE, "Schema store database file")
	configFile = flag.String("config", "", "Decoder config file (JSON)")
	inputFile  = flag.String("input", "", "Hex log dump file to decode")
	pcapFile   = flag.String("pcap", "", "Packet capture file to decode")
	udpPort    = flag.Int("port", 0, "UDP destination port filter for -pcap (0 = all)")
	listen     = flag.String("listen", "", "Serve the decode API on this address instead of decoding files")
	reportFile = flag.String("report", "", "Write an HTML trend chart to this file")
	fieldName  = flag.String("field", "", "Field to chart with -report")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

const DB_FILE = "icd_schemas.db"

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("decoder %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.EmptyDecoderConfig()
	if *configFile != "" {
		loaded, err := config.LoadDecoderConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	store, err := icdstore.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open schema store: %v", err)
	}
	defer store.Close()

	decoder, err := buildDecoder(store, cfg)
	if err != nil {
		log.Fatalf("failed to build decoder: %v", err)
	}
	decoder.RegisterHook(postproc.PDSCHStatsLogcode, postproc.PDSCHStatsHook)

	if *listen != "" {
		serveAPI(decoder, store)
		return
	}

	packets, err := loadPackets(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(packets) == 0 {
		log.Fatalf("no input: pass -input, -pcap, or -listen")
	}

	decoded := make([]*decode.DecodedPacket, 0, len(packets))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for i, pkt := range packets {
		result, err := decoder.Decode(pkt)
		if err != nil {
			log.Printf("packet %d: %v", i+1, err)
			continue
		}
		decoded = append(decoded, result)
		if err := enc.Encode(result); err != nil {
			log.Fatalf("failed to write result: %v", err)
		}
	}
	log.Printf("decoded %d/%d packets", len(decoded), len(packets))

	if *reportFile != "" {
		if err := writeReport(decoded); err != nil {
			log.Fatalf("failed to write report: %v", err)
		}
		log.Printf("wrote report to %s", *reportFile)
	}
}

func buildDecoder(store *icdstore.Store, cfg *config.DecoderConfig) (*decode.Decoder, error) {
	var dc decode.Config
	if cfg.CacheCapacity != nil {
		dc.CacheCapacity = *cfg.CacheCapacity
	}
	if ttl, ok := cfg.ParsedFailureTTL(); ok {
		dc.FailureTTL = ttl
	}
	if cfg.CountStrategies != nil {
		strategies, err := decode.CountStrategiesByName(*cfg.CountStrategies)
		if err != nil {
			return nil, err
		}
		dc.CountStrategies = strategies
	}
	patterns, err := cfg.CompiledNonStructuralPatterns()
	if err != nil {
		return nil, err
	}
	dc.NonStructuralPatterns = patterns
	return decode.NewDecoder(store, store, dc), nil
}

func loadPackets(cfg *config.DecoderConfig) ([]*icd.ParsedPacket, error) {
	switch {
	case *inputFile != "" && *pcapFile != "":
		return nil, fmt.Errorf("-input and -pcap are mutually exclusive")
	case *inputFile != "":
		return ingest.ReadHexLogFile(*inputFile)
	case *pcapFile != "":
		port := *udpPort
		if port == 0 && cfg.CaptureUDPPort != nil {
			port = *cfg.CaptureUDPPort
		}
		return ingest.ReadPCAPFile(*pcapFile, port)
	}
	return nil, nil
}

func writeReport(decoded []*decode.DecodedPacket) error {
	if *fieldName == "" {
		return fmt.Errorf("-report requires -field")
	}
	f, err := os.Create(*reportFile)
	if err != nil {
		return err
	}
	defer f.Close()
	return report.FieldTrendChart(f, decoded, *fieldName)
}

func serveAPI(decoder *decode.Decoder, store *icdstore.Store) {
	server := api.NewServer(decoder, store)
	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(server.ServeMux()),
	}

	go func() {
		log.Printf("decode API listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
