// Command schema manages the logcode schema store: import and export JSON
// schema documents, list stored logcodes, review decode runs, and drive
// database migrations.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/logcode.report/internal/icd"
	"github.com/banshee-data/logcode.report/internal/icd/icdstore"
)

var dbFile = flag.String("db", "icd_schemas.db", "Schema store database file")

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: schema [-db FILE] COMMAND [ARGS]

Commands:
  import FILE...       import schema documents (JSON)
  export LOGCODE       write one logcode's schema document to stdout
  list                 list stored logcodes
  runs [N]             show the N most recent decode runs (default 50)
  migrate up           apply pending migrations
  migrate down         roll back the most recent migration
  migrate status       show the current migration version
`)
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	store, err := icdstore.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open schema store: %v", err)
	}
	defer store.Close()

	switch flag.Arg(0) {
	case "import":
		if flag.NArg() < 2 {
			usage()
		}
		runImport(store, flag.Args()[1:])
	case "export":
		if flag.NArg() != 2 {
			usage()
		}
		runExport(store, flag.Arg(1))
	case "list":
		runList(store)
	case "runs":
		limit := 0
		if flag.NArg() > 1 {
			if _, err := fmt.Sscanf(flag.Arg(1), "%d", &limit); err != nil {
				log.Fatalf("invalid run count %q", flag.Arg(1))
			}
		}
		runRuns(store, limit)
	case "migrate":
		if flag.NArg() != 2 {
			usage()
		}
		runMigrate(store, flag.Arg(1))
	default:
		usage()
	}
}

func runImport(store *icdstore.Store, paths []string) {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("failed to open %s: %v", path, err)
		}
		doc, err := icd.ReadDocument(f)
		f.Close()
		if err != nil {
			log.Fatalf("%s: %v", path, err)
		}
		if err := store.ImportDocument(doc); err != nil {
			log.Fatalf("%s: import failed: %v", path, err)
		}
		log.Printf("imported %s (%s, %d tables) from %s",
			doc.LogcodeID, doc.LogcodeName, len(doc.Tables), path)
	}
}

func runExport(store *icdstore.Store, logcode string) {
	id, err := icd.ParseLogcodeID(logcode)
	if err != nil {
		log.Fatalf("%v", err)
	}
	doc, err := store.ExportDocument(id)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}
	if err := doc.WriteDocument(os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

func runList(store *icdstore.Store) {
	logcodes, err := store.ListLogcodes()
	if err != nil {
		log.Fatalf("list failed: %v", err)
	}
	if len(logcodes) == 0 {
		fmt.Println("no logcodes stored")
		return
	}
	for _, info := range logcodes {
		fmt.Printf("%s  %-40s versions=%d\n", info.LogcodeHex, info.Name, info.Versions)
	}
}

func runRuns(store *icdstore.Store, limit int) {
	runs, err := store.ListDecodeRuns(limit)
	if err != nil {
		log.Fatalf("runs failed: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no decode runs recorded")
		return
	}
	for _, run := range runs {
		fmt.Printf("%s  %s  %s v%d table=%s fields=%d errors=%d source=%s\n",
			run.CreatedAt.Format("2006-01-02 15:04:05"), run.RunID,
			icd.FormatLogcodeID(run.LogcodeID), run.Version, run.TableNumber,
			run.FieldCount, run.ErrorCount, run.Source)
	}
}

func runMigrate(store *icdstore.Store, action string) {
	switch action {
	case "up":
		if err := store.MigrateUp(); err != nil {
			log.Fatalf("%v", err)
		}
		log.Printf("migrations applied")
	case "down":
		if err := store.MigrateDown(); err != nil {
			log.Fatalf("%v", err)
		}
		log.Printf("rolled back one migration")
	case "status":
		version, dirty, err := store.MigrateVersion()
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
	default:
		usage()
	}
}
