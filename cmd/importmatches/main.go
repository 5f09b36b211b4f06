package main

import (
	"context"
	"flag"
	"os"

	"github.com/oggyb/campus-match/internal/config"
	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/legacyimport"
	"github.com/oggyb/campus-match/internal/logger"
)

func main() {
	path := flag.String("file", "matches.json", "JSON array of legacy match documents")
	flag.Parse()

	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L().With("component", "importmatches")

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Error("failed to open export", "file", *path, "err", err)
		os.Exit(1)
	}
	defer f.Close()

	res, err := legacyimport.New(database, log).Import(context.Background(), f)
	if err != nil {
		log.Error("import aborted", "err", err, "imported", res.Imported)
		os.Exit(1)
	}
	log.Info("import completed", "imported", res.Imported, "existing", res.Existing, "skipped", res.Skipped)
}
