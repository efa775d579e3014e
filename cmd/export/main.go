package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/LJTian/FinNews/internal/config"
	"github.com/LJTian/FinNews/internal/export"
	"github.com/LJTian/FinNews/internal/storage"
)

// 将已入库的表导出为 CSV，或在终端预览
func main() {
	db := flag.String("db", "ex_rate", "database name")
	table := flag.String("table", "ex_rate", "table name")
	format := flag.String("format", "csv", "csv or preview")
	enc := flag.String("encoding", "utf-8", "csv encoding: utf-8 (with BOM) or euc-kr")
	out := flag.String("out", "", "output file, default stdout")
	limit := flag.Int("limit", 20, "rows to show in preview")
	width := flag.Int("width", 40, "max cell width in preview")
	flag.Parse()

	cfg := config.Load()
	store, err := storage.Open(cfg.StorageBackend, storage.SQLConfig{
		Driver:   cfg.DBDriver,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Params:   cfg.DBParams,
		Dir:      cfg.SQLiteDir,
	}, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	rows, err := store.Load(context.Background(), *db, *table)
	if err != nil {
		log.Fatalf("load %s.%s failed: %v", *db, *table, err)
	}
	columns := collector.Columns(rows, collector.ExchangeRateKey, "title", "link")

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("create %s failed: %v", *out, err)
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)

	switch *format {
	case "csv":
		err = export.WriteCSV(bw, rows, columns, *enc)
	case "preview":
		if *limit > 0 && len(rows) > *limit {
			rows = rows[len(rows)-*limit:]
		}
		err = export.WritePreview(bw, rows, columns, *width)
	default:
		log.Fatalf("unknown format %q", *format)
	}
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		log.Fatalf("export %s.%s failed: %v", *db, *table, err)
	}
	log.Printf("exported %s.%s: %d rows", *db, *table, len(rows))
}
