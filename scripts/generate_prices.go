// generate_prices writes a synthetic wide-format price CSV (date column plus
// one adjusted close per ticker) for local runs and demos. Prices follow
// correlated geometric random walks with a shared market factor, so the
// cross-asset features have something real to measure.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"
)

func main() {
	tickers := flag.String("tickers", "SPY,AAPL,MSFT,GLD,TLT", "comma-separated tickers")
	days := flag.Int("days", 2500, "number of trading days")
	start := flag.String("start", "2015-01-02", "first date (YYYY-MM-DD)")
	seed := flag.Int64("seed", 7, "random seed")
	output := flag.String("output", "data/prices.csv", "output CSV path")
	flag.Parse()

	names := strings.Split(*tickers, ",")
	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatalf("bad start date: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	prices := make([]float64, len(names))
	drifts := make([]float64, len(names))
	vols := make([]float64, len(names))
	betas := make([]float64, len(names))
	for j := range names {
		prices[j] = 50 + rng.Float64()*150
		drifts[j] = 0.0002 + rng.Float64()*0.0003
		vols[j] = 0.008 + rng.Float64()*0.012
		betas[j] = 0.4 + rng.Float64()*0.9
	}

	if err := os.MkdirAll("data", 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	file, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := append([]string{"date"}, names...)
	if err := w.Write(header); err != nil {
		log.Fatalf("failed to write header: %v", err)
	}

	date := startDate
	for i := 0; i < *days; i++ {
		for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			date = date.AddDate(0, 0, 1)
		}
		market := rng.NormFloat64() * 0.009
		record := make([]string, 0, len(names)+1)
		record = append(record, date.Format("2006-01-02"))
		for j := range names {
			shock := betas[j]*market + rng.NormFloat64()*vols[j]
			prices[j] *= math.Exp(drifts[j] - 0.5*vols[j]*vols[j] + shock)
			record = append(record, fmt.Sprintf("%.4f", prices[j]))
		}
		if err := w.Write(record); err != nil {
			log.Fatalf("failed to write row: %v", err)
		}
		date = date.AddDate(0, 0, 1)
	}

	log.Printf("wrote %d days x %d tickers to %s", *days, len(names), *output)
}
