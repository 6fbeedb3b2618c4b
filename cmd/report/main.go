package main

import (
	"log"

	"github.com/spf13/pflag"

	"github.com/PatchLens/go-trace-lens/lens"
)

func main() {
	log.SetFlags(log.LstdFlags | log.LUTC)

	reportJsonFile := pflag.String("json", "tracereport.json", "File containing the run summary")
	reportChartFile := pflag.String("chart", "tracereport.png", "File to output the summary chart image")
	pflag.Parse()

	summary, err := lens.ReadReportSummary(*reportJsonFile)
	if err != nil {
		log.Fatalf("%sFailed to read report: %v", lens.ErrorLogPrefix, err)
	}
	if err = lens.WriteReportChart(*reportChartFile, summary); err != nil {
		log.Fatalf("%sFailed to render chart: %v", lens.ErrorLogPrefix, err)
	}
	log.Println("Report chart wrote: " + *reportChartFile)
}
