package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/chtzvt/dropslurp/internal/engine"
	"github.com/olekukonko/tablewriter"
)

func outResult(w io.Writer, v any, printer func(any)) {
	if outputJSON {
		b, _ := json.MarshalIndent(v, "", "  ")
		fmt.Fprintln(w, string(b))
	} else {
		printer(v)
	}
}

func printMetricsTable(w io.Writer, s engine.Snapshot) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Processed", "Failed", "Duplicates", "Retried", "Refused", "In Flight", "Processing Time"})
	table.Append([]string{
		strconv.FormatInt(s.Processed, 10),
		strconv.FormatInt(s.Failed, 10),
		strconv.FormatInt(s.Duplicates, 10),
		strconv.FormatInt(s.Retried, 10),
		strconv.FormatInt(s.Refused, 10),
		strconv.Itoa(s.InFlight),
		s.ProcessingTime.String(),
	})
	table.Render()
}

func printSecretsTable(w io.Writer, names []string) {
	if len(names) == 0 {
		fmt.Fprintln(w, "No secrets found")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name"})
	for _, n := range names {
		table.Append([]string{n})
	}
	table.Render()
}
