package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/emotrack/pkg/emotion"
	"github.com/cyclopcam/emotrack/pkg/iox"
)

// errUsage is returned after the usage message has been printed
var errUsage = errors.New("invalid arguments")

func main() {
	if err := run(os.Args); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Printf("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	parser := argparse.NewParser("tabulate", "Flatten the per-second results of an emotion analysis into a table")
	input := parser.StringPositional(&argparse.Options{Help: "Results JSON", Required: true})
	output := parser.StringPositional(&argparse.Options{Help: "Output CSV file (default print the table)", Required: false})
	err := parser.Parse(args)
	// argparse doesn't enforce Required on positionals
	if err == nil && (input == nil || *input == "") {
		err = errors.New("input is required")
	}
	if err != nil {
		fmt.Print(parser.Usage(err))
		return errUsage
	}

	raw, err := os.ReadFile(*input)
	if err != nil {
		return err
	}
	agg, err := emotion.DecodeAggregation(raw)
	if err != nil {
		return err
	}
	table, err := emotion.ToTable(agg)
	if err != nil {
		return err
	}

	if output == nil || *output == "" {
		return table.WriteText(os.Stdout)
	}

	buf := bytes.Buffer{}
	if err := table.WriteCSV(&buf); err != nil {
		return err
	}
	if err := iox.WriteStreamToFile(*output, &buf); err != nil {
		return err
	}
	fmt.Printf("Table saved to %v\n", *output)
	return nil
}
