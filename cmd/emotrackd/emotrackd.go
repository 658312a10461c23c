package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/emotrack/server"
	"github.com/joho/godotenv"
)

func main() {
	parser := argparse.NewParser("emotrackd", "Video emotion analysis server")
	configFilePath := parser.String("c", "config", &argparse.Options{Help: "Config file path", Default: "emotrack.json"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	// Optional. Environment variables override the config file.
	godotenv.Load()

	s, err := server.NewServer(*configFilePath)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	s.ListenForKillSignals()
	if err := s.ListenHTTP(s.Config.Listen); err != nil {
		fmt.Printf("%v\n", err)
	}
}
