package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"tg-alert-filter/internal/adapters/mtproto"
)

func main() {
	var (
		filePath   string
		outputPath string
	)
	flag.StringVar(&filePath, "file", "", "Path to MTProto session JSON file")
	flag.StringVar(&outputPath, "out", "./mtproto-session.json", "Path to write the normalized gotd session file")
	flag.Parse()

	if filePath == "" {
		log.Fatal().Msg("mtproto-importer: path to session file is required (-file)")
	}

	sessionData, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("mtproto-importer: failed to read session file")
	}
	normalized, converted, err := mtproto.NormalizeSessionBytes(sessionData)
	if err != nil {
		log.Fatal().Err(err).Msg("mtproto-importer: unsupported MTProto session format")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		log.Fatal().Err(err).Msg("mtproto-importer: failed to create output directory")
	}
	if err := os.WriteFile(outputPath, normalized, 0o600); err != nil {
		log.Fatal().Err(err).Msg("mtproto-importer: failed to write normalized session")
	}

	if converted {
		fmt.Println("Session was converted to gotd JSON format before storing")
	}
	fmt.Printf("Wrote normalized MTProto session (%d bytes) to %s\n", len(normalized), outputPath)
}
