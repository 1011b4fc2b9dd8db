package main

import (
	"errors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"io/fs"
	"os"
	"worker-minutes/cmd"
	"worker-minutes/config"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Msg("load .env")
	}

	path, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	root := cmd.Root(cfg)
	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Send()
	}
}
