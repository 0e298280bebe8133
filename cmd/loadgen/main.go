package main

import (
	"log"

	tool "github.com/sandeepkv93/sitedeck/internal/tools/loadgen"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
