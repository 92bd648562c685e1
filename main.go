package main

import (
	"log"

	"github.com/anoixa/storefront-assets/cmd"
	"github.com/anoixa/storefront-assets/config"
)

func main() {
	log.Printf("storefront-assets %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
