package main

import (
	"log"

	"github.com/afripay/wallet-core/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("wallet-core: %v", err)
	}
}
