package main

import (
	"cpk"
	"log"
)

func main() {
	if err := cpk.Run(); err != nil {
		log.Fatal(err)
	}
}
