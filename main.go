package main

import (
	"log"

	"afk-admin/core/appbootstrap"
)

func main() {
	if err := appbootstrap.Run(); err != nil {
		log.Fatal(err)
	}
}
