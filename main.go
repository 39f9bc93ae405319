package main

import (
	"fmt"

	_ "github.com/conservo/go-sync/autosave"
	_ "github.com/conservo/go-sync/syncache"
)

func main() {
	fmt.Println("Hi")
}
