package main

import "github.com/digitalrayne/eir/internal/eir"

func main() {
	eir.Main()
}
