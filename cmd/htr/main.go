package main

import "github.com/MeKo-Tech/gohtr/cmd/htr/cmd"

func main() {
	cmd.Execute()
}
