package main

import "github.com/flexfitness/flex-cli/cmd/flex"

func main() {
	flex.Execute()
}
