package main

import (
	"go.brendoncarroll.net/star"

	"elementlang.org/numc/numccmd"
)

func main() {
	star.Main(numccmd.Root())
}
