package main

import "github.com/goplus/spk/cmd/spk/internal"

func main() {
	internal.Execute()
}
