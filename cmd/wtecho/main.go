package main

import "github.com/OkutaniDaichi0106/gowtecho/cmd/wtecho/cmd"

func main() {
	cmd.Execute()
}
