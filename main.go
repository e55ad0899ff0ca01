package main

import "github.com/wali-delivery/ms-go-payments/cmd"

func main() {
	cmd.Execute()
}
