package main

import "github.com/vibast-solutions/ms-go-kiosk-payments/cmd"

func main() {
	cmd.Execute()
}
