package main

import "github.com/vibast-solutions/ms-go-api-subscriptions/cmd"

func main() {
	cmd.Execute()
}
