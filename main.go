// services/rental/main.go
package main

import (
	"example.com/backstage/services/rental/cmd"
)

func main() {
	cmd.Execute()
}
