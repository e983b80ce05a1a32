// This program performs administrative tasks against the PoP state of a
// node and the node's API.
package main

import (
	"github.com/VeriBlock/alt-integration-go/app/tooling/admin/cmd"
)

func main() {
	cmd.Execute()
}
