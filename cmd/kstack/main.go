// Command kstack builds helm values documents for stacks and deploys them.
package main

import "github.com/lolmeida/kstack/internal/cmd"

func main() {
	cmd.Execute()
}
