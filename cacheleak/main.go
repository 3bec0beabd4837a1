// Command cacheleak recovers a secret from a simulated target through a
// transient-execution cache side channel.
package main

import "github.com/sarchlab/cacheleak/cacheleak/cmd"

func main() {
	cmd.Execute()
}
