// cubealarm - a wake-up alarm silenced by solving a GAN smart cube.
package main

import (
	"github.com/pshapiro/cubealarm/internal/cli"
)

func main() {
	cli.Execute()
}
