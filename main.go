// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/kpmd/kpmd/cmd/kpmd"

func main() {
	cmd.Execute()
}
