// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/zerohunger/connect/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
