package main

import "github.com/wolfatthegate/HybridCloudSim-SC2025/cmd"

func main() {
	cmd.Execute()
}
