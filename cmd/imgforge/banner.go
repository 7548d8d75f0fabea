package main

import (
	"fmt"

	"github.com/fatih/color"

	"imgforge/internal/config"
)

var (
	cTitle = color.New(color.FgHiMagenta, color.Bold).SprintFunc()
	cLabel = color.New(color.FgCyan).SprintFunc()
	cDim   = color.New(color.FgHiBlack).SprintFunc()
)

// printBanner writes the startup summary to stdout before structured
// logging takes over.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Printf("   %s  %s\n", cTitle("imgforge"), cDim("image transformation proxy"))
	fmt.Printf("   %s  http://%s\n", cLabel("➜ Listen:"), cfg.Bind)
	fmt.Printf("   %s  %d\n", cLabel("➜ Workers:"), cfg.Workers)
	fmt.Printf("   %s  %s\n", cLabel("➜ Cache:"), cfg.Cache.Type)
	fmt.Println()
}
