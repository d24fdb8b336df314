package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-cubism/internal/log"
	"github.com/teslashibe/go-cubism/pkg/live2d"
	"github.com/teslashibe/go-cubism/pkg/motion"
)

func inspectCmd() *cobra.Command {
	var load, asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <model-settings>",
		Short: "Show a model's motions, expressions and hit areas",
		Long: `Parse a model settings file and list what it defines. With --load,
every motion and expression file is fetched and decoded as well, so broken
references show up before the model is served.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Init("error")
			ctx := context.Background()

			m, err := openModel(ctx, args[0], live2d.Options{
				Motion: motion.Config{Preload: motion.PreloadNone},
			})
			if err != nil {
				return err
			}
			defer m.Destroy()

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(m.Settings())
			}
			return printModel(ctx, m, load)
		},
	}
	cmd.Flags().BoolVar(&load, "load", false, "fetch and decode every motion and expression")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the normalized settings as JSON")
	return cmd
}

func printModel(ctx context.Context, m *live2d.Model, load bool) error {
	s := m.Settings()
	rt := m.Internal().Runtime()
	bold := color.New(color.Bold)
	ok := color.New(color.FgGreen).Sprint("OK")

	bold.Printf("%s\n", s.Name)
	fmt.Printf("  runtime: %s (v%d)\n", rt.Name(), rt.Version())
	fmt.Printf("  moc:     %s\n", s.Moc)
	if s.Physics != "" {
		fmt.Printf("  physics: %s\n", s.Physics)
	}
	fmt.Println()

	failures := 0
	motions := m.Internal().Motions()
	bold.Println("Motions")
	for _, group := range s.MotionGroups() {
		fmt.Printf("  %s\n", color.New(color.FgCyan).Sprint(group))
		for i, def := range s.Motions[group] {
			status := ""
			if load {
				if _, loaded := motions.LoadMotion(ctx, group, i); loaded {
					status = ok
				} else {
					failures++
					status = color.New(color.FgRed).Sprint("FAILED")
					if slot, found := motions.Slot(group, i); found && slot.Err != nil {
						status += " " + slot.Err.Error()
					}
				}
			}
			sound := ""
			if def.Sound != "" {
				sound = color.New(color.FgYellow).Sprintf(" ♪ %s", def.Sound)
			}
			fmt.Printf("    [%d] %s%s %s\n", i, def.File, sound, status)
		}
	}

	if len(s.Expressions) > 0 {
		fmt.Println()
		bold.Println("Expressions")
		exprs := m.Internal().Expressions()
		for i, def := range s.Expressions {
			status := ""
			if load {
				if _, loaded := exprs.LoadExpression(ctx, i); loaded {
					status = ok
				} else {
					failures++
					status = color.New(color.FgRed).Sprint("FAILED")
					if slot, found := exprs.Slot(i); found && slot.Err != nil {
						status += " " + slot.Err.Error()
					}
				}
			}
			fmt.Printf("  [%d] %s  %s %s\n", i, def.Name, def.File, status)
		}
	}

	if len(s.HitAreas) > 0 {
		fmt.Println()
		bold.Println("Hit areas")
		for _, h := range s.HitAreas {
			fmt.Printf("  %s → %s\n", h.Name, h.ID)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d file(s) failed to load", failures)
	}
	return nil
}
