package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/engine"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/llm"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/research"
)

func runCMD(opts *rootOptions) *cobra.Command {
	var topic string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a deep research and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, session, closeFn, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			e, err := engine.NewEngine(cmd.Context(), opts.cfg, store, research.WithStateHook(func(runID string, from, to research.State) {
				logger.Log.Debugf("[%s] %s -> %s", runID, from, to)
			}))
			if err != nil {
				return err
			}

			res, err := e.RunDeepResearch(cmd.Context(), session, topic)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			if !res.Success {
				fmt.Fprintln(out, res.Message)
				return nil
			}
			fmt.Fprintf(out, "Plan (%s):\n", res.ExecutionSummary)
			for i, q := range res.Plan {
				fmt.Fprintf(out, "  %d. %s\n", i+1, q)
			}
			fmt.Fprintf(out, "\n%s\n", res.Report.Render())
			return nil
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "research topic (default: "+research.DefaultTopic+")")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result envelope as JSON")
	return cmd
}

func planCMD(opts *rootOptions) *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the query plan without searching",
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := opts.loadContext(cmd)
			if err != nil {
				return err
			}

			var gen llm.Generator
			if opts.cfg.LLM.Model != "" {
				g, err := llm.NewFromConfig(cmd.Context(), opts.cfg)
				if err != nil {
					return err
				}
				gen = g
			}

			plan := research.NewPlanner(opts.cfg.Research, gen).Plan(cmd.Context(), topic, bc)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tema: %s\nEnfoque: %s\nOrigen: %s\n", plan.Topic, plan.Intent, plan.Source)
			for i, q := range plan.Queries {
				fmt.Fprintf(out, "  %d. %s\n", i+1, q)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "research topic")
	return cmd
}

func checkCMD(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Show how complete the business profile is",
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := opts.loadContext(cmd)
			if err != nil {
				return err
			}
			r := research.Completeness(bc)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\nCompletitud: %.0f%%\n", r.StatusMessage(), r.Percentage*100)
			if len(r.MissingOptional) > 0 {
				fmt.Fprintf(out, "Opcionales faltantes: %s\n", strings.Join(r.MissingOptional, ", "))
			}
			return nil
		},
	}
}
