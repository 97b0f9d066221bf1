package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codebuddy/internal/langdetect"
	"codebuddy/internal/postprocess"
	"codebuddy/internal/profiler"
	"codebuddy/pkg/types"
)

func newProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Probe host CPU and GPU and print the capabilities as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := profiler.Profile(cmd.Context(), profiler.Options{Logger: a.log})
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(caps.Host())
		},
	}
}

func newDetectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "detect <prompt>",
		Short:   "Print the language a prompt would be routed to",
		Example: "  codebuddyd detect \"list running services with Get-Service\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(a.out, langdetect.Detect(strings.Join(args, " ")))
			return err
		},
	}
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		lang      string
		temp      float64
		maxTokens int
		fence     bool
	)
	cmd := &cobra.Command{
		Use:     "generate <prompt>",
		Short:   "Load a model, generate code for one prompt and exit",
		Example: "  codebuddyd generate --language python \"reverse a linked list\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.buildStack(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer func() { _ = st.close(context.Background()) }()

			req := types.GenerationRequest{
				Prompt:       strings.Join(args, " "),
				Language:     lang,
				Temperature:  temp,
				MaxNewTokens: maxTokens,
			}
			return st.mgr.Generate(cmd.Context(), req, func(c types.Chunk) error {
				if c.Kind != types.ChunkFinal {
					return nil
				}
				text := c.Text
				if fence {
					text = postprocess.FormatCode(text, c.Language)
				}
				_, err := fmt.Fprintln(a.out, text)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&lang, "language", "", "Language key; detected from the prompt when empty")
	cmd.Flags().Float64Var(&temp, "temperature", 0, "Sampling temperature (0 selects the default)")
	cmd.Flags().IntVar(&maxTokens, "max-new-tokens", 0, "Upper bound on generated tokens (0 selects the default)")
	cmd.Flags().BoolVar(&fence, "fence", false, "Wrap the output in a markdown code fence")
	return cmd
}
