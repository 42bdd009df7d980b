package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/arbor/internal/middleware"
	"github.com/dshills/arbor/internal/script"
	"github.com/dshills/arbor/internal/value"
)

type applyOptions struct {
	continueOnError bool
	printReads      bool
	audit           bool
	quiet           bool
}

func newApplyCmd(c *cli) *cobra.Command {
	var opts applyOptions

	cmd := &cobra.Command{
		Use:   "apply <script.yaml>...",
		Short: "Run operation scripts against the seed document and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, c, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.continueOnError, "continue", false, "Keep running after a failed step")
	flags.BoolVar(&opts.printReads, "print-reads", false, "Print the result of every read step as a JSON line")
	flags.BoolVar(&opts.audit, "audit", false, "Log every operation through the audit middleware")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print the final document")
	return cmd
}

func runApply(cmd *cobra.Command, c *cli, opts applyOptions, files []string) error {
	s, err := c.openStore()
	if err != nil {
		return err
	}
	if opts.audit {
		if _, err := s.Use(middleware.AllKinds(), nil, middleware.Audit(c.log)); err != nil {
			return err
		}
	}

	var runOpts []script.Option
	runOpts = append(runOpts, script.WithLogger(c.log))
	if opts.continueOnError {
		runOpts = append(runOpts, script.WithContinueOnError())
	}
	runner := script.NewRunner(s, runOpts...)

	out := cmd.OutOrStdout()
	var failed error
	for _, file := range files {
		sc, err := parseScript(file)
		if err != nil {
			return err
		}
		if sc.Name == "" {
			sc.Name = file
		}

		results, err := runner.Run(cmd.Context(), sc)
		if opts.printReads {
			for _, r := range results {
				if r.Step.Kind() != middleware.Read || r.Err != nil {
					continue
				}
				for _, res := range r.Results {
					line, jerr := json.Marshal(map[string]any{
						"path":  res.Path.String(),
						"value": res.Value,
					})
					if jerr != nil {
						return jerr
					}
					fmt.Fprintln(out, string(line))
				}
			}
		}
		if err != nil {
			if !opts.continueOnError {
				return errors.WithMessage(err, file)
			}
			if failed == nil {
				failed = errors.WithMessage(err, file)
			}
		}
	}

	if !opts.quiet {
		doc, err := value.EncodeJSONIndent(s.Document(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(doc))
	}
	return failed
}

func parseScript(file string) (*script.Script, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "open script")
	}
	defer f.Close()

	sc, err := script.Parse(f)
	if err != nil {
		return nil, errors.WithMessage(err, file)
	}
	return sc, nil
}
