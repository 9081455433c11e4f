package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/estimate"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/pipeline"
	"github.com/wudi/pdfstudio/rules"
	"github.com/wudi/pdfstudio/studio"
)

// newApp creates the CLI application with all commands.
func newApp() *cli.App {
	app := &cli.App{
		Name:    "pdfstudio",
		Usage:   "Rule-based document transformation pipeline",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Log level: debug|info|warn|error"},
			&cli.StringFlag{Name: "log-format", Value: "json", Usage: "Log format: json|console"},
		},
		Commands: []*cli.Command{
			validateCmd(),
			applyCmd(),
			estimateCmd(),
		},
	}
	// Disable the default exit handler so errors return to the caller
	// (and to tests) instead of terminating the process mid-run.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func newLogger(c *cli.Context) observability.Logger {
	return observability.NewZerolog(observability.ZerologConfig{
		Level:   c.String("log-level"),
		Format:  c.String("log-format"),
		Output:  os.Stderr,
		Service: "pdfstudio",
	})
}

func loadRules(path string) (rules.List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule list: %w", err)
	}
	list, err := rules.UnmarshalList(data)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// loadInput reads the input file (when given) and synthesizes the page set
// the flags describe.
func loadInput(c *cli.Context) ([]byte, []document.PageSize, error) {
	pages := c.Int("pages")
	if pages < 1 {
		return nil, nil, fmt.Errorf("--pages must be at least 1")
	}
	sizes := make([]document.PageSize, pages)
	for i := range sizes {
		sizes[i] = document.A4
	}
	var data []byte
	if path := c.String("input"); path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read input document: %w", err)
		}
	} else {
		data = make([]byte, c.Int64("size"))
	}
	return data, sizes, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printStepError emits the structured validation report and returns a
// non-nil error so the process exits non-zero.
func printStepError(err error) error {
	var step *pipeline.StepError
	if errors.As(err, &step) {
		report := struct {
			Valid     bool                    `json:"valid"`
			RuleIndex int                     `json:"rule_index"`
			RuleKind  rules.Kind              `json:"rule_kind"`
			Errors    []rules.ValidationError `json:"errors,omitempty"`
			Reason    string                  `json:"reason,omitempty"`
		}{
			RuleIndex: step.RuleIndex,
			RuleKind:  step.RuleKind,
			Errors:    step.Validation,
		}
		if step.Err != nil {
			report.Reason = step.Err.Error()
		}
		if perr := printJSON(report); perr != nil {
			return perr
		}
		return cli.Exit("", 1)
	}
	return err
}

func validateCmd() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate a rule-list JSON file against a document shape",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rules", Aliases: []string{"r"}, Required: true, Usage: "Rule list JSON file"},
			&cli.IntFlag{Name: "pages", Aliases: []string{"p"}, Value: 1, Usage: "Document page count"},
			&cli.Int64Flag{Name: "size", Value: 1 << 20, Usage: "Document size in bytes"},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Input document file (overrides --size)"},
		},
		Action: func(c *cli.Context) error {
			list, err := loadRules(c.String("rules"))
			if err != nil {
				return err
			}
			data, sizes, err := loadInput(c)
			if err != nil {
				return err
			}

			s, err := studio.New(studio.Config{Logger: newLogger(c)})
			if err != nil {
				return err
			}
			defer s.Close()

			doc := s.Upload(data, sizes)
			if err := s.SubmitRuleList(doc, list); err != nil {
				return printStepError(err)
			}
			return printJSON(struct {
				Valid       bool   `json:"valid"`
				Rules       int    `json:"rules"`
				Fingerprint string `json:"fingerprint"`
			}{true, len(list), list.Fingerprint()})
		},
	}
}

func applyCmd() *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Apply a rule list to a document and commit the result",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rules", Aliases: []string{"r"}, Required: true, Usage: "Rule list JSON file"},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Input document file"},
			&cli.IntFlag{Name: "pages", Aliases: []string{"p"}, Value: 1, Usage: "Document page count"},
			&cli.Int64Flag{Name: "size", Value: 1 << 20, Usage: "Document size in bytes (without --input)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write the committed artifact here"},
			&cli.StringFlag{Name: "data-dir", Usage: "Artifact storage directory (default: temporary)"},
		},
		Action: func(c *cli.Context) error {
			list, err := loadRules(c.String("rules"))
			if err != nil {
				return err
			}
			data, sizes, err := loadInput(c)
			if err != nil {
				return err
			}

			s, err := studio.New(studio.Config{
				DataDir: c.String("data-dir"),
				Logger:  newLogger(c),
			})
			if err != nil {
				return err
			}
			defer s.Close()

			doc := s.Upload(data, sizes)
			res, err := s.Commit(c.Context, doc, list)
			if err != nil {
				return printStepError(err)
			}

			if out := c.String("out"); out != "" {
				artifact, err := s.OpenArtifact(res.Artifact.ID)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, artifact, 0600); err != nil {
					return fmt.Errorf("write artifact: %w", err)
				}
			}
			return printJSON(struct {
				Artifact   string              `json:"artifact"`
				Pages      int                 `json:"pages"`
				Bytes      int64               `json:"bytes"`
				Advisories []pipeline.Advisory `json:"advisories,omitempty"`
			}{
				Artifact:   res.Artifact.ID,
				Pages:      res.Document.Meta().PageCount,
				Bytes:      res.Document.Meta().ByteSize,
				Advisories: res.Advisories,
			})
		},
	}
}

func estimateCmd() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "Estimate the outcome of a compress rule",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "size", Required: true, Usage: "Original size in bytes"},
			&cli.StringFlag{Name: "level", Aliases: []string{"l"}, Value: "medium", Usage: "low|medium|high|maximum|custom"},
			&cli.Int64Flag{Name: "target", Usage: "Target size in bytes (custom level)"},
		},
		Action: func(c *cli.Context) error {
			est, err := estimate.ForRule(c.Int64("size"), rules.Compress{
				Level:       rules.CompressionLevel(c.String("level")),
				TargetBytes: c.Int64("target"),
			})
			if err != nil {
				return err
			}
			return printJSON(est)
		},
	}
}
