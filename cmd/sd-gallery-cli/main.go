package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vrsandeep/sd-gallery/internal/auth"
	"github.com/vrsandeep/sd-gallery/internal/core"
	"github.com/vrsandeep/sd-gallery/internal/library"
	"github.com/vrsandeep/sd-gallery/internal/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sd-gallery-cli",
		Short: "Inspect a Stable Diffusion image library from the command line",
		Long: `sd-gallery-cli reads the same config.yml and SDG_ variables as the server
and prints groups, metadata, directory listings and statistics as JSON.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(
		newGroupsCmd(),
		newMetadataCmd(),
		newDirsCmd(),
		newAnalyticsCmd(),
		newTagsCmd(),
		newHashTokenCmd(),
		newVersionCmd(),
	)
	return cmd
}

// withApp builds the application, runs fn and releases it again.
func withApp(fn func(app *core.App) error) error {
	app, err := core.New()
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func newGroupsCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "groups [directory]",
		Short: "Group the images of a directory by consecutive seeds",
		Example: `  sd-gallery-cli groups
  sd-gallery-cli groups 2024-05 --search castle`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *core.App) error {
				groups, err := app.Scanner.Scan(cmd.Context(), optionalArg(args))
				if err != nil {
					return err
				}
				groups = library.FilterGroups(groups, search)
				return printJSON(cmd.OutOrStdout(), models.GroupsResponse{
					TotalGroups: len(groups),
					Groups:      groups,
				})
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Keep groups whose prompt contains this text")
	return cmd
}

func newMetadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <file>",
		Short: "Print the generation metadata embedded in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *core.App) error {
				path := args[0]
				if _, err := os.Stat(path); err != nil {
					return err
				}
				name := filepath.Base(path)
				id, seed := app.Matcher.ExtractIDAndSeed(name)
				result := app.Extractor.ExtractResult(path)
				if result.Err != nil {
					log.Warn("metadata could not be decoded", "file", path, "err", result.Err)
				}
				return printJSON(cmd.OutOrStdout(), struct {
					models.ImageMetadataResponse
					Status string `json:"status"`
				}{
					ImageMetadataResponse: models.ImageMetadataResponse{
						Filename: name,
						ID:       id,
						Seed:     seed,
						Metadata: result.Metadata,
					},
					Status: result.Status.String(),
				})
			})
		},
	}
}

func newDirsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dirs [path]",
		Short: "List the subdirectories of a library path with image counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *core.App) error {
				listing, err := app.Scanner.ListDirectories(optionalArg(args))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), listing)
			})
		},
	}
}

func newAnalyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics [directory]",
		Short: "Summarize models, samplers and prompts used in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *core.App) error {
				groups, err := app.Scanner.Scan(cmd.Context(), optionalArg(args))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), library.Analyze(groups))
			})
		},
	}
}

func newTagsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tags [directory]",
		Short: "List the most common prompt tags in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *core.App) error {
				groups, err := app.Scanner.Scan(cmd.Context(), optionalArg(args))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"tags": library.CommonTags(groups, limit),
				})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of tags, 0 for all")
	return cmd
}

func newHashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print the bcrypt hash to put in auth.token_hash",
		Example: `  sd-gallery-cli hash-token "my secret"
  SDG_AUTH_TOKEN_HASH='<output>' sd-gallery`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), core.Version)
		},
	}
}
