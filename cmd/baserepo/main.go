// Command baserepo is a local administration CLI for a baserepo repository:
// it opens the configured store directly and performs resource and content
// operations with a caller identity supplied on the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/baserepo/internal/logger"
	"github.com/marmos91/baserepo/pkg/config"
	"github.com/marmos91/baserepo/pkg/content"
	"github.com/marmos91/baserepo/pkg/facade"
	"github.com/marmos91/baserepo/pkg/repo"
	"github.com/marmos91/baserepo/pkg/repo/patch"
	"github.com/marmos91/baserepo/pkg/store"
)

var (
	flagConfig      string
	flagPrincipal   string
	flagGroups      []string
	flagAuthorities []string
	flagAdmin       bool
	flagEtag        string
	flagForce       bool
	flagMediaType   string
	flagTag         string
	flagTitle       string
	flagOutput      string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadedConfig is set by openRepository so caller resolution can consult the
// configured administrator role.
var loadedConfig *config.Config

// openRepository loads the configuration and wires the facade. The caller
// must close the returned store.
func openRepository(ctx context.Context) (*facade.Repository, store.Store, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	loadedConfig = cfg

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return nil, nil, err
	}

	return config.NewRepository(ctx, cfg)
}

// caller builds the resolved identity from the command line flags. Holding
// the configured administrator authority is equivalent to --admin.
func caller() repo.Agent {
	agent := repo.Agent{
		Principal:     flagPrincipal,
		Groups:        flagGroups,
		Authorities:   flagAuthorities,
		Administrator: flagAdmin,
	}
	if loadedConfig != nil && agent.HasAuthority(loadedConfig.Auth.AdministratorRole) {
		agent.Administrator = true
	}
	return agent
}

func printResult(result *facade.MutationResult) error {
	encoded, err := json.MarshalIndent(result.Resource, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	fmt.Printf("ETag: %s\nVersion: %d\n", result.Etag, result.Version)
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "baserepo",
	Short: "Metadata-and-content repository administration",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and print the effective values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}

		effective, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Println("Configuration valid:")
		fmt.Print(string(effective))
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a resource",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repository, s, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		result, err := repository.Create(ctx, &repo.Resource{Title: flagTitle}, caller())
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <resource-id>",
	Short: "Show a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repository, s, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		result, err := repository.Get(ctx, args[0], caller())
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var patchCmd = &cobra.Command{
	Use:   "patch <resource-id> <patch-file>",
	Short: "Apply a JSON patch to a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		ops, err := patch.ParseOperations(data)
		if err != nil {
			return err
		}

		repository, s, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		result, err := repository.Patch(ctx, args[0], ops, caller(), flagEtag)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var fixCmd = &cobra.Command{
	Use:   "fix <resource-id>",
	Short: "Transition a resource to FIXED",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRun(func(r *facade.Repository, ctx context.Context, id string) (*facade.MutationResult, error) {
		return r.Fix(ctx, id, caller(), flagEtag)
	}),
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <resource-id>",
	Short: "Soft-delete a resource",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRun(func(r *facade.Repository, ctx context.Context, id string) (*facade.MutationResult, error) {
		return r.Revoke(ctx, id, caller(), flagEtag)
	}),
}

func transitionRun(op func(*facade.Repository, context.Context, string) (*facade.MutationResult, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repository, s, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		result, err := op(repository, ctx, args[0])
		if err != nil {
			return err
		}
		return printResult(result)
	}
}

var purgeCmd = &cobra.Command{
	Use:   "purge <resource-id>",
	Short: "Permanently remove a revoked resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repository, s, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		if err := repository.Purge(ctx, args[0], caller(), flagEtag); err != nil {
			return err
		}
		fmt.Println("Purged", args[0])
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:   "put <resource-id> <path> <file>",
	Short: "Upload content to a resource",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		file, err := os.Open(args[2])
		if err != nil {
			return err
		}
		defer func() { _ = file.Close() }()

		repository, s, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		item, err := repository.PutContent(ctx, args[0], args[1], content.PutRequest{
			Stream:    file,
			MediaType: flagMediaType,
			Force:     flagForce,
		}, caller())
		if err != nil {
			return err
		}

		fmt.Printf("Stored %s (%d bytes, %s, %s)\n", item.Path, item.Size, item.MediaType, item.Hash)
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <resource-id> <path>",
	Short: "Download content of a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repository, s, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		result, err := repository.GetContent(ctx, args[0], args[1], caller())
		if err != nil {
			return err
		}

		switch result.Outcome {
		case content.OutcomeStream:
			defer func() { _ = result.Reader.Close() }()
			out := os.Stdout
			if flagOutput != "" {
				out, err = os.Create(flagOutput)
				if err != nil {
					return err
				}
				defer func() { _ = out.Close() }()
			}
			_, err = io.Copy(out, result.Reader)
			return err

		case content.OutcomeRedirect:
			fmt.Printf("Content is remote, download from: %s\n", result.Location)
			return nil

		case content.OutcomeUnavailable:
			return fmt.Errorf("remote content currently unavailable: %s", result.URI)

		default:
			fmt.Printf("Content locator (unresolved scheme): %s\n", result.URI)
			return nil
		}
	},
}

var contentsCmd = &cobra.Command{
	Use:   "contents <resource-id>",
	Short: "List content items of a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repository, s, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		items, err := repository.ListContent(ctx, args[0], flagTag, caller())
		if err != nil {
			return err
		}

		for _, item := range items {
			tags := ""
			if len(item.Tags) > 0 {
				tags = " [" + strings.Join(item.Tags, ",") + "]"
			}
			fmt.Printf("%-40s %10d  %-24s %s%s\n", item.Path, item.Size, item.MediaType, item.Hash, tags)
		}
		return nil
	},
}

var trailCmd = &cobra.Command{
	Use:   "trail <resource-id>",
	Short: "Show the audit trail of a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repository, s, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		trail, err := repository.Trail(ctx, args[0], 0, 20, caller())
		if err != nil {
			return err
		}
		fmt.Println(trail)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&flagPrincipal, "principal", "", "caller principal id")
	rootCmd.PersistentFlags().StringSliceVar(&flagGroups, "group", nil, "caller group membership (repeatable)")
	rootCmd.PersistentFlags().StringSliceVar(&flagAuthorities, "authority", nil, "caller granted authority (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flagAdmin, "admin", false, "act with the global administrator role")

	createCmd.Flags().StringVar(&flagTitle, "title", "", "resource title")
	patchCmd.Flags().StringVar(&flagEtag, "etag", "", "current resource ETag")
	fixCmd.Flags().StringVar(&flagEtag, "etag", "", "current resource ETag")
	revokeCmd.Flags().StringVar(&flagEtag, "etag", "", "current resource ETag")
	purgeCmd.Flags().StringVar(&flagEtag, "etag", "", "current resource ETag")
	putCmd.Flags().BoolVar(&flagForce, "force", false, "overwrite existing content at the path")
	putCmd.Flags().StringVar(&flagMediaType, "media-type", "", "declared media type (sniffed when empty)")
	fetchCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write content to file instead of stdout")
	contentsCmd.Flags().StringVar(&flagTag, "tag", "", "filter by tag")

	rootCmd.AddCommand(validateCmd, createCmd, showCmd, patchCmd, fixCmd, revokeCmd,
		purgeCmd, putCmd, fetchCmd, contentsCmd, trailCmd)
}
