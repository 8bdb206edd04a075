package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/citysdk/layercatalog/internal/catalog"
	"github.com/citysdk/layercatalog/internal/cli/ui"
	"github.com/citysdk/layercatalog/internal/layer"
	"github.com/citysdk/layercatalog/internal/serialize"
)

var (
	layersFormatFlag string
	layersGeomFlag   bool
)

// NewLayersCommand creates the layers command
func NewLayersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "Inspect the catalog's layers",
		Long: `Inspect the layers registered in the catalog database.

Layer names may be literal (osm.roads) or wildcards ending in ".*" (osm.*).`,
		Example: `  # List every layer
  layercatalog layers list

  # Render layers as Turtle
  layercatalog layers show osm.* --format turtle

  # Show the attributes of one layer
  layercatalog layers info osm.roads`,
	}

	cmd.AddCommand(newLayersListCommand())
	cmd.AddCommand(newLayersShowCommand())
	cmd.AddCommand(newLayersInfoCommand())
	cmd.AddCommand(newLayersValidateCommand())
	cmd.AddCommand(newLayersFetchCommand())

	return cmd
}

func newLayersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List layer names and ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				names, err := a.catalog.Names(ctx)
				if err != nil {
					return err
				}

				sorted := make([]string, 0, len(names))
				for name := range names {
					sorted = append(sorted, name)
				}
				sort.Strings(sorted)

				table := ui.NewTable(cmd.OutOrStdout(), color.NoColor, "ID", "NAME")
				for _, name := range sorted {
					table.AddRow(strconv.FormatInt(names[name], 10), name)
				}
				table.Render()
				return nil
			})
		},
	}
}

func newLayersShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>...",
		Short: "Render layer metadata as JSON or Turtle",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := serialize.ParseFormatName(layersFormatFlag)
			if err != nil {
				return err
			}
			tokens := splitTokens(args)

			return withApp(cmd, func(ctx context.Context, a *app) error {
				out, err := a.catalog.Render(ctx, tokens, format,
					serialize.Params{IncludeGeometry: layersGeomFlag},
					serialize.Request{URL: "/layers?name=" + strings.Join(tokens, ",")})
				if errors.Is(err, catalog.ErrNoLayers) {
					reportMissing(ctx, cmd.ErrOrStderr(), a, strings.Join(tokens, ","))
				}
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if _, err := w.Write(out); err != nil {
					return err
				}
				if format == serialize.FormatJSON {
					fmt.Fprintln(w)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&layersFormatFlag, "format", "f", "json", "output format (json, turtle)")
	cmd.Flags().BoolVar(&layersGeomFlag, "geom", false, "include bounding boxes")

	return cmd
}

func newLayersInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show the realtime, validity and webservice attributes of a layer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withApp(cmd, func(ctx context.Context, a *app) error {
				names, err := a.catalog.Names(ctx)
				if err != nil {
					return err
				}
				id, ok := names[name]
				if !ok {
					reportMissing(ctx, cmd.ErrOrStderr(), a, name)
					return fmt.Errorf("%w: %s", catalog.ErrLayerNotFound, name)
				}
				return writeLayerInfo(ctx, cmd.OutOrStdout(), a.catalog, id, name)
			})
		},
	}
}

func writeLayerInfo(ctx context.Context, w io.Writer, cat *catalog.Catalog, id int64, name string) error {
	validity, err := cat.Validity(ctx, id)
	if err != nil {
		return err
	}
	webservice, err := cat.IsWebservice(ctx, id)
	if err != nil {
		return err
	}
	timeout, err := cat.DataTimeout(ctx, id)
	if err != nil {
		return err
	}

	kv := ui.NewKeyValues(w, color.NoColor)
	kv.Add("Name", name)
	kv.Add("ID", strconv.FormatInt(id, 10))
	kv.Add("Realtime", strconv.FormatBool(validity.Realtime))
	if validity.UpdateRate != nil {
		kv.Add("Update rate", strconv.FormatInt(*validity.UpdateRate, 10))
	}
	if validity.Window != "" {
		kv.Add("Validity", validity.Window)
	}
	kv.Add("Webservice", strconv.FormatBool(webservice))
	if webservice {
		url, err := cat.WebserviceURL(ctx, id)
		if err != nil {
			return err
		}
		kv.Add("Webservice URL", url)
	}
	kv.Add("Data timeout", timeout.String())
	kv.Render()
	return nil
}

func newLayersValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every stored layer for invalid names and missing fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				layers, err := a.store.Layers(ctx)
				if err != nil {
					return err
				}

				invalid := 0
				for _, l := range layers {
					var verr *layer.ValidationError
					if err := l.Validate(); errors.As(err, &verr) {
						invalid++
						for _, fe := range verr.Errors {
							ui.Message{
								Level:   ui.LevelWarning,
								Context: fmt.Sprintf("layer %d (%s)", l.ID, l.Name),
								Problem: fe.Field + ": " + fe.Message,
								NoColor: color.NoColor,
							}.Write(cmd.ErrOrStderr())
						}
					}
				}

				if invalid > 0 {
					return fmt.Errorf("%d of %d layers are invalid", invalid, len(layers))
				}
				ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%d layers are valid", len(layers)), color.NoColor)
				return nil
			})
		},
	}
}

func newLayersFetchCommand() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "fetch <name> <node-id>",
		Short: "Fetch live data for a node from the layer's webservice",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, nodeID := args[0], args[1]

			data := make(map[string]interface{}, len(params))
			for _, p := range params {
				key, value, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid --data %q, expected key=value", p)
				}
				data[key] = value
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				names, err := a.catalog.Names(ctx)
				if err != nil {
					return err
				}
				id, ok := names[name]
				if !ok {
					reportMissing(ctx, cmd.ErrOrStderr(), a, name)
					return fmt.Errorf("%w: %s", catalog.ErrLayerNotFound, name)
				}

				result, err := a.catalog.GetData(ctx, id, nodeID, data)
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&params, "data", "d", nil, "node data sent to the webservice (key=value, repeatable)")

	return cmd
}

// withApp wires the catalog from the command's config, runs fn and closes
// everything afterwards
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// splitTokens accepts names as separate arguments or comma separated
func splitTokens(args []string) []string {
	var tokens []string
	for _, arg := range args {
		for _, token := range strings.Split(arg, ",") {
			if token = strings.TrimSpace(token); token != "" {
				tokens = append(tokens, token)
			}
		}
	}
	return tokens
}

// reportMissing prints a not-found message with similarly named layers
func reportMissing(ctx context.Context, w io.Writer, a *app, token string) {
	names, err := a.catalog.Names(ctx)
	if err != nil {
		return
	}
	candidates := make([]string, 0, len(names))
	for name := range names {
		candidates = append(candidates, name)
	}
	ui.LayerNotFound(token, ui.FindSimilar(strings.TrimSuffix(token, ".*"), candidates, 3), color.NoColor).Write(w)
}
