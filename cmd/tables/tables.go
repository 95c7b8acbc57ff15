package tables

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/fatboystring/tenantkit/cmd/cmdutil"
	"github.com/fatboystring/tenantkit/config"
	"github.com/fatboystring/tenantkit/core/schemaname"
	"github.com/fatboystring/tenantkit/dbschema/postgres"
	"github.com/fatboystring/tenantkit/dbschema/types"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables in a tenant schema",
	Long: `List the tables and views in a tenant schema as tab-separated lines of
relation name and kind. Tables named in the ignored_tables configuration
are excluded, as is the migration bookkeeping table by default.`,
	RunE: tablesCommand,
}

const (
	schemaFlag = "schema"
	configFlag = "config"
)

var tablesFlags = map[string]cobraflags.Flag{
	schemaFlag: &cobraflags.StringFlag{
		Name:  schemaFlag,
		Value: schemaname.PublicSchema,
		Usage: "Schema to list tables from",
	},
	configFlag: &cobraflags.StringFlag{
		Name:  configFlag,
		Value: "",
		Usage: "Path to a config file (optional)",
	},
}

func NewTablesCommand() *cobra.Command {
	cobraflags.RegisterMap(tablesCmd, tablesFlags)
	return tablesCmd
}

func tablesCommand(cmd *cobra.Command, _ []string) error {
	env, err := cmdutil.Setup(tablesFlags[configFlag].GetString())
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	if err := env.Conn.SetSchemaChecked(ctx, tablesFlags[schemaFlag].GetString()); err != nil {
		return err
	}
	defer env.Conn.SetSchemaToPublic(ctx)

	reader := postgres.NewReader(env.Conn, readerOptions(env.Cfg)...)
	relations, err := reader.ListTables(ctx)
	if err != nil {
		return err
	}

	for _, rel := range relations {
		kind := "table"
		if rel.Kind == types.KindView {
			kind = "view"
		}
		fmt.Printf("%s\t%s\n", rel.Name, kind)
	}
	return nil
}

// readerOptions translates the ignored_tables setting into reader options.
// An empty setting keeps the reader's default ignore list.
func readerOptions(cfg *config.Config) []postgres.Option {
	if len(cfg.IgnoredTables) == 0 {
		return nil
	}
	return []postgres.Option{postgres.WithIgnoredTables(cfg.IgnoredTables...)}
}
