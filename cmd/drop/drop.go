package drop

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/fatboystring/tenantkit/cmd/cmdutil"
)

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete a tenant",
	Long: `Delete a tenant row. The tenant's physical schema is dropped (with all
objects in it) only when the tenant has auto-drop enabled or --force is
given; otherwise the schema is left intact.`,
	RunE: dropCommand,
}

const (
	schemaFlag = "schema"
	forceFlag  = "force"
	configFlag = "config"
)

var dropFlags = map[string]cobraflags.Flag{
	schemaFlag: &cobraflags.StringFlag{
		Name:  schemaFlag,
		Value: "",
		Usage: "Schema name of the tenant to delete (required)",
	},
	forceFlag: &cobraflags.BoolFlag{
		Name:  forceFlag,
		Value: false,
		Usage: "Drop the physical schema even when auto-drop is disabled",
	},
	configFlag: &cobraflags.StringFlag{
		Name:  configFlag,
		Value: "",
		Usage: "Path to a config file (optional)",
	},
}

func NewDropCommand() *cobra.Command {
	cobraflags.RegisterMap(dropCmd, dropFlags)
	return dropCmd
}

func dropCommand(cmd *cobra.Command, _ []string) error {
	schemaName := dropFlags[schemaFlag].GetString()
	if schemaName == "" {
		return fmt.Errorf("schema name is required (use --schema)")
	}

	env, err := cmdutil.Setup(dropFlags[configFlag].GetString())
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	t, err := env.Store.GetBySchemaName(ctx, schemaName)
	if err != nil {
		return err
	}

	if err := env.Service.DeleteTenant(ctx, t, dropFlags[forceFlag].GetBool()); err != nil {
		return err
	}

	fmt.Printf("Deleted tenant %q (schema %q)\n", t.Name, t.SchemaName)
	return nil
}
