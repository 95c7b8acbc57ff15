package list

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/fatboystring/tenantkit/cmd/cmdutil"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tenants",
	Long: `List all tenants as tab-separated lines of schema name and the tenant's
comma-joined domains, suitable for piping into other tools.`,
	RunE: listCommand,
}

const configFlag = "config"

var listFlags = map[string]cobraflags.Flag{
	configFlag: &cobraflags.StringFlag{
		Name:  configFlag,
		Value: "",
		Usage: "Path to a config file (optional)",
	},
}

func NewListCommand() *cobra.Command {
	cobraflags.RegisterMap(listCmd, listFlags)
	return listCmd
}

func listCommand(cmd *cobra.Command, _ []string) error {
	env, err := cmdutil.Setup(listFlags[configFlag].GetString())
	if err != nil {
		return err
	}
	defer env.Close()

	rows, err := env.Store.Export(cmd.Context())
	if err != nil {
		return err
	}

	for _, row := range rows {
		fmt.Printf("%s\t%s\n", row.SchemaName, row.Domains)
	}
	return nil
}
