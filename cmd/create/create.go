package create

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/fatboystring/tenantkit/cmd/cmdutil"
	"github.com/fatboystring/tenantkit/tenant"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a tenant and its schema",
	Long: `Create a tenant row in the public schema and, unless --no-schema is given,
create the tenant's physical schema and apply all migrations to it.

The command must run with the connection in the public schema context; this
is the default for a fresh connection.`,
	RunE: createCommand,
}

const (
	schemaFlag   = "schema"
	nameFlag     = "name"
	domainFlag   = "domain"
	noSchemaFlag = "no-schema"
	configFlag   = "config"
)

var createFlags = map[string]cobraflags.Flag{
	schemaFlag: &cobraflags.StringFlag{
		Name:  schemaFlag,
		Value: "",
		Usage: "Schema name for the tenant (required)",
	},
	nameFlag: &cobraflags.StringFlag{
		Name:  nameFlag,
		Value: "",
		Usage: "Display name for the tenant (defaults to the schema name)",
	},
	domainFlag: &cobraflags.StringFlag{
		Name:  domainFlag,
		Value: "",
		Usage: "Domain to attach to the tenant (optional)",
	},
	noSchemaFlag: &cobraflags.BoolFlag{
		Name:  noSchemaFlag,
		Value: false,
		Usage: "Create the tenant row only, without a physical schema",
	},
	configFlag: &cobraflags.StringFlag{
		Name:  configFlag,
		Value: "",
		Usage: "Path to a config file (optional)",
	},
}

func NewCreateCommand() *cobra.Command {
	cobraflags.RegisterMap(createCmd, createFlags)
	return createCmd
}

func createCommand(cmd *cobra.Command, _ []string) error {
	schemaName := createFlags[schemaFlag].GetString()
	if schemaName == "" {
		return fmt.Errorf("schema name is required (use --schema)")
	}
	name := createFlags[nameFlag].GetString()
	if name == "" {
		name = schemaName
	}

	env, err := cmdutil.Setup(createFlags[configFlag].GetString())
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	if err := env.Store.EnsureSchema(ctx); err != nil {
		return err
	}

	t := tenant.New(schemaName, name)
	if createFlags[noSchemaFlag].GetBool() {
		t.AutoCreateSchema = false
	}

	if err := env.Service.CreateTenant(ctx, t); err != nil {
		return err
	}

	if domain := createFlags[domainFlag].GetString(); domain != "" {
		if _, err := env.Store.AddDomain(ctx, t, domain); err != nil {
			return err
		}
	}

	fmt.Printf("Created tenant %q (schema %q)\n", t.Name, t.SchemaName)
	return nil
}
