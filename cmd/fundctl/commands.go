package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/ndewijer/fundval-backend/internal/api"
	"github.com/ndewijer/fundval-backend/internal/config"
	"github.com/ndewijer/fundval-backend/internal/database"
	"github.com/ndewijer/fundval-backend/internal/importer"
	"github.com/ndewijer/fundval-backend/internal/logging"
	"github.com/ndewijer/fundval-backend/internal/validation"
)

// Command output goes through these so results and diagnostics can be captured.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var commands = []subcommands.Command{
	&migrateCmd{},
	&recalculateCmd{},
	&importCmd{},
	&auditCmd{},
}

// env is what every command needs: configuration, a logger on stderr and a migrated database.
type env struct {
	cfg *config.Config
	log zerolog.Logger
	db  *sql.DB
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.NewWithWriter(cfg.Log, stderr)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending database migrations" }
func (*migrateCmd) Usage() string {
	return `fundctl migrate

  Applies every pending schema migration and prints the resulting version.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer e.db.Close()

	version, err := database.Version(ctx, e.db)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "schema version %d\n", version)
	return subcommands.ExitSuccess
}

type recalculateCmd struct {
	account string
}

func (*recalculateCmd) Name() string     { return "recalculate" }
func (*recalculateCmd) Synopsis() string { return "rebuild positions from the ledger" }
func (*recalculateCmd) Usage() string {
	return `fundctl recalculate [-account <uuid>]

  Refolds every (account, fund) ledger into its position. With -account only
  that account and its children are swept. Prints the sweep summary; exits
  non-zero if any position failed.
`
}

func (c *recalculateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Restrict the sweep to this account and its children.")
}

func (c *recalculateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer e.db.Close()

	var scope *string
	if c.account != "" {
		scope = &c.account
	}

	svc := api.NewServices(e.db, e.cfg, e.log)
	summary, err := svc.Position.RecalculateAllPositions(ctx, scope)
	if perr := printJSON(stdout, summary); perr != nil {
		fmt.Fprintln(stderr, perr)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type auditCmd struct {
	date string
}

func (*auditCmd) Name() string     { return "audit-accuracy" }
func (*auditCmd) Synopsis() string { return "score estimate snapshots against published NAVs" }
func (*auditCmd) Usage() string {
	return `fundctl audit-accuracy [-date YYYY-MM-DD]

  Compares every estimate snapshot of the day with the NAV published for it
  and stores the error rate. The day defaults to today (UTC).
`
}

func (c *auditCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "Day to audit, YYYY-MM-DD.")
}

func (c *auditCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	day := time.Now().UTC()
	if c.date != "" {
		d, err := validation.ParseDate(c.date)
		if err != nil {
			fmt.Fprintln(stderr, "-date must be in YYYY-MM-DD format")
			return subcommands.ExitUsageError
		}
		day = d
	}

	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer e.db.Close()

	svc := api.NewServices(e.db, e.cfg, e.log)
	result, err := svc.Fund.AuditAccuracy(ctx, day)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	if err := printJSON(stdout, result); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type importCmd struct {
	owner     string
	feed      string
	overwrite bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import broker holdings into the ledger" }
func (*importCmd) Usage() string {
	return `fundctl import -owner <id> [-feed <file.json>] [-overwrite]

  Reconciles broker holdings into the owner's ledger. Holdings are read from
  -feed when given ("-" reads stdin), otherwise from the configured broker API.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "Owner receiving the imported accounts.")
	f.StringVar(&c.feed, "feed", "", "Path of a broker feed document.")
	f.BoolVar(&c.overwrite, "overwrite", false, "Replace the ledgers of already imported accounts.")
}

func (c *importCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.owner == "" {
		fmt.Fprintln(stderr, "-owner is required")
		return subcommands.ExitUsageError
	}

	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer e.db.Close()

	svc := api.NewServices(e.db, e.cfg, e.log)
	source, err := c.source(svc.Broker)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}

	result, err := svc.Import.Import(ctx, c.owner, source, c.overwrite)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	if err := printJSON(stdout, result); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *importCmd) source(broker importer.Source) (importer.Source, error) {
	if c.feed == "" {
		if broker == nil {
			return nil, errors.New("no -feed given and BROKER_API_URL is not set")
		}
		return broker, nil
	}

	r := os.Stdin
	if c.feed != "-" {
		f, err := os.Open(c.feed)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return importer.ParseFeed(r)
}
