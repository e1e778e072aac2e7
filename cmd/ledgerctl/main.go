// Command ledgerctl registers tenants, exports and restores tenant archives
// against the local database and issues bearer tokens for the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"feeledger/internal/auth"
	"feeledger/internal/cli"
	"feeledger/internal/config"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  tenant   -id ID -name NAME
  export   -tenant ID [-tables a,b] [-range daily|weekly|monthly|yearly] [-out backup.zip]
  restore  -tenant ID -in backup.zip [-mode additive|replace]
  token    -tenant ID [-user ID] [-role ROLE] [-ttl 24h]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "tenant":
		err = runTenant(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "restore":
		err = runRestore(os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledgerctl %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func noValidation(*config.Config) error { return nil }

func runTenant(args []string) error {
	fs := flag.NewFlagSet("tenant", flag.ExitOnError)
	id := fs.String("id", "", "tenant id")
	name := fs.String("name", "", "tenant display name")
	_ = fs.Parse(args)

	cfg, logger := cli.LoadConfig(noValidation)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()
	app := cli.NewApp(cfg, repo, nil)

	t, err := app.Directory.RegisterTenant(context.Background(), *id, *name)
	if err != nil {
		return err
	}
	logger.Info("Tenant registered", "tenant_id", t.ID, "name", t.Name)
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	tenant := fs.String("tenant", "", "tenant id")
	tables := fs.String("tables", "", "comma separated table names (default all)")
	rng := fs.String("range", "", "date range preset")
	out := fs.String("out", "backup.zip", "output file")
	_ = fs.Parse(args)
	if *tenant == "" {
		return fmt.Errorf("-tenant is required")
	}

	cfg, logger := cli.LoadConfig(noValidation)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()
	app := cli.NewApp(cfg, repo, nil)

	var names []string
	for _, t := range strings.Split(*tables, ",") {
		if t = strings.TrimSpace(t); t != "" {
			names = append(names, t)
		}
	}

	res, err := app.Backup.Export(context.Background(), *tenant, names, *rng)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, res.Data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	logger.Info("Archive exported", "tenant_id", *tenant, "tables", len(res.Tables), "bytes", len(res.Data), "file", *out)
	return nil
}

func runRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	tenant := fs.String("tenant", "", "tenant id")
	in := fs.String("in", "", "archive file")
	mode := fs.String("mode", "", "additive or replace (default from RESTORE_MODE)")
	_ = fs.Parse(args)
	if *tenant == "" || *in == "" {
		return fmt.Errorf("-tenant and -in are required")
	}

	cfg, logger := cli.LoadConfig(noValidation)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.ConnectPublisher(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}
	app := cli.NewApp(cfg, repo, amqpClient)

	info, err := os.Stat(*in)
	if err != nil {
		return err
	}
	if limit := app.Backup.MaxArchiveBytes(); info.Size() > limit {
		return fmt.Errorf("%s is %d bytes, limit is %d", *in, info.Size(), limit)
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		return err
	}

	sum, err := app.Backup.Restore(context.Background(), *tenant, data, *mode)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	tenant := fs.String("tenant", "", "tenant id")
	user := fs.String("user", "", "user id (sub claim)")
	role := fs.String("role", "admin", "role claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	_ = fs.Parse(args)
	if *tenant == "" {
		return fmt.Errorf("-tenant is required")
	}

	cfg, _ := cli.LoadConfig(noValidation)
	if len(cfg.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	tok, err := auth.NewJWTAuthenticator(cfg.JWTSecret).Issue(auth.Principal{TenantID: *tenant, UserID: *user, Role: *role}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
