// Command bilancio-backup exports the ledger as an age-encrypted snapshot
// and reads it back.
//
//	bilancio-backup export  -out bilancio.age
//	bilancio-backup decrypt -in bilancio.age [-out bilancio.json]
//	bilancio-backup restore -in bilancio.age
//
// The passphrase is read from BACKUP_PASSPHRASE or prompted for.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"bilancio/internal/backend"
	"bilancio/internal/backup"
	"bilancio/internal/cli"
	"bilancio/internal/log"
)

const usage = "usage: bilancio-backup export|decrypt|restore [flags]"

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentBackup)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	ctx := context.Background()
	switch os.Args[1] {
	case "export":
		err = runExport(ctx, os.Args[2:], logger)
	case "decrypt":
		err = runDecrypt(os.Args[2:])
	case "restore":
		err = runRestore(ctx, os.Args[2:], logger)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Backup command failed", "command", os.Args[1], log.FieldError, err)
		os.Exit(1)
	}
}

func runExport(ctx context.Context, args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "bilancio-"+time.Now().Format("20060102")+".age", "output file")
	workFactor := fs.Int("work-factor", 0, "scrypt work factor (0 keeps the age default)")
	_ = fs.Parse(args)

	cfg := cli.LoadAndValidateConfig(logger)
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	if bcfg.Type != backend.SheetsBackend {
		bcfg.Sheets = nil
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	var snap backup.Snapshot
	if res.SQLite != nil {
		snap, err = res.SQLite.Snapshot(ctx, time.Now())
	} else {
		snap, err = backup.Collect(ctx, res.Backend, time.Now())
	}
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	pass, err := passphrase(true)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(*out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", *out, err)
	}
	if err := backup.Encrypt(f, snap, pass, *workFactor); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("Backup written",
		"file", *out,
		"backend", cfg.DataBackend,
		"transactions", len(snap.Transactions),
		"budgets", len(snap.Budgets),
		"goals", len(snap.Goals))
	return nil
}

func runDecrypt(args []string) error {
	fs := flag.NewFlagSet("decrypt", flag.ExitOnError)
	in := fs.String("in", "", "encrypted snapshot")
	out := fs.String("out", "", "output file (default stdout)")
	_ = fs.Parse(args)

	snap, err := readSnapshot(*in)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.OpenFile(*out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open %s: %w", *out, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func runRestore(ctx context.Context, args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	in := fs.String("in", "", "encrypted snapshot")
	_ = fs.Parse(args)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != string(backend.SQLiteBackend) {
		return errors.New("restore writes to the sqlite backend; set DATA_BACKEND=sqlite")
	}

	snap, err := readSnapshot(*in)
	if err != nil {
		return err
	}
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	if err := repo.Restore(ctx, snap); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	logger.Info("Backup restored",
		"file", *in,
		"db_path", cfg.SQLiteDBPath,
		"created_at", snap.CreatedAt.Format(time.RFC3339),
		"transactions", len(snap.Transactions))
	return nil
}

func readSnapshot(path string) (backup.Snapshot, error) {
	if path == "" {
		return backup.Snapshot{}, errors.New("-in is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return backup.Snapshot{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	pass, err := passphrase(false)
	if err != nil {
		return backup.Snapshot{}, err
	}
	return backup.Decrypt(f, pass)
}

// passphrase prefers BACKUP_PASSPHRASE and prompts on a terminal otherwise.
// New backups ask twice.
func passphrase(confirm bool) (string, error) {
	if p := os.Getenv("BACKUP_PASSPHRASE"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("BACKUP_PASSPHRASE is not set and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if !confirm {
		return strings.TrimSpace(string(first)), nil
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passphrases do not match")
	}
	return strings.TrimSpace(string(first)), nil
}
