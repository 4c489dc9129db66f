package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell <tenant-id>",
	Short: "Open an interactive SQL session scoped to a tenant",
	Long: `Open a line-based SQL session against the tenant's data
scope: its dedicated database for database isolation, or the shared
database with the tenant's schema on the search_path for schema
isolation. Type "exit" or press Ctrl-D to leave.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		t, err := a.store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		b, err := a.backends.For(t)
		if err != nil {
			return err
		}
		tctx, err := b.Activate(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = b.Deactivate(ctx) }()

		conn, release, err := a.router.Acquire(tctx)
		if err != nil {
			return err
		}
		defer release()

		cmd.Printf("Connected to tenant %q (%s isolation). Type \"exit\" to quit.\n", t.ID, t.Isolation)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		out := cmd.OutOrStdout()
		for {
			fmt.Fprintf(out, "%s=> ", t.ID)
			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}
			stmt := strings.TrimSpace(scanner.Text())
			switch strings.ToLower(stmt) {
			case "":
				continue
			case "exit", "quit", `\q`:
				return nil
			}
			if err := runStatement(tctx, conn, out, stmt); err != nil {
				fmt.Fprintf(out, "ERROR: %v\n", err)
			}
		}
	},
}

func runStatement(ctx context.Context, conn *pgxpool.Conn, out io.Writer, stmt string) error {
	rows, err := conn.Query(ctx, stmt)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	if len(names) > 0 {
		fmt.Fprintln(w, strings.Join(names, "\t"))
	}

	count := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = fmt.Sprintf("%v", v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d row(s), %s)\n", count, rows.CommandTag())
	return w.Flush()
}
