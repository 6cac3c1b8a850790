package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/fleetops/suivi/core/group"
)

func (cli *commandLine) syncPerms(opts group.SyncOptions) error {
	if opts.DryRun {
		warnColor.Fprintln(cli.out, "Dry run: nothing will be saved")
	}

	results, err := cli.groupSvc.Sync(context.Background(), opts)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Group", "Created", "Permissions", "Added", "Removed", "Status"})
	for _, res := range results {
		status := "in sync"
		switch {
		case res.Applied:
			status = "updated"
		case opts.DryRun && !res.InSync():
			status = "out of sync"
		}
		table.Append([]string{
			res.Group,
			strconv.FormatBool(res.Created),
			strconv.Itoa(res.Target),
			strconv.Itoa(len(res.ToAdd)),
			strconv.Itoa(len(res.ToRemove)),
			status,
		})
	}
	table.Render()

	for _, res := range results {
		for _, perm := range res.Invalid {
			errColor.Fprintf(cli.out, "%s: invalid permission format %q\n", res.Group, perm)
		}
		for _, perm := range res.Unknown {
			warnColor.Fprintf(cli.out, "%s: unknown permission %s\n", res.Group, perm)
		}
		if len(res.ToAdd) > 0 {
			okColor.Fprintf(cli.out, "%s: +%s\n", res.Group, strings.Join(res.ToAdd, ", +"))
		}
		if len(res.ToRemove) > 0 {
			warnColor.Fprintf(cli.out, "%s: -%s\n", res.Group, strings.Join(res.ToRemove, ", -"))
		}
	}

	if opts.DryRun {
		fmt.Fprintln(cli.out, "Run without -dry-run to apply the changes")
	} else {
		okColor.Fprintln(cli.out, "Permissions synchronized")
	}
	return nil
}
