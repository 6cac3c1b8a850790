package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core/group"
)

type verifyOptions struct {
	group    string
	user     string
	detailed bool
	export   string
}

func (cli *commandLine) verifyPerms(opts verifyOptions) error {
	ctx := context.Background()
	switch {
	case opts.group != "":
		return cli.verifyGroup(ctx, opts.group, opts.detailed)
	case opts.user != "":
		return cli.verifyUser(ctx, opts.user, opts.detailed)
	}

	rep, err := cli.groupSvc.Report(ctx)
	if err != nil {
		return err
	}
	cli.printReport(rep, opts.detailed)

	if opts.export != "" {
		f, err := os.Create(opts.export)
		if err != nil {
			return errors.Wrap(err, "creating export file")
		}
		defer func() { _ = f.Close() }()
		if err = group.ExportReport(f, rep, time.Now().UTC()); err != nil {
			return err
		}
		okColor.Fprintf(cli.out, "Report exported to %s\n", opts.export)
	}
	return nil
}

func sortedModels(models map[string]*group.ModelAccess) []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cli *commandLine) printModels(models map[string]*group.ModelAccess, detailed bool) {
	table := tablewriter.NewWriter(cli.out)
	header := []string{"Model", "Access"}
	if detailed {
		header = append(header, "Permissions")
	}
	table.SetHeader(header)
	for _, name := range sortedModels(models) {
		ma := models[name]
		row := []string{name, ma.CRUD()}
		if detailed {
			row = append(row, strings.Join(ma.Permissions, " "))
		}
		table.Append(row)
	}
	table.Render()
}

func (cli *commandLine) printCompliance(name string, c group.Compliance) {
	if c.Compliant {
		okColor.Fprintf(cli.out, "%s: %s\n", name, c.Status)
		return
	}
	errColor.Fprintf(cli.out, "%s: %s\n", name, c.Status)
	for _, issue := range c.Issues {
		fmt.Fprintf(cli.out, "  - %s\n", issue)
	}
}

func (cli *commandLine) printReport(rep group.Report, detailed bool) {
	names := make([]string, 0, len(rep.Groups))
	for name := range rep.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	headColor.Fprintln(cli.out, "Groups")
	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Group", "Users", "Permissions", "Models"})
	for _, name := range names {
		gr := rep.Groups[name]
		table.Append([]string{name, strconv.Itoa(gr.UsersCount), strconv.Itoa(gr.PermissionsCount), strconv.Itoa(len(gr.Models))})
	}
	table.Render()

	if detailed {
		for _, name := range names {
			headColor.Fprintln(cli.out, name)
			cli.printModels(rep.Groups[name].Models, true)
		}
	}

	headColor.Fprintln(cli.out, "Compliance")
	compNames := make([]string, 0, len(rep.Compliance))
	for name := range rep.Compliance {
		compNames = append(compNames, name)
	}
	sort.Strings(compNames)
	for _, name := range compNames {
		cli.printCompliance(name, rep.Compliance[name])
	}

	fmt.Fprintf(cli.out, "%d groups, %d/%d users in a group\n",
		rep.Summary.TotalGroups, rep.Summary.UsersInGroups, rep.Summary.TotalUsers)
}

func (cli *commandLine) verifyGroup(ctx context.Context, name string, detailed bool) error {
	gv, err := cli.groupSvc.VerifyGroup(ctx, name)
	if err != nil {
		return err
	}
	headColor.Fprintf(cli.out, "Group %s\n", gv.Name)
	fmt.Fprintf(cli.out, "Users: %d\n", gv.Users)
	fmt.Fprintf(cli.out, "Permissions: %d (%d suivi)\n", gv.TotalPermissions, gv.SuiviPermissions)
	cli.printModels(gv.Models, detailed)

	pc := gv.Policy
	if pc.Compliant {
		okColor.Fprintln(cli.out, "Policy: compliant")
	} else {
		errColor.Fprintln(cli.out, "Policy: non compliant")
	}
	if pc.Required > 0 {
		fmt.Fprintf(cli.out, "Score: %d/%d\n", pc.Score, pc.Required)
	}
	for _, p := range pc.Missing {
		warnColor.Fprintf(cli.out, "  missing %s\n", p)
	}
	for _, p := range pc.Extra {
		warnColor.Fprintf(cli.out, "  extra %s\n", p)
	}
	for _, p := range pc.NonView {
		warnColor.Fprintf(cli.out, "  not read-only %s\n", p)
	}
	return nil
}

func (cli *commandLine) verifyUser(ctx context.Context, username string, detailed bool) error {
	uv, err := cli.groupSvc.VerifyUser(ctx, username)
	if err != nil {
		return err
	}
	headColor.Fprintf(cli.out, "User %s (%s)\n", uv.Username, uv.FullName)
	groups := "none"
	if len(uv.Groups) > 0 {
		groups = strings.Join(uv.Groups, ", ")
	}
	fmt.Fprintf(cli.out, "Groups: %s\n", groups)
	fmt.Fprintf(cli.out, "Group permissions: %d\n", uv.GroupPermissions)
	fmt.Fprintf(cli.out, "Effective permissions: %d (%d suivi)\n", len(uv.Effective), uv.SuiviPermissions)
	if detailed {
		for _, p := range uv.Effective {
			fmt.Fprintf(cli.out, "  %s\n", p)
		}
	}
	return nil
}
