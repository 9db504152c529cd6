package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/agentuity/go-catalog/app"
	"github.com/agentuity/go-catalog/catalog"
	"github.com/agentuity/go-catalog/repository"
	"github.com/agentuity/go-catalog/tui"
)

type queryOp int

const (
	opList queryOp = iota
	opGet
	opSearch
	opPage
)

type query struct {
	op          queryOp
	id          string
	text        string
	page, limit int
	params      []string
}

var errRecordNotFound = errors.New("record not found")

func runQuery[T catalog.Record](ctx context.Context, r *repository.Repository[T], q query) ([]T, error) {
	switch q.op {
	case opGet:
		item, ok, err := r.GetByID(ctx, q.id, q.params...)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrapf(errRecordNotFound, "%s %q", r.Kind(), q.id)
		}
		return []T{item}, nil
	case opSearch:
		return r.Search(ctx, q.text, q.params...)
	case opPage:
		return r.GetPage(ctx, q.page, q.limit, q.params...)
	default:
		return r.GetAll(ctx, q.params...)
	}
}

func render[T catalog.Record](cmd *cobra.Command, items []T, single bool) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	if format == outputTable {
		rows := make([][]string, len(items))
		for i, item := range items {
			text := item.SearchText()
			rows[i] = []string{item.Identifier(), text[0], tui.MaxWidth(strings.Join(text[1:], ", "), 60)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.Table([]string{"ID", "NAME", "DETAILS"}, rows))
		return nil
	}
	if single && len(items) == 1 {
		return writeJSON(cmd.OutOrStdout(), items[0])
	}
	return writeJSON(cmd.OutOrStdout(), items)
}

func execute[T catalog.Record](ctx context.Context, cmd *cobra.Command, r *repository.Repository[T], q query) error {
	var items []T
	err := tui.ShowSpinner(ctx, "Loading "+r.Name()+"...", func(ctx context.Context) error {
		var err error
		items, err = runQuery(ctx, r, q)
		return err
	})
	if err != nil {
		return err
	}
	return render(cmd, items, q.op == opGet)
}

func dispatch(ctx context.Context, cmd *cobra.Command, a *app.App, kind catalog.Kind, q query) error {
	switch kind {
	case catalog.Skills:
		return execute(ctx, cmd, a.Skills, q)
	case catalog.Countries:
		return execute(ctx, cmd, a.Countries, q)
	case catalog.Cities:
		return execute(ctx, cmd, a.Cities, q)
	case catalog.Occupations:
		return execute(ctx, cmd, a.Occupations, q)
	case catalog.Hobbies:
		return execute(ctx, cmd, a.Hobbies, q)
	}
	return errors.Wrapf(catalog.ErrUnknownKind, "%s", kind)
}

func runKindCommand(cmd *cobra.Command, kindArg string, q query) error {
	kind, err := catalog.ParseKind(kindArg)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		return dispatch(ctx, cmd, a, kind, q)
	})
}

func kindCompletion(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(catalog.Kinds()))
	for _, k := range catalog.Kinds() {
		names = append(names, k.String())
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "list <kind> [params...]",
		Short:             "List every record of a kind",
		Example:           "  catalogctl list skills\n  catalogctl list cities DE",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: kindCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKindCommand(cmd, args[0], query{op: opList, params: args[1:]})
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "get <kind> <id> [params...]",
		Short:             "Show the record with the given id",
		Args:              cobra.MinimumNArgs(2),
		ValidArgsFunction: kindCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKindCommand(cmd, args[0], query{op: opGet, id: args[1], params: args[2:]})
		},
	}
}

func newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "search <kind> <query> [params...]",
		Short:             "Find records whose text contains query, ignoring case",
		Args:              cobra.MinimumNArgs(2),
		ValidArgsFunction: kindCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKindCommand(cmd, args[0], query{op: opSearch, text: args[1], params: args[2:]})
		},
	}
}

func newPageCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "page <kind> <page> <limit> [params...]",
		Short:             "Show one page of records, counting pages from 1",
		Args:              cobra.MinimumNArgs(3),
		ValidArgsFunction: kindCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrapf(err, "invalid page %q", args[1])
			}
			limit, err := strconv.Atoi(args[2])
			if err != nil {
				return errors.Wrapf(err, "invalid limit %q", args[2])
			}
			return runKindCommand(cmd, args[0], query{op: opPage, page: page, limit: limit, params: args[3:]})
		},
	}
}
