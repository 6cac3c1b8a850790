package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fleetops/suivi/core"
)

const (
	orderingParam = "ordering"
	pageParam     = "page"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPage returns the requested page number, 1 when missing or malformed.
func bindPage(ctx echo.Context) int {
	page, err := strconv.Atoi(ctx.QueryParam(pageParam))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// bindBool returns nil when the query param is missing or is not a boolean.
func bindBool(ctx echo.Context, name string) *bool {
	b, err := strconv.ParseBool(ctx.QueryParam(name))
	if err != nil {
		return nil
	}
	return &b
}

func bindInt(ctx echo.Context, name string) int {
	i, _ := strconv.Atoi(ctx.QueryParam(name))
	return i
}
