package echoapi

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/recqa/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// teacherIDParam returns the unescaped, lower-cased :teacherId path param.
func teacherIDParam(ctx echo.Context) string {
	id := ctx.Param("teacherId")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	return core.CleanString(id, true /* lower */)
}

// queryInt reads an optional integer query param. ok is false when it is present but not a number.
func queryInt(ctx echo.Context, name string) (val int, ok bool) {
	s := strings.TrimSpace(ctx.QueryParam(name))
	if s == "" {
		return 0, true
	}
	val, err := strconv.Atoi(s)
	return val, err == nil
}
