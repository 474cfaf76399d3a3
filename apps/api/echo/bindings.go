package echoapi

import (
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone names must resolve on hosts without a zoneinfo db

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

var orderingParam = "ordering"

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

// bindUserFilter reads the user search filters from the query string. Unparsable values are ignored.
func bindUserFilter(ctx echo.Context) *user.QueryFilter {
	params := ctx.QueryParams()
	filter := &user.QueryFilter{
		Search: params.Get("search"),
		Roles:  params["role"],
	}
	if v := params.Get("is_active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filter.IsActive = &active
		}
	}
	if v := params.Get("created_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedFrom = t.UTC()
		}
	}
	if v := params.Get("created_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedTo = t.UTC()
		}
	}
	return filter
}

func queryInt(ctx echo.Context, name string) int {
	n, _ := strconv.Atoi(ctx.QueryParam(name))
	return n
}

var errUnknownTimeZone = core.NewValidationError(
	errors.New("unknown time zone"),
	core.FieldError{Field: "tz", Error: "must be an IANA time zone (eg. Africa/Kinshasa)"},
)

// localNow returns the current time in the zone named by the "tz" query param, UTC when absent.
func localNow(ctx echo.Context) (time.Time, error) {
	now := core.NowFunc()
	name := strings.TrimSpace(ctx.QueryParam("tz"))
	if name == "" {
		return now, nil
	}
	if name == "Local" {
		return time.Time{}, errUnknownTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Time{}, errUnknownTimeZone
	}
	return now.In(loc), nil
}
