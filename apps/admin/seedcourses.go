package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/user"
)

// seedCourses adds the courses listed in the JSON file at path, owned by creator when set.
// Courses already in the catalog (same code, or same name when they have no code) are skipped.
func (cli *commandLine) seedCourses(path, creator string) (int, error) {
	ctx := context.Background()

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrap(err, "reading courses file")
	}
	var courses []course.NewCourse
	if err = json.Unmarshal(data, &courses); err != nil {
		return 0, errors.Wrap(err, "decoding courses file")
	}

	var owner user.User
	if creator != "" {
		if owner, err = cli.findUser(ctx, creator, creator); err != nil {
			return 0, errors.Wrap(err, "finding creator")
		}
	}

	existing, err := cli.courseSvc.Query(ctx, course.QueryFilter{})
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[courseKey(c.Code, c.Name)] = true
	}

	var n int
	for i, nc := range courses {
		key := courseKey(core.CleanString(nc.Code), core.CleanString(nc.Name))
		if seen[key] {
			continue
		}
		if _, err = cli.courseSvc.Create(ctx, owner, nc); err != nil {
			return n, errors.Wrapf(err, "creating course #%d", i+1)
		}
		n++
		seen[key] = true
	}
	return n, nil
}

func courseKey(code, name string) string {
	if code != "" {
		return "code:" + code
	}
	return "name:" + name
}
