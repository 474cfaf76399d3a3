package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core/course"
)

const courseColumns = "id, code, name, description, instructor, credits, schedule, location, capacity, enrolled, " +
	"prerequisites, tags, department, semester, year, image_url, file_url, end_date, created_by, created_at, updated_at"

type courseRow struct {
	ID            string         `db:"id"`
	Code          string         `db:"code"`
	Name          string         `db:"name"`
	Description   string         `db:"description"`
	Instructor    string         `db:"instructor"`
	Credits       int            `db:"credits"`
	Schedule      types.JSONText `db:"schedule"`
	Location      string         `db:"location"`
	Capacity      int            `db:"capacity"`
	Enrolled      int            `db:"enrolled"`
	Prerequisites types.JSONText `db:"prerequisites"`
	Tags          types.JSONText `db:"tags"`
	Department    string         `db:"department"`
	Semester      string         `db:"semester"`
	Year          int            `db:"year"`
	ImageURL      string         `db:"image_url"`
	FileURL       string         `db:"file_url"`
	EndDate       null.Time      `db:"end_date"`
	CreatedBy     string         `db:"created_by"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

type enrollmentRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	CourseID  string    `db:"course_id"`
	CreatedAt time.Time `db:"created_at"`
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) unmarshal(row courseRow) (course.Course, error) {
	c := course.Course{
		ID:          row.ID,
		Code:        row.Code,
		Name:        row.Name,
		Description: row.Description,
		Instructor:  row.Instructor,
		Credits:     row.Credits,
		Location:    row.Location,
		Capacity:    row.Capacity,
		Enrolled:    row.Enrolled,
		Department:  row.Department,
		Semester:    row.Semester,
		Year:        row.Year,
		ImageURL:    row.ImageURL,
		FileURL:     row.FileURL,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if row.EndDate.Valid {
		end := row.EndDate.Time.UTC()
		c.EndDate = &end
	}
	if err := fromJSON(row.Schedule, &c.Schedule); err != nil {
		return course.Course{}, err
	}
	if err := fromJSON(row.Prerequisites, &c.Prerequisites); err != nil {
		return course.Course{}, err
	}
	if err := fromJSON(row.Tags, &c.Tags); err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	c.ID = uuid.New().String()
	c.Enrolled = 0
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	schedule, err := toJSON(c.Schedule)
	if err != nil {
		return course.Course{}, err
	}
	prereqs, err := toJSON(c.Prerequisites)
	if err != nil {
		return course.Course{}, err
	}
	tags, err := toJSON(c.Tags)
	if err != nil {
		return course.Course{}, err
	}
	endDate := null.TimeFromPtr(c.EndDate)
	if endDate.Valid {
		endDate.Time = endDate.Time.UTC()
	}

	q := repo.db.Rebind("INSERT INTO courses (" + courseColumns + ") VALUES " +
		"(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	_, err = repo.db.ExecContext(ctx, q,
		c.ID, c.Code, c.Name, c.Description, c.Instructor, c.Credits, schedule, c.Location, c.Capacity, c.Enrolled,
		prereqs, tags, c.Department, c.Semester, c.Year, c.ImageURL, c.FileURL, endDate, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter) ([]course.Course, error) {
	var w where
	if len(filter.IDs) > 0 {
		if err := w.in("id", filter.IDs); err != nil {
			return nil, err
		}
	}
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(instructor) LIKE ? ESCAPE '\')`, val, val)
	}
	if filter.Department != "" {
		w.add("LOWER(department) = LOWER(?)", filter.Department)
	}
	if !filter.ActiveAt.IsZero() {
		w.add("(end_date IS NULL OR end_date >= ?)", filter.ActiveAt.UTC())
	}

	var rows []courseRow
	q := repo.db.Rebind("SELECT " + courseColumns + " FROM courses" + w.String() + " ORDER BY LOWER(name) ASC, id ASC")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		c, err := repo.unmarshal(row)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	q := repo.db.Rebind("SELECT " + courseColumns + " FROM courses WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return repo.unmarshal(row)
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	// enrollments go with the course (ON DELETE CASCADE)
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM courses WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n, err := rowsAffected(res); err != nil {
		return err
	} else if n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	e.ID = uuid.New().String()
	e.CreatedAt = e.CreatedAt.UTC()

	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		n, err := count(ctx, tx, tx.Rebind("SELECT COUNT(*) FROM enrollments WHERE user_id = ? AND course_id = ?"), e.UserID, e.CourseID)
		if err != nil {
			return errors.Wrap(err, "checking enrollment")
		}
		if n > 0 {
			return course.ErrAlreadyEnrolled
		}

		// takes the seat & locks the course row until commit
		res, err := tx.ExecContext(ctx,
			tx.Rebind("UPDATE courses SET enrolled = enrolled + 1 WHERE id = ? AND enrolled < capacity"), e.CourseID)
		if err != nil {
			return errors.Wrap(err, "taking seat")
		}
		if n, err = rowsAffected(res); err != nil {
			return err
		}
		if n == 0 {
			found, err := count(ctx, tx, tx.Rebind("SELECT COUNT(*) FROM courses WHERE id = ?"), e.CourseID)
			if err != nil {
				return errors.Wrap(err, "checking course")
			}
			if found == 0 {
				return course.ErrNotFound
			}
			return course.ErrCourseFull
		}

		_, err = tx.ExecContext(ctx,
			tx.Rebind("INSERT INTO enrollments (id, user_id, course_id, created_at) VALUES (?, ?, ?, ?)"),
			e.ID, e.UserID, e.CourseID, e.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return course.ErrAlreadyEnrolled
			}
			return errors.Wrap(err, "inserting enrollment")
		}
		return nil
	})
	if err != nil {
		return course.Enrollment{}, err
	}
	return e, nil
}

func (repo *courseRepository) DeleteEnrollment(ctx context.Context, userID, courseID string) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM enrollments WHERE user_id = ? AND course_id = ?"), userID, courseID)
		if err != nil {
			return errors.Wrap(err, "deleting enrollment")
		}
		if n, err := rowsAffected(res); err != nil {
			return err
		} else if n == 0 {
			return course.ErrNotEnrolled
		}

		_, err = tx.ExecContext(ctx, tx.Rebind("UPDATE courses SET enrolled = enrolled - 1 WHERE id = ? AND enrolled > 0"), courseID)
		return errors.Wrap(err, "freeing seat")
	})
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	var w where
	if filter.UserID != "" {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.CourseID != "" {
		w.add("course_id = ?", filter.CourseID)
	}

	var rows []enrollmentRow
	q := repo.db.Rebind("SELECT id, user_id, course_id, created_at FROM enrollments" + w.String() + " ORDER BY created_at DESC, id ASC")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}

	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, course.Enrollment{
			ID:        row.ID,
			UserID:    row.UserID,
			CourseID:  row.CourseID,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return enrollments, nil
}
