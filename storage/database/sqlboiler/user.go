package boiledrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/types"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/user"
	"github.com/trezcool/recqa/storage/database"
)

const userColumns = "id, name, email, is_active, roles, password_hash, created_at, updated_at, last_login"

// userOrderingFields are the columns accepted in ?ordering=
var userOrderingFields = []string{"name", "email", "is_active", "created_at", "updated_at", "last_login"}

type userRow struct {
	ID           string            `boil:"id"`
	Name         string            `boil:"name"`
	Email        string            `boil:"email"`
	IsActive     bool              `boil:"is_active"`
	Roles        types.StringArray `boil:"roles"`
	PasswordHash null.Bytes        `boil:"password_hash"`
	CreatedAt    time.Time         `boil:"created_at"`
	UpdatedAt    time.Time         `boil:"updated_at"`
	LastLogin    null.Time         `boil:"last_login"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo userRepository) boil(usr user.User) userRow {
	r := userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		IsActive:     usr.IsActive == nil || *usr.IsActive,
		Roles:        types.StringArray(usr.Roles),
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
	if r.Roles == nil {
		r.Roles = types.StringArray{}
	}
	return r
}

func (repo userRepository) unboil(r *userRow) user.User {
	if r == nil {
		return user.User{}
	}
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	usr.SetActive(r.IsActive)
	return usr
}

// trapErr maps psql "no rows" err to user.ErrNotFound and unique violations to user.ErrUserExists
func (repo userRepository) trapErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	if database.IsUniqueViolation(err) {
		return user.ErrUserExists
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	q := "SELECT EXISTS (SELECT 1 FROM users WHERE email = $1"
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += " AND NOT (id::text = ANY($2))"
		args = append(args, types.StringArray(ids))
	}
	q += ")"

	var exists bool
	if err := repo.getExec(exec).QueryRowContext(ctx, q, args...).Scan(&exists); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	r := repo.boil(usr)
	_, err := repo.getExec(exec).ExecContext(
		ctx,
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		r.ID, r.Name, r.Email, r.IsActive, r.Roles, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin,
	)
	if err != nil {
		return user.User{}, repo.trapErr(err, "inserting user")
	}
	return repo.unboil(&r), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		// users with Name or Email matching the search keyword
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			where = append(where, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s)", p, p))
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roleConds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roleConds = append(roleConds, fmt.Sprintf("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE %s)", arg(role+"%")))
			}
			where = append(where, "("+strings.Join(roleConds, " OR ")+")")
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = "+arg(*filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}

	q := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + orderBy(ordering, userOrderingFields, "created_at DESC")

	var rows []*userRow
	if err := queries.Raw(q, args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.unboil(r))
	}
	return users, nil
}

// orderBy builds an ORDER BY list from the whitelisted fields only.
func orderBy(ordering []core.DBOrdering, allowed []string, fallback string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if !strmangle.SetInclude(ord.Field, allowed) {
			continue
		}
		ord.Field = strmangle.IdentQuote('"', '"', ord.Field)
		orderList = append(orderList, ord.String())
	}
	if len(orderList) == 0 {
		return fallback
	}
	return strings.Join(orderList, ", ")
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var q *queries.Query

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q = queries.Raw("SELECT "+userColumns+" FROM users WHERE id = $1", filter.ID)
	case filter.Email != "":
		q = queries.Raw("SELECT "+userColumns+" FROM users WHERE email = $1", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := q.Bind(ctx, repo.getExec(exec), &row); err != nil {
		return user.User{}, repo.trapErr(err, "finding user")
	}
	return repo.unboil(&row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.UpdatedAt = time.Now().UTC()
	r := repo.boil(usr)
	res, err := repo.getExec(exec).ExecContext(
		ctx,
		`UPDATE users SET name = $1, email = $2, is_active = $3, roles = $4, password_hash = COALESCE($5, password_hash),
		updated_at = $6, last_login = $7 WHERE id = $8`,
		r.Name, r.Email, r.IsActive, r.Roles, r.PasswordHash, r.UpdatedAt, r.LastLogin, r.ID,
	)
	if err != nil {
		return user.User{}, repo.trapErr(err, "updating user")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, exec...)
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM users WHERE id::text = ANY($1)", types.StringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted users")
	}
	return int(cnt), nil
}
