package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

const userCols = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (user.User, error) {
	var (
		usr       user.User
		roles     pq.StringArray
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&usr.ID, &usr.Name, &usr.Username, &usr.Email, &usr.IsActive,
		&roles, &usr.PasswordHash, &usr.CreatedAt, &usr.UpdatedAt, &lastLogin,
	)
	if err != nil {
		return user.User{}, err
	}
	usr.Roles = roles
	if lastLogin.Valid {
		usr.LastLogin = lastLogin.Time
	}
	return usr, nil
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	excludedIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excludedIDs = append(excludedIDs, usr.ID)
	}

	query := `SELECT username, email FROM app_user
WHERE (LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2)) AND id <> ALL($3)`
	rows, err := ext(repo.db, exec).QueryContext(ctx, query, username, email, pq.Array(excludedIDs))
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	defer func() { _ = rows.Close() }()

	var unameTaken, emailTaken bool
	for rows.Next() {
		var uname, mail string
		if err = rows.Scan(&uname, &mail); err != nil {
			return errors.Wrap(err, "scanning user")
		}
		if strings.EqualFold(uname, username) {
			unameTaken = true
		}
		if strings.EqualFold(mail, email) {
			emailTaken = true
		}
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "reading users")
	}

	switch {
	case unameTaken && emailTaken:
		return user.ErrUserExists
	case unameTaken:
		return user.ErrUsernameExists
	case emailTaken:
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	query := `INSERT INTO app_user (name, username, email, is_active, roles, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, COALESCE($4, TRUE), $5, $6, $7, $8)
RETURNING ` + userCols
	row := ext(repo.db, exec).QueryRowxContext(ctx, query,
		usr.Name, usr.Username, usr.Email, usr.IsActive, pq.Array(usr.Roles),
		usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	created, err := scanUser(row)
	if err != nil {
		switch {
		case isUniqueViolation(err, "app_user_username_key"):
			return user.User{}, user.ErrUsernameExists
		case isUniqueViolation(err, "app_user_email_key"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return created, nil
}

func (repo *userRepository) getUser(ctx context.Context, ex dbExt, cond string, args ...interface{}) (user.User, error) {
	query := `SELECT ` + userCols + ` FROM app_user WHERE ` + cond
	usr, err := scanUser(ex.QueryRowxContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "querying user")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getUser(ctx, ext(repo.db, exec), "id = $1", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getUser(ctx, ext(repo.db, exec), "LOWER(email) = LOWER($1)", email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getUser(ctx, ext(repo.db, exec), "LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)", username)
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", p))
		}
		if len(filter.Roles) > 0 {
			conds = append(conds, fmt.Sprintf("roles && %s", arg(pq.Array(filter.Roles))))
		}
		if filter.IsActive != nil {
			conds = append(conds, fmt.Sprintf("is_active = %s", arg(*filter.IsActive)))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, fmt.Sprintf("created_at >= %s", arg(filter.CreatedFrom)))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, fmt.Sprintf("created_at <= %s", arg(filter.CreatedTo)))
		}
	}

	query := `SELECT ` + userCols + ` FROM app_user` + whereClause(conds) + orderClause(ordering, "created_at DESC")
	rows, err := ext(repo.db, exec).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	defer func() { _ = rows.Close() }()

	var users []user.User
	for rows.Next() {
		usr, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning user")
		}
		users = append(users, usr)
	}
	return users, errors.Wrap(rows.Err(), "reading users")
}

// UpdateUser saves only the set fields of usr; isActive toggles activation when non-nil.
func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool, exec ...core.DBExecutor) (user.User, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if usr.Name != "" {
		set("name", usr.Name)
	}
	if usr.Username != "" {
		set("username", usr.Username)
	}
	if usr.Email != "" {
		set("email", usr.Email)
	}
	if usr.Roles != nil {
		set("roles", pq.Array(usr.Roles))
	}
	if usr.PasswordHash != nil {
		set("password_hash", usr.PasswordHash)
	}
	if !usr.LastLogin.IsZero() {
		set("last_login", usr.LastLogin)
	}
	if isActive != nil {
		set("is_active", *isActive)
	}
	set("updated_at", usr.UpdatedAt)

	args = append(args, usr.ID)
	query := fmt.Sprintf(
		`UPDATE app_user SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userCols,
	)
	updated, err := scanUser(ext(repo.db, exec).QueryRowxContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		switch {
		case isUniqueViolation(err, "app_user_username_key"):
			return user.User{}, user.ErrUsernameExists
		case isUniqueViolation(err, "app_user_email_key"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return updated, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	_, err := ext(repo.db, exec).ExecContext(ctx, `DELETE FROM app_user WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting users")
}
