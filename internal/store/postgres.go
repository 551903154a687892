package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var (
	psql        = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	userColumns = []string{"id", "email", "password_hash", "display_name", "created_at", "updated_at"}
	taskColumns = []string{"id", "user_id", "title", "description", "date", "status", "created_at", "updated_at"}
)

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	query, args, err := psql.Insert("users").
		Columns("id", "email", "password_hash", "display_name", "created_at", "updated_at").
		Values(user.ID, user.Email, user.PasswordHash, user.DisplayName, user.CreatedAt, user.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	query, args, err := psql.Select(userColumns...).
		From("users").
		Where("LOWER(email) = LOWER(?)", strings.TrimSpace(email)).
		ToSql()
	if err != nil {
		return User{}, fmt.Errorf("build select user: %w", err)
	}
	return s.getUser(ctx, query, args)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	query, args, err := psql.Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return User{}, fmt.Errorf("build select user: %w", err)
	}
	return s.getUser(ctx, query, args)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, args []any) (User, error) {
	var user User
	if err := pgxscan.Get(ctx, s.db, &user, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserDisplayName(ctx context.Context, userID, displayName string) error {
	query, args, err := psql.Update("users").
		Set("display_name", displayName).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes an account together with its tasks and sessions.
func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	query, args, err := psql.Delete("users").Where(squirrel.Eq{"id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete user: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, task Task) error {
	query, args, err := psql.Insert("tasks").
		Columns(taskColumns...).
		Values(task.ID, task.UserID, task.Title, task.Description, task.Date, task.Status, task.CreatedAt, task.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert task: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// ReplaceTask overwrites every editable column of a task owned by task.UserID.
func (s *PostgresStore) ReplaceTask(ctx context.Context, task Task) error {
	query, args, err := psql.Update("tasks").
		Set("title", task.Title).
		Set("description", task.Description).
		Set("date", task.Date).
		Set("status", task.Status).
		Set("updated_at", task.UpdatedAt).
		Where(squirrel.Eq{"id": task.ID, "user_id": task.UserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update task: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, userID, taskID string) (Task, error) {
	query, args, err := psql.Select(taskColumns...).
		From("tasks").
		Where(squirrel.Eq{"id": taskID, "user_id": userID}).
		ToSql()
	if err != nil {
		return Task{}, fmt.Errorf("build select task: %w", err)
	}
	var task Task
	if err := pgxscan.Get(ctx, s.db, &task, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("scan task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, userID string) ([]Task, error) {
	query, args, err := psql.Select(taskColumns...).
		From("tasks").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tasks: %w", err)
	}
	tasks := []Task{}
	if err := pgxscan.Select(ctx, s.db, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

// AllTasks returns every task across users, oldest first. Used to rebuild
// the search index.
func (s *PostgresStore) AllTasks(ctx context.Context) ([]Task, error) {
	query, args, err := psql.Select(taskColumns...).
		From("tasks").
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build all tasks: %w", err)
	}
	tasks := []Task{}
	if err := pgxscan.Select(ctx, s.db, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

// SearchTasks matches text against title and description, case-insensitive.
func (s *PostgresStore) SearchTasks(ctx context.Context, userID, text string, limit int) ([]Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	pattern := "%" + escapeLike(strings.TrimSpace(text)) + "%"
	query, args, err := psql.Select(taskColumns...).
		From("tasks").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Or{
			squirrel.ILike{"title": pattern},
			squirrel.ILike{"description": pattern},
		}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search tasks: %w", err)
	}
	tasks := []Task{}
	if err := pgxscan.Select(ctx, s.db, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupSession(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRow(ctx, `
		SELECT user_id FROM sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return userID, nil
}

func (s *PostgresStore) RevokeSession(ctx context.Context, tokenHash string) error {
	if _, err := s.db.Exec(ctx, `UPDATE sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
