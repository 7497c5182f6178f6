package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/catalog/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// セッション状態はCookieではなくすべてDB行に保持される。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	flash, err := marshalFlash(session.Flash)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, logged_in, user_id, google_id, name, email, picture,
		                       access_token, signin_state, csrf_token, flash,
		                       expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		session.ID, session.LoggedIn, nullableID(session.UserID),
		session.GoogleID, session.Name, session.Email, session.Picture,
		session.AccessToken, session.SigninState, session.CSRFToken, flash,
		session.ExpiresAt, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	var userID sql.NullString
	var flash []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, logged_in, user_id, google_id, name, email, picture,
		        access_token, signin_state, csrf_token, flash,
		        expires_at, created_at, updated_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.LoggedIn, &userID,
		&session.GoogleID, &session.Name, &session.Email, &session.Picture,
		&session.AccessToken, &session.SigninState, &session.CSRFToken, &flash,
		&session.ExpiresAt, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	session.UserID = userID.String
	if len(flash) > 0 {
		if err := json.Unmarshal(flash, &session.Flash); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session flash: %w", err)
		}
	}

	return session, nil
}

// Update はセッションの状態（認証情報、トークン、フラッシュ）を上書き保存する。
func (r *PostgresSessionRepo) Update(ctx context.Context, session *model.Session) error {
	flash, err := marshalFlash(session.Flash)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET logged_in = $1, user_id = $2, google_id = $3, name = $4, email = $5,
		     picture = $6, access_token = $7, signin_state = $8, csrf_token = $9,
		     flash = $10, updated_at = now()
		 WHERE id = $11`,
		session.LoggedIn, nullableID(session.UserID),
		session.GoogleID, session.Name, session.Email, session.Picture,
		session.AccessToken, session.SigninState, session.CSRFToken, flash,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session not found: %s", session.ID)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

// marshalFlash はフラッシュメッセージをJSONB列用にエンコードする。
func marshalFlash(flash []model.Flash) ([]byte, error) {
	if flash == nil {
		flash = []model.Flash{}
	}
	b, err := json.Marshal(flash)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session flash: %w", err)
	}
	return b, nil
}

// nullableID は空文字列のIDをNULLとして保存するための変換。
func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
