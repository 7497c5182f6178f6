// Package auth はGoogleサインインのフロー、セッション管理、所有者判定を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/catalog/internal/model"
	"github.com/hitoshi/catalog/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// ClientID はこのアプリケーションのGoogle OAuthクライアントID。
	// tokeninfoのissued_to検証に使用される。
	ClientID string
	// SessionMaxAge はセッション有効期間（秒）。
	SessionMaxAge int
}

// Service は認証・セッションに関するビジネスロジックを提供する。
type Service struct {
	provider    Provider
	userRepo    repository.UserRepository
	itemRepo    repository.ItemRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	provider Provider,
	userRepo repository.UserRepository,
	itemRepo repository.ItemRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		provider:    provider,
		userRepo:    userRepo,
		itemRepo:    itemRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// StartSession は未認証状態の新規セッションを作成して永続化する。
func (s *Service) StartSession(ctx context.Context) (*model.Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        id,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// FindSession は指定IDのセッションを取得する。期限切れ・未存在の場合はnilを返す。
func (s *Service) FindSession(ctx context.Context, id string) (*model.Session, error) {
	return s.sessionRepo.FindByID(ctx, id)
}

// RefreshSigninState はサインイン検証用stateを新規発行してセッションに保存する。
// サインインを開始しうるページデータの取得時に呼び出される。
func (s *Service) RefreshSigninState(ctx context.Context, session *model.Session) error {
	state, err := GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate signin state: %w", err)
	}

	session.SigninState = state
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to save signin state: %w", err)
	}

	return nil
}

// IssueCSRFToken は新規CSRFトークンを発行してセッションに保存する。
// 変更系フォームのデータを返す際に必ず呼び出される。
func (s *Service) IssueCSRFToken(ctx context.Context, session *model.Session) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}

	session.CSRFToken = token
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save CSRF token: %w", err)
	}

	return token, nil
}

// SaveSession はセッションの現在の状態（フラッシュ等）を保存する。
func (s *Service) SaveSession(ctx context.Context, session *model.Session) error {
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SignInResult はサインイン処理の結果を表す。
type SignInResult struct {
	// AlreadyConnected はセッションが既に同一のGoogleアカウントで
	// サインイン済みだったことを示す。状態は変更されない。
	AlreadyConnected bool
	Name             string
	Email            string
	Picture          string
}

// SignIn はGoogleサインインのコールバックを処理する。
//
// 検証は次の順に行われ、いずれかに失敗した場合はセッションを変更せず
// *model.APIErrorを返す:
//  1. 提示されたstateがセッションに保存されたstateと一致すること
//  2. 認可コードがアクセストークンに交換できること
//  3. トークンのsubjectがIDクレームのsubjectと一致し、
//     issued_toがこのアプリケーションのクライアントIDと一致すること
//
// セッションが既に同一アカウントでサインイン済みの場合は冪等に成功を返す。
// すべての検証を通過した場合はプロフィールを取得してセッションに反映し、
// このGoogle IDのユーザーが未登録であれば作成する。
func (s *Service) SignIn(ctx context.Context, session *model.Session, state, code string) (*SignInResult, error) {
	// 1. state検証
	if state == "" || session.SigninState == "" || state != session.SigninState {
		return nil, model.NewInvalidStateError()
	}

	// 2. 認可コードの交換
	creds, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		slog.Warn("oauth code exchange failed", slog.String("error", err.Error()))
		return nil, model.NewExchangeFailedError()
	}

	// 3. トークンメタデータの検証
	info, err := s.provider.TokenInfo(ctx, creds.AccessToken)
	if err != nil {
		slog.Warn("tokeninfo fetch failed", slog.String("error", err.Error()))
		return nil, model.NewTokenMismatchError()
	}
	if info.UserID != creds.Subject {
		slog.Warn("token subject mismatch")
		return nil, model.NewTokenMismatchError()
	}
	if info.IssuedTo != s.config.ClientID {
		slog.Warn("token audience mismatch")
		return nil, model.NewTokenMismatchError()
	}

	// 4. 既にサインイン済みなら状態を変えずに成功を返す
	if session.LoggedIn && session.GoogleID == creds.Subject {
		return &SignInResult{
			AlreadyConnected: true,
			Name:             session.Name,
			Email:            session.Email,
			Picture:          session.Picture,
		}, nil
	}

	// 5. プロフィール取得とセッションへの反映
	profile, err := s.provider.UserInfo(ctx, creds.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}

	user, err := s.userRepo.FindByGoogleID(ctx, profile.GoogleID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		// 初回サインイン: ユーザーを作成する
		user = &model.User{
			ID:        uuid.New().String(),
			GoogleID:  profile.GoogleID,
			Name:      profile.Name,
			Email:     profile.Email,
			Picture:   profile.Picture,
			CreatedAt: time.Now(),
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("email", user.Email),
		)
	} else {
		slog.Info("existing user signed in", slog.String("user_id", user.ID))
	}

	session.LoggedIn = true
	session.UserID = user.ID
	session.GoogleID = profile.GoogleID
	session.Name = profile.Name
	session.Email = profile.Email
	session.Picture = profile.Picture
	session.AccessToken = creds.AccessToken

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &SignInResult{
		Name:    profile.Name,
		Email:   profile.Email,
		Picture: profile.Picture,
	}, nil
}

// Logout はセッションのアイデンティティ情報を消去して未認証状態に戻す。
// アクセストークンの失効はベストエフォートで行い、失敗してもログアウトは完了する。
func (s *Service) Logout(ctx context.Context, session *model.Session) error {
	if session.AccessToken != "" {
		if err := s.provider.RevokeToken(ctx, session.AccessToken); err != nil {
			slog.Warn("token revocation failed", slog.String("error", err.Error()))
		}
	}

	session.ClearIdentity()
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", session.ID))
	return nil
}

// CleanupExpiredSessions は期限切れセッションを削除し、削除件数を返す。
// 削除対象がない場合でもエラーにならない冪等なバッチ処理。
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int, error) {
	deleted, err := s.sessionRepo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	if deleted > 0 {
		slog.Info("expired sessions cleaned up", slog.Int("deleted_count", deleted))
	}
	return deleted, nil
}

// IsOwner はセッションの利用者がアイテムの作成者であるかを判定する。
// 未サインイン、アイテム未存在、作成者不一致、および内部エラーはすべてfalseを返す。
// エラーを返さない純粋な述語として扱う。
func (s *Service) IsOwner(ctx context.Context, session *model.Session, itemID string) bool {
	if session == nil || !session.LoggedIn {
		return false
	}

	user, err := s.userRepo.FindByGoogleID(ctx, session.GoogleID)
	if err != nil || user == nil {
		return false
	}

	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil || item == nil {
		return false
	}

	return user.ID == item.UserID
}
