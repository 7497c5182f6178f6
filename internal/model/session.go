// Package model はドメインモデルを定義する。
package model

import "time"

// Session は訪問者ごとのサーバーサイドセッションを表す。
// CookieにはこのIDのみを保持し、状態はすべてDB側の行に置く。
// 未サインイン時はLoggedIn=falseでアイデンティティ系フィールドはすべて空。
type Session struct {
	ID       string
	LoggedIn bool

	// サインイン済みの場合のみ設定されるアイデンティティ情報。
	UserID   string
	GoogleID string
	Name     string
	Email    string
	Picture  string

	// OAuth交換が成功した場合のみ保持されるアクセストークン。
	AccessToken string

	// SigninStateはページデータ取得時に発行され、サインインコールバックの
	// state検証に使用される。CSRFTokenはフォーム描画時に発行され、
	// 変更系リクエストの送信値と厳密比較される。
	SigninState string
	CSRFToken   string

	Flash []Flash

	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Flash は次のページ表示で1回だけ提示されるメッセージを表す。
type Flash struct {
	Level   string `json:"level"` // "success" または "error"
	Message string `json:"message"`
}

// FlashLevel定数
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// AddFlash はセッションにフラッシュメッセージを追加する。
func (s *Session) AddFlash(level, message string) {
	s.Flash = append(s.Flash, Flash{Level: level, Message: message})
}

// DrainFlash は溜まったフラッシュメッセージを取り出してクリアする。
func (s *Session) DrainFlash() []Flash {
	f := s.Flash
	s.Flash = nil
	if f == nil {
		f = []Flash{}
	}
	return f
}

// ClearIdentity はログアウト時にアイデンティティ情報とアクセストークンを消去する。
// SigninState、CSRFToken、Flashはセッション自体に属するため保持する。
func (s *Session) ClearIdentity() {
	s.LoggedIn = false
	s.UserID = ""
	s.GoogleID = ""
	s.Name = ""
	s.Email = ""
	s.Picture = ""
	s.AccessToken = ""
}
