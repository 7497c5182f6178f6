// Package model はドメインモデルを定義する。
package model

import "time"

// User はGoogleサインインで登録された利用者を表す。
// 初回サインイン時に一度だけ作成され、以後編集・削除されない。
type User struct {
	ID        string
	GoogleID  string
	Name      string
	Email     string
	Picture   string // Googleプロフィール画像のURL。空の場合あり。
	CreatedAt time.Time
}
