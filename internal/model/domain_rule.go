package model

// DomainAccessRule はメールドメインのパターンとアクセスレベル（グループ名）の対応を表す。
// 設定順に評価され、最初にマッチしたルールが採用される。
type DomainAccessRule struct {
	DomainName   string   `json:"domain_name"`
	AccessLevels []string `json:"access_levels"`
}
