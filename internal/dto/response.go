package dto

// ── 认证模块响应 ──

// TokenResponse 访问令牌响应
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // 有效期（秒）
	UserID      string `json:"user_id"`
}

// ── 驱动执行报告 ──

// TickReport 单次周期驱动的执行结果统计
type TickReport struct {
	Driver    string `json:"driver"`
	Processed int    `json:"processed"` // 本轮候选数量
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"` // 被并发者抢先或条件不满足
}

// Add 合并另一份报告的计数
func (r *TickReport) Add(other *TickReport) {
	if other == nil {
		return
	}
	r.Processed += other.Processed
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Skipped += other.Skipped
}
