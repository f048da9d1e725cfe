package service

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"deadline-desk/backend/internal/model"
)

// ── 通用格式化与辅助 ──

// displayDateLayout 面向用户的日期时间格式（dd.mm.yyyy HH:MM）
const displayDateLayout = "02.01.2006 15:04"

// workTypeNames 作业类型的俄文名称，未知类型原样显示
var workTypeNames = map[string]string{
	"homework":     "Домашняя работа",
	"lab":          "Лабораторная работа",
	"practical":    "Практическая работа",
	"coursework":   "Курсовая работа",
	"report":       "Реферат",
	"essay":        "Эссе",
	"presentation": "Презентация",
	"exam":         "Экзамен",
	"test":         "Контрольная работа",
}

// WorkTypeName 返回作业类型的展示名称
func WorkTypeName(workType string) string {
	if name, ok := workTypeNames[workType]; ok {
		return name
	}
	return workType
}

// workTitle 组合 "类型 №N"
func workTitle(d *model.Deadline) string {
	title := WorkTypeName(d.WorkType)
	if d.WorkNumber != nil && *d.WorkNumber > 0 {
		title += fmt.Sprintf(" №%d", *d.WorkNumber)
	}
	return title
}

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}

func formatTimePtr(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t, loc)
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func ptr[T any](v T) *T { return &v }
