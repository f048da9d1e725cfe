package service

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"deadline-desk/backend/internal/model"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 职责：将 iCalendar (RFC 5545) 课表源解析为 RawCalendarEvent 列表，
// 再按 (学科, 星期, 开始时间, 课程类型) 聚合为周期课程。
//
// 设计决策：
//   - 每个实际发生的课次一条 RawCalendarEvent，单双周由课次日期的 ISO 周数决定
//   - 周重复 RRULE 在有限窗口内展开（COUNT / UNTIL / INTERVAL / EXDATE）
//   - 全天事件不是课次，直接跳过；缺少 DTEND 时结束时间等于开始时间
//   - 学科名与课程类型来自 SUMMARY，教师来自 DESCRIPTION（尽力提取）
// ─────────────────────────────────────────────────────────────

// rruleHorizonWeeks 无 COUNT / UNTIL 的周重复事件最多展开的周数
const rruleHorizonWeeks = 26

// RawCalendarEvent 课表源中的一次课次（不持久化）
type RawCalendarEvent struct {
	SubjectName    string
	ClassType      string // lecture | practice | lab
	DayOfWeek      int    // 1=Monday … 7=Sunday
	StartTime      string // HH:MM
	EndTime        string
	Room           *string
	InstructorName *string
	WeekType       string // odd | even，由 Date 的 ISO 周数决定
	Date           time.Time
}

// FeedPattern 聚合后的周期课程，对应一条 SchedulePattern
type FeedPattern struct {
	SubjectName    string
	ClassType      string
	DayOfWeek      int
	StartTime      string
	EndTime        string
	Room           *string
	InstructorName *string
	WeekType       string // odd | even | both
}

// ParseFeed 解析课表源原文，时间统一换算到 loc
// 原文不是合法日历时返回 Parse 类错误；合法但无课次时返回空列表
func ParseFeed(raw string, loc *time.Location) ([]RawCalendarEvent, error) {
	if !strings.Contains(strings.ToUpper(raw), "BEGIN:VCALENDAR") {
		return nil, pkgerrors.Parse("parse feed", fmt.Errorf("缺少 VCALENDAR"))
	}
	cal, err := ics.ParseCalendar(strings.NewReader(raw))
	if err != nil {
		return nil, pkgerrors.Parse("parse feed", err)
	}

	var events []RawCalendarEvent
	for _, comp := range cal.Events() {
		events = append(events, parseVEvent(comp, loc)...)
	}
	return events, nil
}

// parseVEvent 将单个 VEVENT 展开为课次；无法识别的事件返回 nil
func parseVEvent(evt *ics.VEvent, loc *time.Location) []RawCalendarEvent {
	summary := evt.GetProperty(ics.ComponentPropertySummary)
	if summary == nil || strings.TrimSpace(unescapeText(summary.Value)) == "" {
		return nil
	}
	if isAllDay(evt) {
		return nil
	}

	dtStart, err := parseICSDateTime(evt.GetProperty(ics.ComponentPropertyDtStart), loc)
	if err != nil {
		return nil
	}
	dtEnd, err := parseICSDateTime(evt.GetProperty(ics.ComponentPropertyDtEnd), loc)
	if err != nil {
		dtEnd = dtStart
	}

	subject, classType := ParseSummary(unescapeText(summary.Value))
	var room *string
	if p := evt.GetProperty(ics.ComponentPropertyLocation); p != nil {
		if v := strings.TrimSpace(unescapeText(p.Value)); v != "" {
			room = &v
		}
	}
	var instructor *string
	if p := evt.GetProperty(ics.ComponentPropertyDescription); p != nil {
		instructor = ParseInstructor(unescapeText(p.Value))
	}

	duration := dtEnd.Sub(dtStart)
	occurrences := expandOccurrences(evt, dtStart, loc)
	events := make([]RawCalendarEvent, 0, len(occurrences))
	for _, start := range occurrences {
		events = append(events, RawCalendarEvent{
			SubjectName:    subject,
			ClassType:      classType,
			DayOfWeek:      goWeekdayToISO(start.Weekday()),
			StartTime:      start.Format("15:04"),
			EndTime:        start.Add(duration).Format("15:04"),
			Room:           room,
			InstructorName: instructor,
			WeekType:       WeekParity(start),
			Date:           start,
		})
	}
	return events
}

// expandOccurrences 返回事件的全部课次开始时间
// 非周重复或无 RRULE 的事件只有 DTSTART 一次
func expandOccurrences(evt *ics.VEvent, dtStart time.Time, loc *time.Location) []time.Time {
	prop := evt.GetProperty(ics.ComponentPropertyRrule)
	if prop == nil {
		return []time.Time{dtStart}
	}
	rule := parseRRule(prop.Value, loc)
	if rule.freq != "WEEKLY" {
		return []time.Time{dtStart}
	}

	exDates := parseExDates(evt, loc)
	limit := dtStart.AddDate(0, 0, rruleHorizonWeeks*7)
	if !rule.until.IsZero() && rule.until.Before(limit) {
		limit = rule.until
	}

	var out []time.Time
	current := dtStart
	for n := 0; ; n++ {
		if rule.count > 0 && n >= rule.count {
			break
		}
		if current.After(limit) {
			break
		}
		if !exDates[current.Format("20060102")] {
			out = append(out, current)
		}
		current = current.AddDate(0, 0, 7*rule.interval)
	}
	return out
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;INTERVAL=2）
func parseRRule(value string, loc *time.Location) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			if n, err := strconv.Atoi(kv[1]); err == nil && n > 0 {
				r.interval = n
			}
		case "COUNT":
			if n, err := strconv.Atoi(kv[1]); err == nil && n > 0 {
				r.count = n
			}
		case "UNTIL":
			if t, err := parseICSValue(kv[1], "", loc); err == nil {
				if len(kv[1]) == 8 {
					// 仅日期的 UNTIL 包含当天
					t = t.AddDate(0, 0, 1).Add(-time.Second)
				}
				r.until = t
			}
		}
	}
	return r
}

// parseExDates 收集所有 EXDATE 的日期（loc 下的 yyyymmdd），支持逗号分隔的多值
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		tzid := paramValue(prop.ICalParameters, "TZID")
		for _, v := range strings.Split(prop.Value, ",") {
			if t, err := parseICSValue(strings.TrimSpace(v), tzid, loc); err == nil {
				exDates[t.Format("20060102")] = true
			}
		}
	}
	return exDates
}

// ── 文本规则 ──

var (
	trailingParenRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

	instructorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:Преподаватель|Препод|Лектор|Teacher)[:\s]+([^\n,]+)`),
		regexp.MustCompile(`([А-ЯЁ][а-яё]+\s+[А-ЯЁ]\.[А-ЯЁ]\.)`),
		regexp.MustCompile(`([А-ЯЁ][а-яё]+\s+[А-ЯЁ][а-яё]+\s+[А-ЯЁ][а-яё]+)`),
	}
)

// ParseSummary 从事件标题提取学科名与课程类型
// 类型按关键词匹配：лек → lecture，практ / семинар → practice，лаб → lab，默认 lecture；
// 学科名去掉结尾的括号注释，去掉后为空则保留原标题
func ParseSummary(summary string) (subject, classType string) {
	summary = strings.TrimSpace(summary)
	lower := strings.ToLower(summary)

	switch {
	case strings.Contains(lower, "лек"):
		classType = model.ClassTypeLecture
	case strings.Contains(lower, "практ"), strings.Contains(lower, "семинар"):
		classType = model.ClassTypePractice
	case strings.Contains(lower, "лаб"):
		classType = model.ClassTypeLab
	default:
		classType = model.ClassTypeLecture
	}

	subject = strings.TrimSpace(trailingParenRe.ReplaceAllString(summary, ""))
	if subject == "" {
		subject = summary
	}
	return subject, classType
}

// ParseInstructor 从事件描述中提取教师，依次尝试显式标签、"Фамилия И.О."、完整姓名
func ParseInstructor(description string) *string {
	if strings.TrimSpace(description) == "" {
		return nil
	}
	for _, re := range instructorPatterns {
		if m := re.FindStringSubmatch(description); len(m) > 1 {
			if name := strings.TrimSpace(m[1]); name != "" {
				return &name
			}
		}
	}
	return nil
}

// WeekParity 按 ISO 周数判断单双周
func WeekParity(date time.Time) string {
	_, week := date.ISOWeek()
	if week%2 == 0 {
		return model.WeekTypeEven
	}
	return model.WeekTypeOdd
}

// GroupEventsToPatterns 按 (学科, 星期, 开始时间, 课程类型) 聚合课次
// 结束时间、教室、教师取组内第一条；同时出现单双周则为 both。
// 结果保持各组首次出现的顺序
func GroupEventsToPatterns(events []RawCalendarEvent) []FeedPattern {
	type key struct {
		subject   string
		dayOfWeek int
		startTime string
		classType string
	}
	type group struct {
		pattern  FeedPattern
		parities map[string]struct{}
	}

	groups := make(map[key]*group)
	order := []key{}
	for _, e := range events {
		k := key{subject: e.SubjectName, dayOfWeek: e.DayOfWeek, startTime: e.StartTime, classType: e.ClassType}
		g, ok := groups[k]
		if !ok {
			g = &group{
				pattern: FeedPattern{
					SubjectName:    e.SubjectName,
					ClassType:      e.ClassType,
					DayOfWeek:      e.DayOfWeek,
					StartTime:      e.StartTime,
					EndTime:        e.EndTime,
					Room:           e.Room,
					InstructorName: e.InstructorName,
				},
				parities: make(map[string]struct{}, 2),
			}
			groups[k] = g
			order = append(order, k)
		}
		g.parities[e.WeekType] = struct{}{}
	}

	patterns := make([]FeedPattern, 0, len(order))
	for _, k := range order {
		g := groups[k]
		if len(g.parities) > 1 {
			g.pattern.WeekType = model.WeekTypeBoth
		} else {
			for p := range g.parities {
				g.pattern.WeekType = p
			}
		}
		patterns = append(patterns, g.pattern)
	}
	return patterns
}

// ── 辅助函数 ──

// goWeekdayToISO 将 Go 的 time.Weekday (0=Sunday) 转为 ISO 8601 (1=Monday … 7=Sunday)
func goWeekdayToISO(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// isAllDay DTSTART 为纯日期（VALUE=DATE 或 8 位值）
func isAllDay(evt *ics.VEvent) bool {
	prop := evt.GetProperty(ics.ComponentPropertyDtStart)
	if prop == nil {
		return false
	}
	if strings.EqualFold(paramValue(prop.ICalParameters, "VALUE"), "DATE") {
		return true
	}
	return len(strings.TrimSpace(prop.Value)) == 8
}

// parseICSDateTime 解析日期时间属性，带 TZID 时按该时区解释
func parseICSDateTime(prop *ics.IANAProperty, loc *time.Location) (time.Time, error) {
	if prop == nil {
		return time.Time{}, fmt.Errorf("缺少日期属性")
	}
	return parseICSValue(strings.TrimSpace(prop.Value), paramValue(prop.ICalParameters, "TZID"), loc)
}

// parseICSValue 尝试 UTC / 本地 / 纯日期三种格式，结果换算到 loc
func parseICSValue(val, tzid string, loc *time.Location) (time.Time, error) {
	layouts := []string{
		"20060102T150405Z",
		"20060102T150405",
		"20060102",
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		src := loc
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				src = tzLoc
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, src).In(loc), nil
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}

func paramValue(params map[string][]string, name string) string {
	for k, v := range params {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

var icsTextUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";")

// unescapeText 还原 RFC 5545 TEXT 值中的转义
func unescapeText(s string) string {
	return icsTextUnescaper.Replace(s)
}

// sortPatterns 按星期、开始时间、学科排序，用于导出
func sortPatterns(patterns []model.SchedulePattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		a, b := patterns[i], patterns[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return subjectName(a.Subject) < subjectName(b.Subject)
	})
}

func subjectName(s *model.Subject) string {
	if s == nil {
		return ""
	}
	return s.Name
}
