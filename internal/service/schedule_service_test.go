package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"deadline-desk/backend/internal/model"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// ── 测试辅助 ──

const testFeedURL = "https://lk.example.edu/ical/ivt-21.ics"

func setupScheduleSync(t *testing.T, raw string) (*fixture, *model.User) {
	t.Helper()
	f := newFixture(t, time.Date(2026, 3, 1, 20, 0, 0, 0, mustMoscow(t)))
	user := f.addUser(4004)
	f.store.users[user.UserID].ICalURL = ptr(testFeedURL)
	f.calendar.raw = raw
	return f, user
}

// threeWeeksFeed ISO 第 10 / 11 / 12 周各一次的周一讲座，另有一节周三实验课
func threeWeeksFeed() string {
	return icsFeed(
		mondayClass("w10", "20260302"),
		mondayClass("w11", "20260309"),
		mondayClass("w12", "20260316"),
		icsEvent("lab1",
			"SUMMARY:Программирование (Лабораторная)",
			"DTSTART;TZID=Europe/Moscow:20260304T131000",
			"DTEND;TZID=Europe/Moscow:20260304T144000",
			"DESCRIPTION:Преподаватель: Петров П.П.",
		),
	)
}

func assertNoPatterns(t *testing.T, f *fixture) {
	t.Helper()
	if len(f.store.patterns) != 0 {
		t.Errorf("失败的同步不应写入课程，实际 %d 条", len(f.store.patterns))
	}
}

// ── Sync 测试 ──

func TestSync_MergesParityIntoBoth(t *testing.T) {
	f, user := setupScheduleSync(t, threeWeeksFeed())
	svc := f.scheduleService()

	result, err := svc.Sync(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("Sync 应成功: %v", err)
	}
	if !result.Success || result.EventsParsed != 4 || result.PatternsFound != 2 || result.Created != 2 || result.Updated != 0 {
		t.Errorf("同步结果不符: %+v", result)
	}
	if len(f.calendar.urls) != 1 || f.calendar.urls[0] != testFeedURL {
		t.Errorf("应拉取用户的日历源，实际 %v", f.calendar.urls)
	}

	patterns, err := svc.ListPatterns(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("ListPatterns 应成功: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("期望 2 条课程，实际 %d", len(patterns))
	}
	lecture := patterns[0]
	if lecture.SubjectName != "Математический анализ" || lecture.DayOfWeek != 1 ||
		lecture.StartTime != "09:00" || lecture.WeekType != model.WeekTypeBoth {
		t.Errorf("周一讲座应聚合为 both: %+v", lecture)
	}
	lab := patterns[1]
	if lab.ClassType != model.ClassTypeLab || lab.WeekType != model.WeekTypeEven ||
		lab.InstructorName == nil || *lab.InstructorName != "Петров П.П." {
		t.Errorf("周三实验课不符: %+v", lab)
	}

	if f.store.users[user.UserID].LastScheduleSync == nil {
		t.Error("成功同步应记录同步时间")
	}
}

func TestSync_EvenWeeksOnly(t *testing.T) {
	f, user := setupScheduleSync(t, icsFeed(
		mondayClass("w10", "20260302"),
		mondayClass("w12", "20260316"),
	))

	if _, err := f.scheduleService().Sync(context.Background(), user.UserID); err != nil {
		t.Fatalf("Sync 应成功: %v", err)
	}
	for _, p := range f.store.patterns {
		if p.WeekType != model.WeekTypeEven {
			t.Errorf("只在偶数周出现应为 even，实际 %s", p.WeekType)
		}
	}
}

func TestSync_Idempotent(t *testing.T) {
	f, user := setupScheduleSync(t, threeWeeksFeed())
	svc := f.scheduleService()

	if _, err := svc.Sync(context.Background(), user.UserID); err != nil {
		t.Fatalf("首次 Sync 应成功: %v", err)
	}
	subjectsAfterFirst := len(f.store.subjects)

	result, err := svc.Sync(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("再次 Sync 应成功: %v", err)
	}
	if result.Created != 0 || result.Updated != 0 {
		t.Errorf("课程源未变化时应为 0 / 0，实际 %d / %d", result.Created, result.Updated)
	}
	if f.store.patternUpdates != 0 {
		t.Errorf("未变化的课程不应被写入，实际更新 %d 次", f.store.patternUpdates)
	}
	if len(f.store.patterns) != 2 || len(f.store.subjects) != subjectsAfterFirst {
		t.Error("重复同步不应新增课程或学科")
	}
}

func TestSync_UpdatesChangedFields(t *testing.T) {
	f, user := setupScheduleSync(t, icsFeed(mondayClass("w10", "20260302")))
	svc := f.scheduleService()
	if _, err := svc.Sync(context.Background(), user.UserID); err != nil {
		t.Fatalf("首次 Sync 应成功: %v", err)
	}

	f.calendar.raw = icsFeed(icsEvent("w10",
		"SUMMARY:Математический анализ (Лекция)",
		"DTSTART;TZID=Europe/Moscow:20260302T090000",
		"DTEND;TZID=Europe/Moscow:20260302T103500",
		"LOCATION:ауд. 415",
	))
	result, err := svc.Sync(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("再次 Sync 应成功: %v", err)
	}
	if result.Created != 0 || result.Updated != 1 {
		t.Errorf("期望 0 / 1，实际 %d / %d", result.Created, result.Updated)
	}
	for _, p := range f.store.patterns {
		if p.EndTime != "10:35" || p.Room == nil || *p.Room != "ауд. 415" {
			t.Errorf("可变字段应更新: %+v", p)
		}
	}
}

func TestSync_FetchFailure(t *testing.T) {
	f, user := setupScheduleSync(t, "")
	f.calendar.err = errors.New("dial tcp: i/o timeout")

	result, err := f.scheduleService().Sync(context.Background(), user.UserID)
	if !errors.Is(err, pkgerrors.ErrFetch) {
		t.Errorf("期望 Fetch 类错误，实际: %v", err)
	}
	if result == nil || result.Success || result.Error != "Failed to fetch iCal data" {
		t.Errorf("结果应携带拉取失败原因: %+v", result)
	}
	assertNoPatterns(t, f)
	if f.store.users[user.UserID].LastScheduleSync != nil {
		t.Error("失败的同步不应更新同步时间")
	}
}

func TestSync_EmptyBodyIsFetchFailure(t *testing.T) {
	f, user := setupScheduleSync(t, "   ")

	result, err := f.scheduleService().Sync(context.Background(), user.UserID)
	if !errors.Is(err, pkgerrors.ErrFetch) || result.Error != "Failed to fetch iCal data" {
		t.Errorf("空响应应视为拉取失败: %+v / %v", result, err)
	}
}

func TestSync_ParseFailure(t *testing.T) {
	f, user := setupScheduleSync(t, "<html><body>502 Bad Gateway</body></html>")

	result, err := f.scheduleService().Sync(context.Background(), user.UserID)
	if !errors.Is(err, pkgerrors.ErrParse) {
		t.Errorf("期望 Parse 类错误，实际: %v", err)
	}
	if result.Success || result.Error != "Failed to parse iCal data" {
		t.Errorf("结果应携带解析失败原因: %+v", result)
	}
	assertNoPatterns(t, f)
}

func TestSync_NoEvents(t *testing.T) {
	f, user := setupScheduleSync(t, icsFeed())

	result, err := f.scheduleService().Sync(context.Background(), user.UserID)
	if !errors.Is(err, pkgerrors.ErrParse) {
		t.Errorf("期望 Parse 类错误，实际: %v", err)
	}
	if result.Error != "No events found in iCal" || result.Created != 0 {
		t.Errorf("结果不符: %+v", result)
	}
	assertNoPatterns(t, f)
}

func TestSync_NoFeedURL(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 1, 20, 0, 0, 0, mustMoscow(t)))
	user := f.addUser(4004)

	result, err := f.scheduleService().Sync(context.Background(), user.UserID)
	if !errors.Is(err, ErrScheduleNoFeedURL) {
		t.Errorf("期望 ErrScheduleNoFeedURL，实际: %v", err)
	}
	if result.Error != "No iCal URL configured" {
		t.Errorf("结果应携带原因，实际 %q", result.Error)
	}
	if len(f.calendar.urls) != 0 {
		t.Error("未配置日历源时不应拉取")
	}
}

func TestSync_UnknownUser(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 1, 20, 0, 0, 0, mustMoscow(t)))

	result, err := f.scheduleService().Sync(context.Background(), "missing")
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("期望 NotFound，实际: %v", err)
	}
	if result == nil || result.Success {
		t.Error("失败时也应返回结构化结果")
	}
}

// ── SyncAll 测试 ──

func TestSyncAll(t *testing.T) {
	f, _ := setupScheduleSync(t, threeWeeksFeed())
	f.addUser(5005) // 未配置日历源，不参与同步

	report, err := f.scheduleService().SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll 应成功: %v", err)
	}
	if report.Driver != "schedule_sync" || report.Processed != 1 || report.Succeeded != 1 || report.Failed != 0 {
		t.Errorf("批次报告不符: %+v", report)
	}
}

func TestSyncAll_CountsFailures(t *testing.T) {
	f, _ := setupScheduleSync(t, "")
	f.calendar.err = errors.New("connection refused")

	report, err := f.scheduleService().SyncAll(context.Background())
	if err != nil {
		t.Fatalf("单个用户失败不应中断批次: %v", err)
	}
	if report.Failed != 1 || report.Succeeded != 0 {
		t.Errorf("批次报告不符: %+v", report)
	}
}

// ── 日历源与课程管理测试 ──

func TestSetFeedURL(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 1, 20, 0, 0, 0, mustMoscow(t)))
	user := f.addUser(4004)
	svc := f.scheduleService()

	for _, bad := range []string{"", "ftp://example.edu/a.ics", "webcal://", "lk.example.edu/a.ics"} {
		if err := svc.SetFeedURL(context.Background(), user.UserID, bad); !errors.Is(err, ErrScheduleFeedInvalid) {
			t.Errorf("SetFeedURL(%q) 期望 ErrScheduleFeedInvalid，实际: %v", bad, err)
		}
	}

	if err := svc.SetFeedURL(context.Background(), user.UserID, " webcal://lk.example.edu/a.ics "); err != nil {
		t.Fatalf("合法地址应保存: %v", err)
	}
	if got := derefString(f.store.users[user.UserID].ICalURL); got != "webcal://lk.example.edu/a.ics" {
		t.Errorf("保存的地址不符: %q", got)
	}

	if err := svc.SetFeedURL(context.Background(), "missing", testFeedURL); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("未知用户期望 NotFound，实际: %v", err)
	}
}

func TestClearPatterns(t *testing.T) {
	f, user := setupScheduleSync(t, threeWeeksFeed())
	svc := f.scheduleService()
	if _, err := svc.Sync(context.Background(), user.UserID); err != nil {
		t.Fatalf("Sync 应成功: %v", err)
	}

	resp, err := svc.ClearPatterns(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("ClearPatterns 应成功: %v", err)
	}
	if resp.Deleted != 2 {
		t.Errorf("期望删除 2 条，实际 %d", resp.Deleted)
	}
	patterns, _ := svc.ListPatterns(context.Background(), user.UserID)
	if len(patterns) != 0 {
		t.Errorf("清空后不应剩余课程，实际 %d", len(patterns))
	}
}
