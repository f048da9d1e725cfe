package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/model"
	"deadline-desk/backend/internal/repository"
)

// ── Mock 外部协作者 ──

type fakeText struct {
	text  string
	err   error
	calls int
	last  dto.DeadlineContext
}

func (f *fakeText) GenerateReminder(_ context.Context, d dto.DeadlineContext, _ *dto.InstructorContext) (string, error) {
	f.calls++
	f.last = d
	return f.text, f.err
}

type fakeDocument struct {
	content   string
	renderErr error
	buildErr  error
	renders   []dto.WorkContext
	builds    []dto.DocumentRequest
	discarded []string
	onRender  func() // 在生成过程中观察中间状态
}

func (f *fakeDocument) RenderWork(_ context.Context, wc dto.WorkContext) (string, error) {
	f.renders = append(f.renders, wc)
	if f.onRender != nil {
		f.onRender()
	}
	if f.renderErr != nil {
		return "", f.renderErr
	}
	return f.content, nil
}

func (f *fakeDocument) BuildDocument(_ context.Context, req dto.DocumentRequest) (*dto.DocumentArtifact, error) {
	f.builds = append(f.builds, req)
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return &dto.DocumentArtifact{
		FileName: req.WorkType + "_" + req.DeadlineID + ".docx",
		Ref:      "/generated/" + req.UserID + "_" + req.DeadlineID + ".docx",
	}, nil
}

func (f *fakeDocument) Discard(_ context.Context, ref string) error {
	f.discarded = append(f.discarded, ref)
	return nil
}

type sentMessage struct {
	to   int64
	text string
}

type sentDocument struct {
	to       int64
	ref      string
	fileName string
	caption  string
}

type fakeNotifier struct {
	mu      sync.Mutex
	err     error
	docErr  error
	sent    []sentMessage
	docs    []sentDocument
	attempt int
}

func (f *fakeNotifier) Send(_ context.Context, to int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempt++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{to: to, text: text})
	return nil
}

func (f *fakeNotifier) SendDocument(_ context.Context, to int64, ref, fileName, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docErr != nil {
		return f.docErr
	}
	f.docs = append(f.docs, sentDocument{to: to, ref: ref, fileName: fileName, caption: caption})
	return nil
}

type fakeCalendar struct {
	raw  string
	err  error
	urls []string
}

func (f *fakeCalendar) Fetch(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.raw, f.err
}

type fakeGuard struct {
	mu       sync.Mutex
	claimed  map[string]bool
	released []string
}

func newFakeGuard() *fakeGuard { return &fakeGuard{claimed: make(map[string]bool)} }

func (f *fakeGuard) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func (f *fakeGuard) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.claimed, key)
	f.released = append(f.released, key)
	return nil
}

// ── 测试夹具 ──

type fixture struct {
	t        *testing.T
	now      time.Time
	loc      *time.Location
	store    *memStore
	repo     *repository.Repository
	text     *fakeText
	doc      *fakeDocument
	notifier *fakeNotifier
	calendar *fakeCalendar
	guard    *fakeGuard
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	store := newMemStore()
	return &fixture{
		t:        t,
		now:      now,
		loc:      now.Location(),
		store:    store,
		repo:     newMemRepository(store),
		text:     &fakeText{text: "Не забудь сдать работу."},
		doc:      &fakeDocument{content: "# Введение\n\nТекст работы."},
		notifier: &fakeNotifier{},
		calendar: &fakeCalendar{},
		guard:    newFakeGuard(),
	}
}

func (f *fixture) clock() Clock {
	return ClockFunc(func() time.Time { return f.now })
}

func (f *fixture) collab() Collaborators {
	return Collaborators{
		Text:     f.text,
		Document: f.doc,
		Notifier: f.notifier,
		Calendar: f.calendar,
		Guard:    f.guard,
	}
}

func (f *fixture) reminderService() ReminderService {
	return NewReminderService(f.repo, f.clock(), f.collab(), Options{}, zap.NewNop())
}

func (f *fixture) workService() WorkService {
	return NewWorkService(f.repo, f.clock(), f.collab(), Options{}, zap.NewNop())
}

func (f *fixture) scheduleService() ScheduleService {
	return NewScheduleService(f.repo, f.clock(), f.collab(), Options{}, zap.NewNop())
}

func (f *fixture) userService() UserService {
	return NewUserService(f.repo, f.clock(), zap.NewNop())
}

func (f *fixture) subjectService(templatesDir string) SubjectService {
	return NewSubjectService(f.repo, f.clock(), Options{TemplatesDir: templatesDir}, zap.NewNop())
}

func (f *fixture) deadlineService() DeadlineService {
	return NewDeadlineService(f.repo, f.clock(), f.reminderService(), f.workService(), zap.NewNop())
}

func (f *fixture) addUser(telegramID int64) *model.User {
	f.t.Helper()
	user := &model.User{TelegramID: telegramID, FirstName: ptr("Иван"), GroupNumber: ptr("ИВТ-21")}
	if err := f.repo.User.Create(context.Background(), user); err != nil {
		f.t.Fatalf("创建用户失败: %v", err)
	}
	return user
}

func (f *fixture) addDeadline(userID, subjectName string, at time.Time) *model.Deadline {
	f.t.Helper()
	ctx := context.Background()
	subject, err := f.repo.Subject.GetOrCreate(ctx, userID, subjectName)
	if err != nil {
		f.t.Fatalf("创建学科失败: %v", err)
	}
	deadline := &model.Deadline{
		SubjectID:  subject.SubjectID,
		Title:      "Отчёт по практике",
		WorkType:   "lab",
		WorkNumber: ptr(2),
		DeadlineAt: at,
	}
	if err := f.repo.Deadline.Create(ctx, deadline); err != nil {
		f.t.Fatalf("创建截止事项失败: %v", err)
	}
	loaded, _ := f.repo.Deadline.GetByID(ctx, deadline.DeadlineID)
	return loaded
}

func (f *fixture) addReminder(deadlineID string, hoursBefore int, sendAt time.Time) *model.Reminder {
	f.t.Helper()
	r := &model.Reminder{DeadlineID: deadlineID, HoursBefore: hoursBefore, SendAt: sendAt}
	if _, err := f.repo.Reminder.CreateIfAbsent(context.Background(), r); err != nil {
		f.t.Fatalf("创建提醒失败: %v", err)
	}
	return r
}

func (f *fixture) addWork(deadlineID string, status model.WorkStatus, sendAt *time.Time) *model.GeneratedWork {
	f.t.Helper()
	w := &model.GeneratedWork{DeadlineID: deadlineID, Status: status, ScheduledSendAt: sendAt}
	if status == model.WorkStatusReady || status == model.WorkStatusConfirmed || status == model.WorkStatusSent {
		w.FileName = ptr("lab_2.docx")
		w.FilePath = ptr("/generated/lab_2.docx")
		w.ContentText = ptr("текст")
		generated := f.now.Add(-time.Hour)
		w.GeneratedAt = &generated
	}
	if err := f.repo.Work.Create(context.Background(), w); err != nil {
		f.t.Fatalf("创建生成作业失败: %v", err)
	}
	return w
}

func (f *fixture) work(id string) *model.GeneratedWork {
	f.t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	w, ok := f.store.works[id]
	if !ok {
		f.t.Fatalf("生成作业 %s 不存在", id)
	}
	cp := *w
	return &cp
}

func (f *fixture) reminder(id string) *model.Reminder {
	f.t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	r, ok := f.store.reminders[id]
	if !ok {
		f.t.Fatalf("提醒 %s 不存在", id)
	}
	cp := *r
	return &cp
}

func mustMoscow(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("加载时区失败: %v", err)
	}
	return loc
}
