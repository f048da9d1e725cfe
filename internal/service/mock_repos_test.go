package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"deadline-desk/backend/internal/model"
	"deadline-desk/backend/internal/repository"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// ── 内存存储 ──
//
// 所有 mock repository 共享同一个 memStore，读取时按 GORM Preload 的形状
// 组装关联对象（返回副本），守卫式写入与真实实现保持相同语义。

type memStore struct {
	mu  sync.Mutex
	seq int

	users            map[string]*model.User
	subjects         map[string]*model.Subject
	instructors      map[string]*model.Instructor // key: subject_id
	materials        map[string][]model.Material  // key: subject_id
	templates        map[string]*model.TitleTemplate
	deadlines        map[string]*model.Deadline
	reminders        map[string]*model.Reminder
	reminderSettings map[string]*model.ReminderSettings
	works            map[string]*model.GeneratedWork
	workSettings     map[string]*model.UserWorkSettings
	patterns         map[string]*model.SchedulePattern

	// 故障注入
	reminderSettingsErr error
	transitionErr       map[model.WorkStatus]error // 迁移到该状态时返回的非 CAS 错误
	patternUpdates      int
}

func newMemStore() *memStore {
	return &memStore{
		users:            make(map[string]*model.User),
		subjects:         make(map[string]*model.Subject),
		instructors:      make(map[string]*model.Instructor),
		materials:        make(map[string][]model.Material),
		templates:        make(map[string]*model.TitleTemplate),
		deadlines:        make(map[string]*model.Deadline),
		reminders:        make(map[string]*model.Reminder),
		reminderSettings: make(map[string]*model.ReminderSettings),
		works:            make(map[string]*model.GeneratedWork),
		workSettings:     make(map[string]*model.UserWorkSettings),
		patterns:         make(map[string]*model.SchedulePattern),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%04d", prefix, s.seq)
}

// subjectGraph 对应 Preload("Subject.User") / Instructor / Materials
func (s *memStore) subjectGraph(id string) *model.Subject {
	src, ok := s.subjects[id]
	if !ok {
		return nil
	}
	subject := *src
	if u, ok := s.users[subject.UserID]; ok {
		user := *u
		subject.User = &user
	}
	if in, ok := s.instructors[id]; ok {
		instructor := *in
		subject.Instructor = &instructor
	}
	subject.Materials = append([]model.Material(nil), s.materials[id]...)
	return &subject
}

func (s *memStore) deadlineGraph(id string) *model.Deadline {
	src, ok := s.deadlines[id]
	if !ok {
		return nil
	}
	deadline := *src
	deadline.Subject = s.subjectGraph(deadline.SubjectID)
	return &deadline
}

func (s *memStore) workGraph(w *model.GeneratedWork) model.GeneratedWork {
	work := *w
	work.Deadline = s.deadlineGraph(work.DeadlineID)
	if work.TitleTemplateID != nil {
		if tpl, ok := s.templates[*work.TitleTemplateID]; ok {
			cp := *tpl
			work.TitleTemplate = &cp
		}
	} else {
		work.TitleTemplate = nil
	}
	return work
}

func (s *memStore) ownerOf(deadlineID string) string {
	d, ok := s.deadlines[deadlineID]
	if !ok {
		return ""
	}
	if subj, ok := s.subjects[d.SubjectID]; ok {
		return subj.UserID
	}
	return ""
}

// newMemRepository 组装未绑定数据库的 Repository 聚合，Transaction 直接执行
func newMemRepository(store *memStore) *repository.Repository {
	return &repository.Repository{
		User:            &mockUserRepo{s: store},
		Subject:         &mockSubjectRepo{s: store},
		Deadline:        &mockDeadlineRepo{s: store},
		Reminder:        &mockReminderRepo{s: store},
		Work:            &mockWorkRepo{s: store},
		SchedulePattern: &mockSchedulePatternRepo{s: store},
	}
}

// ── Mock UserRepository ──

type mockUserRepo struct{ s *memStore }

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if user.UserID == "" {
		user.UserID = m.s.nextID("user")
	}
	cp := *user
	m.s.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u, ok := m.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListWithICal(_ context.Context) ([]model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var users []model.User
	for _, u := range m.s.users {
		if u.ICalURL != nil && *u.ICalURL != "" {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users, nil
}

func (m *mockUserRepo) UpdateLastScheduleSync(_ context.Context, id string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u, ok := m.s.users[id]; ok {
		u.LastScheduleSync = &at
	}
	return nil
}

func (m *mockUserRepo) UpdateICalURL(_ context.Context, id string, url string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.ICalURL = &url
	return nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id string, updates map[string]interface{}) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range updates {
		val := v.(string)
		switch k {
		case "username":
			u.Username = &val
		case "first_name":
			u.FirstName = &val
		case "group_number":
			u.GroupNumber = &val
		}
	}
	return nil
}

// ── Mock SubjectRepository ──

type mockSubjectRepo struct{ s *memStore }

func (m *mockSubjectRepo) GetByID(_ context.Context, id string) (*model.Subject, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if subj := m.s.subjectGraph(id); subj != nil {
		return subj, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubjectRepo) GetOrCreate(_ context.Context, userID, name string) (*model.Subject, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, subj := range m.s.subjects {
		if subj.UserID == userID && subj.Name == name {
			cp := *subj
			return &cp, nil
		}
	}
	subj := &model.Subject{SubjectID: m.s.nextID("subject"), UserID: userID, Name: name}
	m.s.subjects[subj.SubjectID] = subj
	cp := *subj
	return &cp, nil
}

func (m *mockSubjectRepo) ListByUser(_ context.Context, userID string) ([]model.Subject, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var subjects []model.Subject
	for _, subj := range m.s.subjects {
		if subj.UserID == userID {
			subjects = append(subjects, *subj)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	for i := range subjects {
		subjects[i] = *m.s.subjectGraph(subjects[i].SubjectID)
		subjects[i].User = nil
		for j := range subjects[i].Materials {
			mat := &subjects[i].Materials[j]
			mat.ParsedLength = utf8.RuneCountInString(derefString(mat.ParsedText))
			mat.ParsedText = nil
		}
	}
	return subjects, nil
}

func (m *mockSubjectRepo) UpsertInstructor(_ context.Context, instructor *model.Instructor) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if prev, ok := m.s.instructors[instructor.SubjectID]; ok {
		instructor.InstructorID = prev.InstructorID
	} else {
		instructor.InstructorID = m.s.nextID("instructor")
	}
	cp := *instructor
	m.s.instructors[instructor.SubjectID] = &cp
	return nil
}

func (m *mockSubjectRepo) CreateMaterial(_ context.Context, material *model.Material) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	material.MaterialID = m.s.nextID("material")
	m.s.materials[material.SubjectID] = append(m.s.materials[material.SubjectID], *material)
	return nil
}

func (m *mockSubjectRepo) CreateTemplate(_ context.Context, tpl *model.TitleTemplate) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	tpl.TemplateID = m.s.nextID("template")
	cp := *tpl
	m.s.templates[tpl.TemplateID] = &cp
	return nil
}

func (m *mockSubjectRepo) ListTemplates(_ context.Context, userID string) ([]model.TitleTemplate, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.TitleTemplate
	for _, tpl := range m.s.templates {
		if tpl.UserID == userID {
			out = append(out, *tpl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TemplateID < out[j].TemplateID })
	return out, nil
}

func (m *mockSubjectRepo) SetDefaultTemplate(_ context.Context, userID, templateID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	target, ok := m.s.templates[templateID]
	if !ok || target.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	for _, tpl := range m.s.templates {
		if tpl.UserID == userID {
			tpl.IsDefault = tpl.TemplateID == templateID
		}
	}
	return nil
}

func (m *mockSubjectRepo) GetDefaultTemplate(_ context.Context, userID string) (*model.TitleTemplate, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, tpl := range m.s.templates {
		if tpl.UserID == userID && tpl.IsDefault {
			cp := *tpl
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubjectRepo) GetTemplate(_ context.Context, templateID string) (*model.TitleTemplate, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if tpl, ok := m.s.templates[templateID]; ok {
		cp := *tpl
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock DeadlineRepository ──

type mockDeadlineRepo struct{ s *memStore }

func (m *mockDeadlineRepo) Create(_ context.Context, deadline *model.Deadline) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if deadline.DeadlineID == "" {
		deadline.DeadlineID = m.s.nextID("deadline")
	}
	cp := *deadline
	cp.Subject = nil
	m.s.deadlines[deadline.DeadlineID] = &cp
	return nil
}

func (m *mockDeadlineRepo) GetByID(_ context.Context, id string) (*model.Deadline, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if d := m.s.deadlineGraph(id); d != nil {
		return d, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeadlineRepo) ListUpcomingByUser(_ context.Context, userID string, from time.Time) ([]model.Deadline, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.Deadline
	for id, d := range m.s.deadlines {
		if m.s.ownerOf(id) == userID && !d.DeadlineAt.Before(from) {
			out = append(out, *m.s.deadlineGraph(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeadlineAt.Before(out[j].DeadlineAt) })
	return out, nil
}

func (m *mockDeadlineRepo) SetCompleted(_ context.Context, id string, completed bool) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d, ok := m.s.deadlines[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d.IsCompleted = completed
	return nil
}

func (m *mockDeadlineRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.deadlines[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.s.deadlines, id)
	// 模拟 ON DELETE CASCADE
	for rid, r := range m.s.reminders {
		if r.DeadlineID == id {
			delete(m.s.reminders, rid)
		}
	}
	for wid, w := range m.s.works {
		if w.DeadlineID == id {
			delete(m.s.works, wid)
		}
	}
	return nil
}

// ── Mock ReminderRepository ──

type mockReminderRepo struct{ s *memStore }

func (m *mockReminderRepo) CreateIfAbsent(_ context.Context, reminder *model.Reminder) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.reminders {
		if r.DeadlineID == reminder.DeadlineID && r.HoursBefore == reminder.HoursBefore {
			return false, nil
		}
	}
	reminder.ReminderID = m.s.nextID("reminder")
	cp := *reminder
	cp.Deadline = nil
	m.s.reminders[cp.ReminderID] = &cp
	return true, nil
}

func (m *mockReminderRepo) ListByDeadline(_ context.Context, deadlineID string) ([]model.Reminder, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.Reminder
	for _, r := range m.s.reminders {
		if r.DeadlineID == deadlineID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SendAt.Before(out[j].SendAt) })
	return out, nil
}

func (m *mockReminderRepo) ListDue(_ context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.Reminder
	for _, r := range m.s.reminders {
		if r.IsSent || r.SendAt.After(now) {
			continue
		}
		d := m.s.deadlineGraph(r.DeadlineID)
		if d == nil || d.IsCompleted {
			continue
		}
		// LEFT JOIN reminder_settings：无记录视为开启
		if d.Subject != nil {
			if rs, ok := m.s.reminderSettings[d.Subject.UserID]; ok && !rs.IsEnabled {
				continue
			}
		}
		cp := *r
		cp.Deadline = d
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SendAt.Equal(out[j].SendAt) {
			return out[i].SendAt.Before(out[j].SendAt)
		}
		return out[i].ReminderID < out[j].ReminderID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockReminderRepo) MarkSent(_ context.Context, id string, message string, sentAt time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.reminders[id]
	if !ok || r.IsSent {
		return pkgerrors.ErrOptimisticLock
	}
	r.IsSent = true
	r.Message = &message
	r.SentAt = &sentAt
	return nil
}

func (m *mockReminderRepo) GetSettings(_ context.Context, userID string) (*model.ReminderSettings, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.reminderSettingsErr != nil {
		return nil, m.s.reminderSettingsErr
	}
	if rs, ok := m.s.reminderSettings[userID]; ok {
		cp := *rs
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReminderRepo) UpsertSettings(_ context.Context, settings *model.ReminderSettings) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *settings
	m.s.reminderSettings[settings.UserID] = &cp
	return nil
}

// ── Mock WorkRepository ──

type mockWorkRepo struct{ s *memStore }

func (m *mockWorkRepo) Create(_ context.Context, work *model.GeneratedWork) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, w := range m.s.works {
		if w.DeadlineID == work.DeadlineID {
			return fmt.Errorf("duplicate key value violates unique constraint")
		}
	}
	if work.WorkID == "" {
		work.WorkID = m.s.nextID("work")
	}
	cp := *work
	cp.Deadline, cp.TitleTemplate = nil, nil
	m.s.works[cp.WorkID] = &cp
	return nil
}

func (m *mockWorkRepo) GetByID(_ context.Context, id string) (*model.GeneratedWork, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if w, ok := m.s.works[id]; ok {
		work := m.s.workGraph(w)
		return &work, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkRepo) GetByDeadline(_ context.Context, deadlineID string) (*model.GeneratedWork, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, w := range m.s.works {
		if w.DeadlineID == deadlineID {
			work := m.s.workGraph(w)
			return &work, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkRepo) list(match func(w *model.GeneratedWork, d *model.Deadline) bool) []model.GeneratedWork {
	var out []model.GeneratedWork
	for _, w := range m.s.works {
		d := m.s.deadlines[w.DeadlineID]
		if d == nil || !match(w, d) {
			continue
		}
		out = append(out, m.s.workGraph(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkID < out[j].WorkID })
	return out
}

func (m *mockWorkRepo) ListByUser(_ context.Context, userID string) ([]model.GeneratedWork, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(w *model.GeneratedWork, _ *model.Deadline) bool {
		return m.s.ownerOf(w.DeadlineID) == userID
	}), nil
}

func (m *mockWorkRepo) ListPending(_ context.Context, now time.Time) ([]model.GeneratedWork, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(w *model.GeneratedWork, d *model.Deadline) bool {
		return w.Status == model.WorkStatusPending && d.DeadlineAt.After(now) && !d.IsCompleted
	}), nil
}

func (m *mockWorkRepo) ListDueForSend(_ context.Context, now time.Time) ([]model.GeneratedWork, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(w *model.GeneratedWork, _ *model.Deadline) bool {
		if w.Status != model.WorkStatusReady && w.Status != model.WorkStatusConfirmed {
			return false
		}
		return w.ScheduledSendAt != nil && !w.ScheduledSendAt.After(now)
	}), nil
}

func (m *mockWorkRepo) ListStuckGenerating(_ context.Context, before time.Time) ([]model.GeneratedWork, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.list(func(w *model.GeneratedWork, _ *model.Deadline) bool {
		return w.Status == model.WorkStatusGenerating &&
			(w.GenerationStartedAt == nil || w.GenerationStartedAt.Before(before))
	}), nil
}

func (m *mockWorkRepo) Transition(_ context.Context, id string, from []model.WorkStatus, to model.WorkStatus, updates map[string]interface{}) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.transitionErr[to]; err != nil {
		return err
	}
	w, ok := m.s.works[id]
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	matched := false
	for _, st := range from {
		if w.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return pkgerrors.ErrOptimisticLock
	}
	applyWorkUpdates(w, updates)
	w.Status = to
	return nil
}

func (m *mockWorkRepo) UpdateFields(_ context.Context, id string, updates map[string]interface{}) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	w, ok := m.s.works[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyWorkUpdates(w, updates)
	return nil
}

func (m *mockWorkRepo) GetSettings(_ context.Context, userID string) (*model.UserWorkSettings, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if ws, ok := m.s.workSettings[userID]; ok {
		cp := *ws
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkRepo) UpsertSettings(_ context.Context, settings *model.UserWorkSettings) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *settings
	m.s.workSettings[settings.UserID] = &cp
	return nil
}

// applyWorkUpdates 按列名写入字段，nil 表示置空
func applyWorkUpdates(w *model.GeneratedWork, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "content_text":
			w.ContentText = stringValue(v)
		case "file_name":
			w.FileName = stringValue(v)
		case "file_path":
			w.FilePath = stringValue(v)
		case "last_error":
			w.LastError = stringValue(v)
		case "title_template_id":
			w.TitleTemplateID = stringValue(v)
		case "scheduled_send_at":
			w.ScheduledSendAt = timeValue(v)
		case "generation_started_at":
			w.GenerationStartedAt = timeValue(v)
		case "generated_at":
			w.GeneratedAt = timeValue(v)
		case "confirmed_at":
			w.ConfirmedAt = timeValue(v)
		case "sent_at":
			w.SentAt = timeValue(v)
		default:
			panic("applyWorkUpdates: 未知列 " + k)
		}
	}
}

func stringValue(v interface{}) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &t
	case *string:
		return t
	}
	panic(fmt.Sprintf("stringValue: unexpected %T", v))
}

func timeValue(v interface{}) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	panic(fmt.Sprintf("timeValue: unexpected %T", v))
}

// ── Mock SchedulePatternRepository ──

type mockSchedulePatternRepo struct{ s *memStore }

func (m *mockSchedulePatternRepo) FindByKey(_ context.Context, subjectID string, dayOfWeek int, startTime, classType string) (*model.SchedulePattern, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.patterns {
		if p.SubjectID == subjectID && p.DayOfWeek == dayOfWeek && p.StartTime == startTime && p.ClassType == classType {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSchedulePatternRepo) Create(_ context.Context, pattern *model.SchedulePattern) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	pattern.PatternID = m.s.nextID("pattern")
	cp := *pattern
	m.s.patterns[cp.PatternID] = &cp
	return nil
}

func (m *mockSchedulePatternRepo) Update(_ context.Context, pattern *model.SchedulePattern) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.patterns[pattern.PatternID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.EndTime = pattern.EndTime
	p.Room = pattern.Room
	p.WeekType = pattern.WeekType
	p.InstructorName = pattern.InstructorName
	m.s.patternUpdates++
	return nil
}

func (m *mockSchedulePatternRepo) ListByUser(_ context.Context, userID string) ([]model.SchedulePattern, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.SchedulePattern
	for _, p := range m.s.patterns {
		subj, ok := m.s.subjects[p.SubjectID]
		if !ok || subj.UserID != userID {
			continue
		}
		cp := *p
		s := *subj
		cp.Subject = &s
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (m *mockSchedulePatternRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var deleted int64
	for id, p := range m.s.patterns {
		if subj, ok := m.s.subjects[p.SubjectID]; ok && subj.UserID == userID {
			delete(m.s.patterns, id)
			deleted++
		}
	}
	return deleted, nil
}
