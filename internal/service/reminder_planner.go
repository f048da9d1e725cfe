package service

import (
	"fmt"
	"sort"
	"time"

	"deadline-desk/backend/internal/model"
)

// DefaultReminderOffsets 用户未配置提醒偏好时使用的提前小时数
var DefaultReminderOffsets = []int{72, 24, 12}

// PlanReminders 计算截止事项需要新建的提醒
//
// settings 为 nil 时使用 DefaultReminderOffsets；重复的偏移只保留一个。
// send_at = deadline − h，仅保留 send_at 晚于 now 的偏移：
// 已经错过的时间点在规划时丢弃，之后不会补建。
// 结果按 send_at 升序，不做任何持久化。
func PlanReminders(deadline *model.Deadline, settings *model.ReminderSettings, now time.Time) []model.Reminder {
	offsets := DefaultReminderOffsets
	if settings != nil {
		offsets = settings.HoursBefore
	}

	seen := make(map[int]struct{}, len(offsets))
	reminders := make([]model.Reminder, 0, len(offsets))
	for _, h := range offsets {
		if h < 0 {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}

		sendAt := deadline.DeadlineAt.Add(-time.Duration(h) * time.Hour)
		if !sendAt.After(now) {
			continue
		}
		reminders = append(reminders, model.Reminder{
			DeadlineID:  deadline.DeadlineID,
			HoursBefore: h,
			SendAt:      sendAt,
		})
	}

	sort.Slice(reminders, func(i, j int) bool {
		return reminders[i].SendAt.Before(reminders[j].SendAt)
	})
	return reminders
}

// TimeLeftLabel 由提醒的提前小时数生成剩余时间标签
// 只依赖存储的偏移，与实际派发延迟无关
func TimeLeftLabel(hoursBefore int) string {
	if hoursBefore >= 24 {
		return fmt.Sprintf("%d дн.", hoursBefore/24)
	}
	return fmt.Sprintf("%d ч.", hoursBefore)
}

// normalizeOffsets 校验并规范化用户提交的偏移：正数、≤ 30 天、去重、降序
func normalizeOffsets(hours []int) ([]int, error) {
	if len(hours) == 0 {
		return nil, ErrReminderOffsetsEmpty
	}
	seen := make(map[int]struct{}, len(hours))
	out := make([]int, 0, len(hours))
	for _, h := range hours {
		if h <= 0 || h > maxReminderOffsetHours {
			return nil, fmt.Errorf("%w: %d", ErrReminderOffsetInvalid, h)
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}

const maxReminderOffsetHours = 30 * 24
