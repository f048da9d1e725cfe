package service

import (
	"fmt"
	"time"
)

// Clock 时间源：所有调度判断使用同一固定时区的当前时间
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type zoneClock struct {
	loc *time.Location
}

// NewClock 按 IANA 时区名创建时间源
func NewClock(tz string) (Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("加载时区 %q 失败: %w", tz, err)
	}
	return &zoneClock{loc: loc}, nil
}

func (c *zoneClock) Now() time.Time { return time.Now().In(c.loc) }

func (c *zoneClock) Location() *time.Location { return c.loc }

// ClockFunc 以函数实现 Clock，返回值的时区即为 Location
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

func (f ClockFunc) Location() *time.Location { return f().Location() }

// FixedClock 返回始终停在 t 的时间源
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
