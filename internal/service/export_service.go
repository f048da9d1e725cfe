package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"deadline-desk/backend/internal/model"
	"deadline-desk/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoPatterns   = errors.New("暂无课程表，请先同步日历源")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出用户的周期课程为 Excel (.xlsx)，以 bytes.Buffer 返回，
//     由 Handler 层设置 HTTP 响应头后写入 Response
//   - Sheet "Список"：每条课程一行；Sheet "Неделя"：时间段行 × 星期列
type ExportService interface {
	// ExportPatterns 导出周期课程为 Excel
	ExportPatterns(ctx context.Context, userID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

var dayNames = map[int]string{
	1: "Понедельник", 2: "Вторник", 3: "Среда", 4: "Четверг",
	5: "Пятница", 6: "Суббота", 7: "Воскресенье",
}

var classTypeNames = map[string]string{
	model.ClassTypeLecture:  "Лекция",
	model.ClassTypePractice: "Практика",
	model.ClassTypeLab:      "Лабораторная",
}

var weekTypeNames = map[string]string{
	model.WeekTypeOdd:  "нечётная",
	model.WeekTypeEven: "чётная",
	model.WeekTypeBoth: "каждая",
}

const (
	listSheet = "Список"
	gridSheet = "Неделя"
)

// ═══════════════════════════════════════════════════════════
// ExportPatterns — 导出周期课程
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportPatterns(ctx context.Context, userID string) (*bytes.Buffer, string, error) {
	// 1. 查询课程
	patterns, err := s.repo.SchedulePattern.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询课程表失败", zap.String("user_id", userID), zap.Error(err))
		return nil, "", err
	}
	if len(patterns) == 0 {
		return nil, "", ErrExportNoPatterns
	}
	sortPatterns(patterns)

	// 2. 构建工作簿
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(listSheet); err != nil {
		s.logger.Error("创建 Sheet 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	if _, err := f.NewSheet(gridSheet); err != nil {
		s.logger.Error("创建 Sheet 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	wrapStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})

	writeListSheet(f, patterns, headerStyle)
	writeGridSheet(f, patterns, headerStyle, wrapStyle)

	// 3. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	return buf, "raspisanie.xlsx", nil
}

func writeListSheet(f *excelize.File, patterns []model.SchedulePattern, headerStyle int) {
	headers := []string{"День", "Начало", "Конец", "Предмет", "Тип", "Неделя", "Аудитория", "Преподаватель"}
	widths := []float64{14, 8, 8, 36, 14, 10, 14, 26}
	for i, h := range headers {
		col := colName(i)
		f.SetCellValue(listSheet, cell(col, 1), h)
		f.SetColWidth(listSheet, col, col, widths[i])
	}
	f.SetCellStyle(listSheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	for i, p := range patterns {
		row := i + 2
		values := []interface{}{
			dayNames[p.DayOfWeek],
			p.StartTime,
			p.EndTime,
			subjectName(p.Subject),
			classTypeName(p.ClassType),
			weekTypeName(p.WeekType),
			derefString(p.Room),
			derefString(p.InstructorName),
		}
		for j, v := range values {
			f.SetCellValue(listSheet, cell(colName(j), row), v)
		}
	}
}

func writeGridSheet(f *excelize.File, patterns []model.SchedulePattern, headerStyle, wrapStyle int) {
	// 行：出现过的时间段（按开始时间排序）
	type slot struct{ start, end string }
	slotSet := make(map[slot]struct{})
	cells := make(map[string][]string)
	for _, p := range patterns {
		sl := slot{p.StartTime, p.EndTime}
		slotSet[sl] = struct{}{}
		key := fmt.Sprintf("%s-%s:%d", p.StartTime, p.EndTime, p.DayOfWeek)
		text := fmt.Sprintf("%s (%s)", subjectName(p.Subject), classTypeName(p.ClassType))
		if p.WeekType != model.WeekTypeBoth {
			text += ", " + weekTypeName(p.WeekType)
		}
		if p.Room != nil {
			text += ", " + *p.Room
		}
		cells[key] = append(cells[key], text)
	}
	slots := make([]slot, 0, len(slotSet))
	for sl := range slotSet {
		slots = append(slots, sl)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].start != slots[j].start {
			return slots[i].start < slots[j].start
		}
		return slots[i].end < slots[j].end
	})

	f.SetCellValue(gridSheet, "A1", "Время")
	f.SetColWidth(gridSheet, "A", "A", 13)
	for day := 1; day <= 7; day++ {
		col := colName(day)
		f.SetCellValue(gridSheet, cell(col, 1), dayNames[day])
		f.SetColWidth(gridSheet, col, col, 28)
	}
	f.SetCellStyle(gridSheet, "A1", cell(colName(7), 1), headerStyle)

	for i, sl := range slots {
		row := i + 2
		label := sl.start + "-" + sl.end
		f.SetCellValue(gridSheet, cell("A", row), label)
		for day := 1; day <= 7; day++ {
			var text string
			for k, t := range cells[fmt.Sprintf("%s:%d", label, day)] {
				if k > 0 {
					text += "\n"
				}
				text += t
			}
			if text == "" {
				text = "-"
			}
			f.SetCellValue(gridSheet, cell(colName(day), row), text)
		}
	}
	if len(slots) > 0 {
		f.SetCellStyle(gridSheet, "B2", cell(colName(7), len(slots)+1), wrapStyle)
	}
}

// ── 辅助函数 ──

func classTypeName(t string) string {
	if name, ok := classTypeNames[t]; ok {
		return name
	}
	return t
}

func weekTypeName(t string) string {
	if name, ok := weekTypeNames[t]; ok {
		return name
	}
	return t
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
