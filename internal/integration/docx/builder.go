package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"deadline-desk/backend/internal/dto"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// ── DOCX 文档构建 ───────────────────────────────────────────
//
// 文档 = 封面 + 分页符 + 正文。
//   - 有封面模板：复制模板全部部件，替换 word/document.xml 中的占位符，
//     正文追加在 sectPr 之前
//   - 无模板或模板不存在：生成内置封面
//
// 正文按行转换：# / ## / ### 为标题，- / * 为列表项，其余为首行缩进段落。
// ─────────────────────────────────────────────────────────────

const documentPart = "word/document.xml"

// Builder 将作业正文写为 .docx 文件
type Builder struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

// NewBuilder 创建文档构建器，文件写入 dir
func NewBuilder(dir string, now func() time.Time, logger *zap.Logger) *Builder {
	return &Builder{dir: dir, now: now, logger: logger}
}

// BuildDocument 构建文档并写入磁盘，Ref 为文件路径
func (b *Builder) BuildDocument(ctx context.Context, req dto.DocumentRequest) (*dto.DocumentArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.Generation("build document", err)
	}

	title := titleFields{
		SubjectName:  req.SubjectName,
		WorkTypeName: req.WorkTypeName,
		WorkNumber:   req.WorkNumber,
		StudentName:  req.StudentName,
		GroupNumber:  req.GroupNumber,
		Instructor:   req.InstructorName,
		Date:         b.now().Format("02.01.2006"),
	}
	body := contentXML(req.Content)

	var data []byte
	var err error
	if req.TemplatePath != "" && fileExists(req.TemplatePath) {
		data, err = fromTemplate(req.TemplatePath, title, body)
	} else {
		if req.TemplatePath != "" {
			b.logger.Warn("封面模板不存在，使用内置封面", zap.String("path", req.TemplatePath))
		}
		data, err = fromScratch(title, body)
	}
	if err != nil {
		return nil, pkgerrors.Generation("build document", err)
	}

	fileName := FileName(req.WorkType, req.WorkNumber, req.SubjectName, req.DeadlineID)
	path := filepath.Join(b.dir, req.UserID+"_"+fileName)
	if err := writeFile(path, data); err != nil {
		return nil, pkgerrors.Generation("write document", err)
	}

	b.logger.Info("文档已生成", zap.String("deadline_id", req.DeadlineID), zap.String("path", path))
	return &dto.DocumentArtifact{FileName: fileName, Ref: path}, nil
}

// Discard 删除 BuildDocument 写出的文件，只接受输出目录内的路径，文件不存在视为成功
func (b *Builder) Discard(_ context.Context, ref string) error {
	dir, err := filepath.Abs(b.dir)
	if err != nil {
		return err
	}
	path, err := filepath.Abs(ref)
	if err != nil {
		return err
	}
	if filepath.Dir(path) != dir {
		return fmt.Errorf("拒绝删除输出目录之外的文件: %s", ref)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	b.logger.Info("已删除未登记的文档", zap.String("path", path))
	return nil
}

// FileName {work_type}[_{номер}]_{предмет}_{deadline_id}.docx，
// 只保留字母、数字、下划线、连字符与点
func FileName(workType string, workNumber *int, subject, deadlineID string) string {
	name := workType
	if workNumber != nil && *workNumber > 0 {
		name += "_" + strconv.Itoa(*workNumber)
	}
	name += "_" + strings.ReplaceAll(subject, " ", "_") + "_" + deadlineID + ".docx"

	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			return r
		}
		return -1
	}, name)
}

// ── 封面 ──

type titleFields struct {
	SubjectName  string
	WorkTypeName string
	WorkNumber   *int
	StudentName  string
	GroupNumber  string
	Instructor   string
	Date         string
}

func (t titleFields) number() string {
	if t.WorkNumber == nil || *t.WorkNumber <= 0 {
		return ""
	}
	return strconv.Itoa(*t.WorkNumber)
}

// replacer 模板占位符，同时支持英文与俄文写法
func (t titleFields) replacer() *strings.Replacer {
	pairs := map[string]string{
		"subject_name": t.SubjectName, "предмет": t.SubjectName,
		"date": t.Date, "дата": t.Date,
		"work_type": t.WorkTypeName, "тип_работы": t.WorkTypeName,
		"work_number": t.number(), "номер_работы": t.number(),
		"student_name": t.StudentName, "имя_студента": t.StudentName,
		"group_number": t.GroupNumber, "группа": t.GroupNumber,
		"teacher_name": t.Instructor, "преподаватель": t.Instructor,
	}
	args := make([]string, 0, len(pairs)*2)
	for k, v := range pairs {
		args = append(args, "{{"+k+"}}", escape(v))
	}
	return strings.NewReplacer(args...)
}

func defaultTitleXML(t titleFields) string {
	var b strings.Builder
	b.WriteString(paragraph("МИНИСТЕРСТВО НАУКИ И ВЫСШЕГО ОБРАЗОВАНИЯ", "center", 24, true))
	b.WriteString(paragraph("РОССИЙСКОЙ ФЕДЕРАЦИИ", "center", 24, true))
	b.WriteString(emptyParagraphs(3))

	heading := strings.ToUpper(t.WorkTypeName)
	if n := t.number(); n != "" {
		heading += " №" + n
	}
	b.WriteString(paragraph(heading, "center", 32, true))
	b.WriteString(paragraph("по дисциплине «"+t.SubjectName+"»", "center", 28, false))
	b.WriteString(emptyParagraphs(5))

	b.WriteString(paragraph("Выполнил: "+t.StudentName, "right", 24, false))
	if t.GroupNumber != "" {
		b.WriteString(paragraph("Группа: "+t.GroupNumber, "right", 24, false))
	}
	if t.Instructor != "" {
		b.WriteString(paragraph("Проверил: "+t.Instructor, "right", 24, false))
	}
	b.WriteString(emptyParagraphs(5))
	b.WriteString(paragraph("Дата выполнения: "+t.Date, "center", 24, false))
	return b.String()
}

// ── 正文 ──

func contentXML(content string) string {
	var b strings.Builder
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
		switch {
		case line == "":
			b.WriteString(emptyParagraphs(1))
		case strings.HasPrefix(line, "### "):
			b.WriteString(paragraph(line[4:], "left", 26, true))
		case strings.HasPrefix(line, "## "):
			b.WriteString(paragraph(line[3:], "left", 28, true))
		case strings.HasPrefix(line, "# "):
			b.WriteString(paragraph(line[2:], "center", 32, true))
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			b.WriteString(paragraph("• "+line[2:], "left", 28, false))
		default:
			b.WriteString(bodyParagraph(line))
		}
	}
	return b.String()
}

const pageBreakXML = `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`

func paragraph(text, align string, halfPoints int, bold bool) string {
	rPr := fmt.Sprintf(`<w:sz w:val="%d"/>`, halfPoints)
	if bold {
		rPr = `<w:b/>` + rPr
	}
	return fmt.Sprintf(`<w:p><w:pPr><w:jc w:val="%s"/></w:pPr><w:r><w:rPr>%s</w:rPr><w:t xml:space="preserve">%s</w:t></w:r></w:p>`,
		align, rPr, escape(text))
}

// bodyParagraph 首行缩进 1.27 см，1.5 倍行距
func bodyParagraph(text string) string {
	return fmt.Sprintf(`<w:p><w:pPr><w:spacing w:line="360" w:lineRule="auto"/><w:ind w:firstLine="720"/><w:jc w:val="both"/></w:pPr><w:r><w:rPr><w:sz w:val="28"/></w:rPr><w:t xml:space="preserve">%s</w:t></w:r></w:p>`,
		escape(text))
}

func emptyParagraphs(n int) string {
	return strings.Repeat(`<w:p/>`, n)
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// ── 打包 ──

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

const documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentFooter = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1134" w:right="850" w:bottom="1134" w:left="1701" w:header="708" w:footer="708" w:gutter="0"/></w:sectPr></w:body></w:document>`

func fromScratch(title titleFields, body string) ([]byte, error) {
	document := documentHeader + defaultTitleXML(title) + pageBreakXML + body + documentFooter

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, data string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{documentPart, document},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, p.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fromTemplate(path string, title titleFields, body string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("打开封面模板失败: %w", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	found := false
	for _, f := range zr.File {
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		if f.Name == documentPart {
			found = true
			data = []byte(mergeTemplate(string(data), title, body))
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("封面模板缺少 %s", documentPart)
	}
	return buf.Bytes(), nil
}

// mergeTemplate 替换占位符后，在最后一个 sectPr（或 </w:body>）之前追加分页符与正文
func mergeTemplate(document string, title titleFields, body string) string {
	document = title.replacer().Replace(document)

	insert := pageBreakXML + body
	if i := strings.LastIndex(document, "<w:sectPr"); i >= 0 {
		return document[:i] + insert + document[i:]
	}
	if i := strings.LastIndex(document, "</w:body>"); i >= 0 {
		return document[:i] + insert + document[i:]
	}
	return document
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// writeFile 先写临时文件再重命名，避免留下不完整的文档
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
