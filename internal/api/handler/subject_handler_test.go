package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"deadline-desk/backend/internal/dto"
	"deadline-desk/backend/internal/service"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

// ── Mock UserService ──

type mockUserService struct {
	profile   *dto.UserResponse
	err       error
	gotUpdate *dto.UpdateProfileRequest
}

func (m *mockUserService) Register(context.Context, *dto.RegisterUserRequest) (*dto.RegisterUserResponse, error) {
	return nil, m.err
}
func (m *mockUserService) GetProfile(context.Context, string) (*dto.UserResponse, error) {
	return m.profile, m.err
}
func (m *mockUserService) UpdateProfile(_ context.Context, _ string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	m.gotUpdate = req
	return m.profile, m.err
}

// ── Mock SubjectService ──

type mockSubjectService struct {
	err           error
	lastSubject   string
	gotInstructor *dto.SetInstructorRequest
	gotMaterial   *dto.AddMaterialRequest
	uploadName    string
	uploadFile    string
	uploadData    []byte
	uploadDefault bool
	defaultID     string
}

func (m *mockSubjectService) List(context.Context, string) ([]dto.SubjectResponse, error) {
	return []dto.SubjectResponse{{ID: "s1", Name: "Физика"}}, m.err
}
func (m *mockSubjectService) SetInstructor(_ context.Context, _, subjectID string, req *dto.SetInstructorRequest) (*dto.SubjectResponse, error) {
	m.lastSubject, m.gotInstructor = subjectID, req
	return &dto.SubjectResponse{ID: subjectID}, m.err
}
func (m *mockSubjectService) AddMaterial(_ context.Context, _, subjectID string, req *dto.AddMaterialRequest) (*dto.MaterialResponse, error) {
	m.lastSubject, m.gotMaterial = subjectID, req
	return &dto.MaterialResponse{ID: "m1", FileName: req.FileName}, m.err
}
func (m *mockSubjectService) ListTemplates(context.Context, string) ([]dto.TemplateResponse, error) {
	return nil, m.err
}
func (m *mockSubjectService) UploadTemplate(_ context.Context, _, name, fileName string, data []byte, makeDefault bool) (*dto.TemplateResponse, error) {
	m.uploadName, m.uploadFile, m.uploadData, m.uploadDefault = name, fileName, data, makeDefault
	return &dto.TemplateResponse{ID: "t1", Name: name, IsDefault: makeDefault}, m.err
}
func (m *mockSubjectService) SetDefaultTemplate(_ context.Context, _, templateID string) (*dto.TemplateResponse, error) {
	m.defaultID = templateID
	return &dto.TemplateResponse{ID: templateID, IsDefault: true}, m.err
}

// serveMultipart 以已认证用户身份提交 multipart 表单
func serveMultipart(t *testing.T, route string, fields map[string]string, fileName string, data []byte, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(data)
	}
	mw.Close()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", testUserID)
		c.Next()
	})
	r.POST(route, h)

	req := httptest.NewRequest("POST", route, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ═══════════════════════════════════════════════════════════
// UserHandler Tests
// ═══════════════════════════════════════════════════════════

func TestUserHandler_GetProfile(t *testing.T) {
	h := NewUserHandler(&mockUserService{profile: &dto.UserResponse{ID: testUserID, TelegramID: 1001}})

	w := serve("GET", "/me", "/me", nil, h.GetProfile)
	expectStatus(t, w, http.StatusOK, 0)
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	mock := &mockUserService{profile: &dto.UserResponse{ID: testUserID}}
	h := NewUserHandler(mock)

	w := serve("PUT", "/me", "/me", strings.NewReader(`{"group_number": "ИВТ-22"}`), h.UpdateProfile)
	expectStatus(t, w, http.StatusOK, 0)
	if mock.gotUpdate == nil || mock.gotUpdate.GroupNumber == nil || mock.gotUpdate.FirstName != nil {
		t.Errorf("expected only group_number to be set, got %+v", mock.gotUpdate)
	}
}

func TestUserHandler_UpdateProfile_Empty(t *testing.T) {
	h := NewUserHandler(&mockUserService{err: service.ErrUserProfileEmpty})

	w := serve("PUT", "/me", "/me", strings.NewReader(`{}`), h.UpdateProfile)
	expectStatus(t, w, http.StatusBadRequest, 17001)
}

// ═══════════════════════════════════════════════════════════
// SubjectHandler Tests
// ═══════════════════════════════════════════════════════════

func TestSubjectHandler_SetInstructor(t *testing.T) {
	mock := &mockSubjectService{}
	h := NewSubjectHandler(mock)

	w := serve("PUT", "/subjects/:id/instructor", "/subjects/s1/instructor",
		strings.NewReader(`{"name": "Петров П.П.", "preferences": "любит графики"}`), h.SetInstructor)
	expectStatus(t, w, http.StatusOK, 0)
	if mock.lastSubject != "s1" || mock.gotInstructor == nil || mock.gotInstructor.Name != "Петров П.П." {
		t.Errorf("unexpected service call: %s %+v", mock.lastSubject, mock.gotInstructor)
	}
}

func TestSubjectHandler_SetInstructor_MissingName(t *testing.T) {
	h := NewSubjectHandler(&mockSubjectService{})

	w := serve("PUT", "/subjects/:id/instructor", "/subjects/s1/instructor", strings.NewReader(`{}`), h.SetInstructor)
	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestSubjectHandler_SetInstructor_ForeignSubject(t *testing.T) {
	h := NewSubjectHandler(&mockSubjectService{err: pkgerrors.NotFound("subject", "s1")})

	w := serve("PUT", "/subjects/:id/instructor", "/subjects/s1/instructor", strings.NewReader(`{"name": "X"}`), h.SetInstructor)
	expectStatus(t, w, http.StatusNotFound, 10404)
}

func TestSubjectHandler_AddMaterial(t *testing.T) {
	mock := &mockSubjectService{}
	h := NewSubjectHandler(mock)

	w := serve("POST", "/subjects/:id/materials", "/subjects/s1/materials",
		jsonBody(map[string]string{"file_name": "лекция.pdf", "text": "Закон Ома"}), h.AddMaterial)
	expectStatus(t, w, http.StatusCreated, 0)
	if mock.gotMaterial == nil || mock.gotMaterial.Text != "Закон Ома" {
		t.Errorf("unexpected material passed to service: %+v", mock.gotMaterial)
	}
}

func TestSubjectHandler_AddMaterial_TooLarge(t *testing.T) {
	h := NewSubjectHandler(&mockSubjectService{err: service.ErrMaterialTooLarge})

	w := serve("POST", "/subjects/:id/materials", "/subjects/s1/materials",
		jsonBody(map[string]string{"file_name": "a.txt", "text": "x"}), h.AddMaterial)
	expectStatus(t, w, http.StatusBadRequest, 18005)
}

func TestSubjectHandler_UploadTemplate(t *testing.T) {
	mock := &mockSubjectService{}
	h := NewSubjectHandler(mock)

	w := serveMultipart(t, "/templates", map[string]string{"name": "МИФИ", "default": "true"},
		"title.docx", []byte("PK\x03\x04"), h.UploadTemplate)
	expectStatus(t, w, http.StatusCreated, 0)
	if mock.uploadName != "МИФИ" || mock.uploadFile != "title.docx" || !mock.uploadDefault {
		t.Errorf("unexpected upload: name=%q file=%q default=%v", mock.uploadName, mock.uploadFile, mock.uploadDefault)
	}
	if string(mock.uploadData) != "PK\x03\x04" {
		t.Errorf("file content not passed through: %q", mock.uploadData)
	}
}

func TestSubjectHandler_UploadTemplate_MissingFile(t *testing.T) {
	h := NewSubjectHandler(&mockSubjectService{})

	w := serveMultipart(t, "/templates", map[string]string{"name": "x"}, "", nil, h.UploadTemplate)
	expectStatus(t, w, http.StatusBadRequest, 18001)
}

func TestSubjectHandler_UploadTemplate_NotDocx(t *testing.T) {
	h := NewSubjectHandler(&mockSubjectService{err: service.ErrTemplateNotDocx})

	w := serveMultipart(t, "/templates", nil, "title.pdf", []byte("%PDF"), h.UploadTemplate)
	expectStatus(t, w, http.StatusBadRequest, 18002)
}

func TestSubjectHandler_SetDefaultTemplate(t *testing.T) {
	mock := &mockSubjectService{}
	h := NewSubjectHandler(mock)

	w := serve("PUT", "/templates/:id/default", "/templates/t9/default", nil, h.SetDefaultTemplate)
	expectStatus(t, w, http.StatusOK, 0)
	if mock.defaultID != "t9" {
		t.Errorf("expected t9, got %q", mock.defaultID)
	}

	h = NewSubjectHandler(&mockSubjectService{err: pkgerrors.NotFound("title_template", "t9")})
	w = serve("PUT", "/templates/:id/default", "/templates/t9/default", nil, h.SetDefaultTemplate)
	expectStatus(t, w, http.StatusNotFound, 10404)
}
