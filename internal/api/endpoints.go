package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/pavelanni/studyassist/internal/model"
)

type tokenResponse struct {
	Token string `json:"token"`
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, creds model.Credentials) (string, error) {
	return c.authenticate(ctx, "/register", creds)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (string, error) {
	return c.authenticate(ctx, "/login", creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds model.Credentials) (string, error) {
	var out tokenResponse
	err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     path,
		JSON:     creds,
		Timeout:  c.callTimeout,
		Schema:   SchemaToken,
		Fallback: "AuthFailed",
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Token, nil
}

type coursesResponse struct {
	Courses []string `json:"courses"`
}

// ListCourses returns the user's course names.
func (c *Client) ListCourses(ctx context.Context) ([]string, error) {
	var out coursesResponse
	err := c.Do(ctx, Request{
		Method:   http.MethodGet,
		Path:     "/courses",
		Auth:     true,
		Timeout:  c.listTimeout,
		Schema:   SchemaCourses,
		Fallback: "FetchCoursesFailed",
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Courses == nil {
		return []string{}, nil
	}
	return out.Courses, nil
}

// CreateCourse creates a course. The response body is ignored.
func (c *Client) CreateCourse(ctx context.Context, name string) error {
	return c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/courses",
		Auth:     true,
		JSON:     map[string]string{"course_name": name},
		Timeout:  c.callTimeout,
		Fallback: "CreateCourseFailed",
	}, nil)
}

type resourcesResponse struct {
	Memory struct {
		Percent float64 `json:"percent"`
	} `json:"memory"`
	Disk struct {
		Percent float64 `json:"percent"`
	} `json:"disk"`
}

// Resources reads the server's memory and disk usage.
func (c *Client) Resources(ctx context.Context) (model.ResourceUsage, error) {
	var out resourcesResponse
	err := c.Do(ctx, Request{
		Method:   http.MethodGet,
		Path:     "/resources",
		Auth:     true,
		Timeout:  c.listTimeout,
		Schema:   SchemaResources,
		Fallback: "InvalidResponse",
	}, &out)
	if err != nil {
		return model.ResourceUsage{}, err
	}
	return model.ResourceUsage{MemoryPercent: out.Memory.Percent, DiskPercent: out.Disk.Percent}, nil
}

type lecturesResponse struct {
	Lectures []model.Lecture `json:"lectures"`
}

// ListLectures returns the authoritative lecture listing for course.
func (c *Client) ListLectures(ctx context.Context, course string) ([]model.Lecture, error) {
	var out lecturesResponse
	err := c.Do(ctx, Request{
		Method:   http.MethodGet,
		Path:     "/lectures/" + url.PathEscape(course),
		Auth:     true,
		Timeout:  c.listTimeout,
		Schema:   SchemaLectures,
		Fallback: "FetchLecturesFailed",
	}, &out)
	if err != nil {
		return nil, err
	}
	lectures := make([]model.Lecture, 0, len(out.Lectures))
	for _, l := range out.Lectures {
		if l.Course == "" {
			l.Course = course
		}
		lectures = append(lectures, l)
	}
	return lectures, nil
}

// UploadForm is the multipart payload of POST /lectures.
type UploadForm struct {
	LectureName string
	CourseName  string
	FileName    string
	ContentType string
	Content     []byte
}

// UploadLecture posts the form. Cancel ctx to abort the transfer.
func (c *Client) UploadLecture(ctx context.Context, form UploadForm) error {
	body, contentType, err := encodeUpload(form)
	if err != nil {
		return &model.Error{Kind: model.KindValidation, Message: err.Error(), Err: err}
	}
	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/lectures",
		Auth:        true,
		Body:        body,
		ContentType: contentType,
		Fallback:    "UploadFailed",
	}, nil)
}

func encodeUpload(form UploadForm) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("lecture_name", strings.TrimSpace(form.LectureName)); err != nil {
		return nil, "", fmt.Errorf("write lecture_name: %w", err)
	}
	if err := w.WriteField("course_name", form.CourseName); err != nil {
		return nil, "", fmt.Errorf("write course_name: %w", err)
	}
	contentType := form.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, form.FileName)},
		"Content-Type":        {contentType},
	})
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(form.Content); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// StudyRequest is the body of POST /study.
type StudyRequest struct {
	Task        model.StudyTask `json:"task"`
	LectureName string          `json:"lecture_name"`
	Question    string          `json:"question"`
}

type studyResponse struct {
	Content string `json:"content"`
}

// Study asks the assistant for study content about a lecture.
func (c *Client) Study(ctx context.Context, req StudyRequest) (string, error) {
	var out studyResponse
	err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/study",
		Auth:     true,
		JSON:     req,
		Timeout:  c.callTimeout,
		Schema:   SchemaStudy,
		Fallback: "StudyFailed",
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

type examRequest struct {
	LectureName string `json:"lecture_name"`
	ExamType    string `json:"exam_type"`
	Difficulty  string `json:"difficulty"`
}

type examResponse struct {
	Questions []model.Question `json:"questions"`
}

// GenerateExam asks for a fresh exam on lecture. A body without a questions
// array fails as KindMalformedResponse.
func (c *Client) GenerateExam(ctx context.Context, lecture string, cfg model.ExamConfig) ([]model.Question, error) {
	var out examResponse
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/exam",
		Auth:   true,
		JSON: examRequest{
			LectureName: lecture,
			ExamType:    cfg.Type.Wire(),
			Difficulty:  cfg.Difficulty.Wire(),
		},
		Timeout:          c.callTimeout,
		Schema:           SchemaExam,
		Fallback:         "ExamGenerateFailed",
		MalformedMessage: "ExamMalformed",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Questions, nil
}

type gradeRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type gradeResponse struct {
	Feedback string `json:"feedback"`
}

// GradeAnswer submits one answer and returns the grader's feedback.
func (c *Client) GradeAnswer(ctx context.Context, questionID, answer string) (string, error) {
	var out gradeResponse
	err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/exam/grade",
		Auth:     true,
		JSON:     gradeRequest{QuestionID: questionID, Answer: answer},
		Timeout:  c.callTimeout,
		Schema:   SchemaGrade,
		Fallback: "GradeFailed",
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Feedback, nil
}
